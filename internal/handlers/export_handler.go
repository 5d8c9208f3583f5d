package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reliefboard/internal/apierror"
	"reliefboard/internal/pdf"
	"reliefboard/internal/services"
)

type ExportHandler struct {
	sessions TaskSessions
	docs     pdf.Generator
	logger   *zap.Logger
	now      func() time.Time
}

func NewExportHandler(sessions TaskSessions, docs pdf.Generator, logger *zap.Logger) *ExportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportHandler{sessions: sessions, docs: docs, logger: logger, now: time.Now}
}

// @Summary      匯出任務清單 PDF
// @Tags         Tasks
// @Produce      application/pdf
// @Param        type    query  string  false  "任務類型"
// @Param        status  query  string  false  "任務狀態"
// @Success      200
// @Failure      400  {object}  apierror.Response
// @Router       /tasks/export.pdf [get]
func (h *ExportHandler) TaskSheet(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	list, err := sessionFor(c, h.sessions).List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, apierror.ResourceTask)
		return
	}

	var desc string
	if filter.Type != "" {
		desc += "類型：" + filter.Type.Label() + " "
	}
	if filter.Status != "" {
		desc += "狀態：" + filter.Status.Label()
	}
	now := h.now()
	var buf bytes.Buffer
	err = h.docs.TaskSheet(&buf, pdf.SheetData{
		Filter:      desc,
		Tasks:       services.SortNewestFirst(list.Tasks),
		GeneratedAt: now,
	})
	if err != nil {
		h.logger.Error("[export][pdf][err]", zap.Error(err))
		respondError(c, apierror.New(apierror.KindUnknown, "無法產生 PDF", err), apierror.ResourceNone)
		return
	}
	filename := fmt.Sprintf("tasks_%s.pdf", now.Format("20060102_1504"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
