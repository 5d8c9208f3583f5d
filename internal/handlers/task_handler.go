package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reliefboard/internal/apierror"
	"reliefboard/internal/models"
	"reliefboard/internal/services"
)

type TaskHandler struct {
	sessions TaskSessions
	logger   *zap.Logger
}

func NewTaskHandler(sessions TaskSessions, logger *zap.Logger) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{sessions: sessions, logger: logger}
}

// parseFilter reads ?type=&status= and rejects values outside the closed sets.
func parseFilter(c *gin.Context) (models.TaskFilter, bool) {
	f := models.TaskFilter{
		Type:   models.TaskType(strings.TrimSpace(c.Query("type"))),
		Status: models.TaskStatus(strings.TrimSpace(c.Query("status"))),
	}
	if f.Type != "" && !f.Type.Valid() {
		badRequest(c, "無效的任務類型", nil)
		return f, false
	}
	if f.Status != "" && !f.Status.Valid() {
		badRequest(c, "無效的任務狀態", nil)
		return f, false
	}
	return f, true
}

// @Summary      任務列表
// @Description  依類型與狀態篩選任務；sort=created_desc 依建立時間新到舊排序
// @Tags         Tasks
// @Produce      json
// @Param        type    query     string  false  "任務類型"
// @Param        status  query     string  false  "任務狀態"
// @Param        sort    query     string  false  "created_desc"
// @Success      200     {object}  models.TaskList
// @Failure      400     {object}  apierror.Response
// @Failure      502     {object}  apierror.Response
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	sortBy := c.Query("sort")
	if sortBy != "" && sortBy != "created_desc" {
		badRequest(c, "不支援的排序方式", nil)
		return
	}

	list, err := sessionFor(c, h.sessions).List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Warn("[task][list][err]", zap.String("filter", filter.String()), zap.Error(err))
		respondError(c, err, apierror.ResourceTask)
		return
	}
	if sortBy == "created_desc" {
		list.Tasks = services.SortNewestFirst(list.Tasks)
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      任務詳情
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "任務編號"
// @Success      200  {object}  models.Task
// @Failure      404  {object}  apierror.Response
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	task, err := sessionFor(c, h.sessions).Get(c.Request.Context(), id)
	if err != nil {
		h.logger.Info("[task][get][err]", zap.String("id", id), zap.Error(err))
		respondError(c, err, apierror.ResourceTask)
		return
	}
	c.JSON(http.StatusOK, task)
}

// @Summary      可認領的任務
// @Tags         Tasks
// @Produce      json
// @Success      200  {object}  models.TaskList
// @Router       /tasks/available [get]
func (h *TaskHandler) Available(c *gin.Context) {
	list, err := sessionFor(c, h.sessions).Available(c.Request.Context())
	if err != nil {
		respondError(c, err, apierror.ResourceTask)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      待審核任務
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.TaskList
// @Router       /tasks/pending-approval [get]
func (h *TaskHandler) PendingApproval(c *gin.Context) {
	list, err := sessionFor(c, h.sessions).PendingApproval(c.Request.Context())
	if err != nil {
		respondError(c, err, apierror.ResourceTask)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      任務統計
// @Tags         Tasks
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /tasks/statistics [get]
func (h *TaskHandler) Statistics(c *gin.Context) {
	h.raw(c, "statistics", apierror.ResourceNone, sessionFor(c, h.sessions).Statistics)
}

// @Summary      任務認領紀錄
// @Tags         Claims
// @Produce      json
// @Param        id   path      string  true  "任務編號"
// @Success      200  {object}  map[string]interface{}
// @Router       /tasks/{id}/claims [get]
func (h *TaskHandler) Claims(c *gin.Context) {
	id := c.Param("id")
	svc := sessionFor(c, h.sessions)
	h.raw(c, "claims", apierror.ResourceClaim, func(ctx context.Context) (json.RawMessage, error) { return svc.Claims(ctx, id) })
}

// @Summary      任務活動紀錄
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "任務編號"
// @Success      200  {object}  map[string]interface{}
// @Router       /tasks/{id}/activity-log [get]
func (h *TaskHandler) ActivityLog(c *gin.Context) {
	id := c.Param("id")
	svc := sessionFor(c, h.sessions)
	h.raw(c, "activity", apierror.ResourceTask, func(ctx context.Context) (json.RawMessage, error) { return svc.ActivityLog(ctx, id) })
}

// @Summary      任務衝突檢查
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "任務編號"
// @Success      200  {object}  map[string]interface{}
// @Router       /tasks/{id}/conflicts [get]
func (h *TaskHandler) Conflicts(c *gin.Context) {
	id := c.Param("id")
	svc := sessionFor(c, h.sessions)
	h.raw(c, "conflicts", apierror.ResourceTask, func(ctx context.Context) (json.RawMessage, error) { return svc.Conflicts(ctx, id) })
}

// @Summary      我的認領
// @Tags         Claims
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /tasks/claims/my [get]
func (h *TaskHandler) MyClaims(c *gin.Context) {
	h.raw(c, "my-claims", apierror.ResourceClaim, sessionFor(c, h.sessions).MyClaims)
}

// @Summary      我的任務歷史
// @Tags         Claims
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /tasks/history/my [get]
func (h *TaskHandler) MyHistory(c *gin.Context) {
	h.raw(c, "my-history", apierror.ResourceTask, sessionFor(c, h.sessions).MyHistory)
}

// @Summary      建立任務
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        task  body      models.TaskInput  true  "任務內容"
// @Success      201   {object}  models.Task
// @Failure      400   {object}  apierror.Response
// @Failure      403   {object}  apierror.Response
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	email, roleID := getUserAndRole(c)
	h.logger.Debug("[task][create] call", zap.String("email", email), zap.Int("role_id", roleID))

	in, ok := bindTaskInput(c)
	if !ok {
		return
	}
	task, err := sessionFor(c, h.sessions).Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err, apierror.ResourceTask)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// @Summary      更新任務
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string            true  "任務編號"
// @Param        task  body      models.TaskInput  true  "任務內容"
// @Success      200   {object}  models.Task
// @Failure      400   {object}  apierror.Response
// @Failure      404   {object}  apierror.Response
// @Router       /tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	in, ok := bindTaskInput(c)
	if !ok {
		return
	}
	task, err := sessionFor(c, h.sessions).Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err, apierror.ResourceTask)
		return
	}
	c.JSON(http.StatusOK, task)
}

// @Summary      刪除任務
// @Tags         Tasks
// @Security     BearerAuth
// @Param        id   path  string  true  "任務編號"
// @Success      204
// @Failure      404  {object}  apierror.Response
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := sessionFor(c, h.sessions).Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, apierror.ResourceTask)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      審核通過任務
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "任務編號"
// @Success      200  {object}  models.Task
// @Router       /tasks/{id}/approve [post]
func (h *TaskHandler) Approve(c *gin.Context) {
	task, err := sessionFor(c, h.sessions).Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, apierror.ResourceTask)
		return
	}
	c.JSON(http.StatusOK, task)
}

type claimBody struct {
	Notes string `json:"notes"`
}

// @Summary      認領任務
// @Tags         Claims
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string     true   "任務編號"
// @Param        body  body      claimBody  false  "備註"
// @Success      200   {object}  map[string]interface{}
// @Router       /tasks/{id}/claim [post]
func (h *TaskHandler) Claim(c *gin.Context) {
	var body claimBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "請求內容格式錯誤", err)
			return
		}
	}
	out, err := sessionFor(c, h.sessions).Claim(c.Request.Context(), c.Param("id"), body.Notes)
	if err != nil {
		respondError(c, err, apierror.ResourceClaim)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", orNull(out))
}

// @Summary      認領任務（以內容指定任務）
// @Tags         Claims
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      models.ClaimRequest  true  "認領內容"
// @Success      200   {object}  map[string]interface{}
// @Router       /tasks/claim [post]
func (h *TaskHandler) ClaimByRequest(c *gin.Context) {
	var req models.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "缺少任務編號", err)
		return
	}
	out, err := sessionFor(c, h.sessions).ClaimByRequest(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, apierror.ResourceClaim)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", orNull(out))
}

// @Summary      更新認領狀態
// @Tags         Claims
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                    true  "認領編號"
// @Param        body  body      models.ClaimStatusUpdate  true  "新狀態"
// @Success      200   {object}  map[string]interface{}
// @Router       /claims/{id}/status [put]
func (h *TaskHandler) UpdateClaimStatus(c *gin.Context) {
	var upd models.ClaimStatusUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		badRequest(c, "請求內容格式錯誤", err)
		return
	}
	out, err := sessionFor(c, h.sessions).UpdateClaimStatus(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		respondError(c, err, apierror.ResourceClaim)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", orNull(out))
}

func bindTaskInput(c *gin.Context) (models.TaskInput, bool) {
	var in models.TaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "任務內容不完整或格式錯誤", err)
		return in, false
	}
	if !in.Type.Valid() {
		badRequest(c, "無效的任務類型", nil)
		return in, false
	}
	if in.MaximumNumberOfPeople != 0 && in.MaximumNumberOfPeople < in.RequiredNumberOfPeople {
		badRequest(c, "人數上限不可小於需求人數", nil)
		return in, false
	}
	return in, true
}

// raw serves a pass-through payload the task API owns.
func (h *TaskHandler) raw(c *gin.Context, what string, resource apierror.Resource, read func(context.Context) (json.RawMessage, error)) {
	out, err := read(c.Request.Context())
	if err != nil {
		h.logger.Info("[task][read][err]", zap.String("what", what), zap.Error(err))
		respondError(c, err, resource)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", orNull(out))
}

func orNull(b json.RawMessage) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
