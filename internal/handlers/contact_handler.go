package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reliefboard/internal/contact"
)

type ContactHandler struct {
	rendered []contact.RenderedCategory
}

// NewContactHandler renders the directory once; it is static for the
// process lifetime.
func NewContactHandler(dir *contact.Directory) *ContactHandler {
	return &ContactHandler{rendered: dir.Render()}
}

// @Summary      聯絡資訊
// @Tags         Contacts
// @Produce      json
// @Success      200  {array}  contact.RenderedCategory
// @Router       /contacts [get]
func (h *ContactHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.rendered)
}

type parseRequest struct {
	Text string `json:"text" binding:"required"`
}

// @Summary      解析電話號碼
// @Description  從自由文字中找出電話號碼，並提供顯示格式與撥號連結
// @Tags         Contacts
// @Accept       json
// @Produce      json
// @Param        body  body      parseRequest  true  "文字"
// @Success      200   {object}  contact.Phone
// @Failure      400   {object}  apierror.Response
// @Router       /contacts/parse [post]
func (h *ContactHandler) Parse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "請提供要解析的文字", err)
		return
	}
	c.JSON(http.StatusOK, contact.RenderPhone(req.Text))
}
