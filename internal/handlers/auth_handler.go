package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reliefboard/internal/apierror"
	"reliefboard/internal/middleware"
	"reliefboard/internal/models"
	"reliefboard/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
	sessions    TaskSessions
	logger      *zap.Logger
}

func NewAuthHandler(authService services.AuthService, sessions TaskSessions, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{authService: authService, sessions: sessions, logger: logger}
}

// @Summary      登入
// @Description  以電子郵件與密碼登入，回傳存取權杖
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "登入資料"
// @Success      200    {object}  models.Session
// @Failure      400    {object}  apierror.Response
// @Failure      401    {object}  apierror.Response
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "請輸入電子郵件與密碼", err)
		return
	}
	sess, err := h.authService.Login(strings.TrimSpace(req.Email), req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		respondError(c, apierror.Denied(http.StatusUnauthorized, "電子郵件或密碼錯誤"), apierror.ResourceNone)
		return
	}
	if err != nil {
		h.logger.Error("[auth][login][err]", zap.Error(err))
		respondError(c, err, apierror.ResourceNone)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// @Summary      登出
// @Description  釋放此工作階段的快取與連線
// @Tags         Auth
// @Security     BearerAuth
// @Success      200  {object}  map[string]bool
// @Router       /logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	released := h.sessions.Release(c.GetString(middleware.CtxToken))
	h.logger.Info("[auth][logout]", zap.String("email", c.GetString(middleware.CtxEmail)), zap.Bool("released", released))
	c.JSON(http.StatusOK, gin.H{"released": released})
}
