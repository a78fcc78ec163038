package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/domain"
)

type AuthHandler struct {
	app    AppService
	logger zerolog.Logger
}

func NewAuthHandler(app AppService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{app: app, logger: logger}
}

func (h *AuthHandler) GenerateSession(c *gin.Context) {
	var req domain.GenerateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	session, err := h.app.Auth().GenerateSession(c.Request.Context(), req.Type)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", session)
}

type codeRequest struct {
	Type domain.AuthKind `json:"type"`
	Code string          `json:"code"`
}

// SubmitCode finishes login or registration and loads the user.
func (h *AuthHandler) SubmitCode(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if _, err := h.app.Auth().SubmitCode(c.Request.Context(), req.Type, req.Code); err != nil {
		respondError(c, err)
		return
	}
	user, err := h.app.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "", user)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.app.Auth().Logout(c.Request.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Logout finished with a backend error")
	}
	respondOK(c, "", nil)
}
