package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type CameraHandler struct {
	app    AppService
	logger zerolog.Logger
}

func NewCameraHandler(app AppService, logger zerolog.Logger) *CameraHandler {
	return &CameraHandler{app: app, logger: logger}
}

type cameraState struct {
	State          string `json:"state"`
	RestartPending bool   `json:"restart_pending"`
}

func (h *CameraHandler) snapshot() cameraState {
	return cameraState{
		State:          h.app.ScannerState().String(),
		RestartPending: h.app.RestartPending(),
	}
}

func (h *CameraHandler) State(c *gin.Context) {
	respondOK(c, "", h.snapshot())
}

func (h *CameraHandler) Start(c *gin.Context) {
	if err := h.app.StartCamera(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "Камера запущена", h.snapshot())
}

func (h *CameraHandler) Stop(c *gin.Context) {
	h.app.StopCamera()
	respondOK(c, "Камера остановлена", h.snapshot())
}

type visibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

func (h *CameraHandler) Visibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	h.app.HandleVisibility(*req.Visible)
	respondOK(c, "", h.snapshot())
}
