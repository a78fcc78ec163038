package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tuncanbit/qrpay/internal/server/websocket"
)

const (
	serviceName    = "qrpay"
	serviceVersion = "1.0.0"
)

// HealthHandler reports liveness and whether the app still accepts work.
type HealthHandler struct {
	app AppService
	ws  *websocket.Manager
}

func NewHealthHandler(app AppService, ws *websocket.Manager) *HealthHandler {
	return &HealthHandler{app: app, ws: ws}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"service":        serviceName,
		"version":        serviceVersion,
		"scanner":        h.app.ScannerState().String(),
		"signed_in":      h.app.State().User() != nil,
		"event_clients":  h.ws.GetClientCount(),
		"payment_active": h.app.Reservation() != nil,
		"timestamp":      time.Now().UTC(),
	})
}

// Ready turns 503 once the app is shutting down so a UI stops sending commands.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.app.Closed() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "shutting_down",
			"service": serviceName,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": serviceName,
		"version": serviceVersion,
	})
}
