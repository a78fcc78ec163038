package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/server/websocket"
)

// WebSocketHandler upgrades authenticated clients onto the event stream.
type WebSocketHandler struct {
	app       AppService
	wsManager *websocket.Manager
	upgrader  gws.Upgrader
	logger    zerolog.Logger
}

func NewWebSocketHandler(app AppService, wsManager *websocket.Manager, logger zerolog.Logger) *WebSocketHandler {
	cfg := wsManager.Config()
	upgrader := gws.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
	}
	if !cfg.CheckOrigin {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	return &WebSocketHandler{
		app:       app,
		wsManager: wsManager,
		upgrader:  upgrader,
		logger:    logger.With().Str("component", "ws_handler").Logger(),
	}
}

func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := websocket.NewClient(conn, h.wsManager.Config(), h.logger)

	if err := h.wsManager.AddClient(client); err != nil {
		h.logger.Error().Err(err).Str("client_id", client.GetID()).Msg("Failed to add WebSocket client")
		client.Close()
		return
	}

	h.logger.Info().Str("client_id", client.GetID()).Msg("WebSocket client connected")

	// New subscribers get the current scanner state before any broadcast.
	snapshot := domain.Event{
		Type:  domain.EventScannerState,
		At:    time.Now().UTC(),
		State: h.app.ScannerState().String(),
	}
	if err := h.wsManager.SendToClient(client.GetID(), &snapshot); err != nil {
		h.logger.Warn().Err(err).Str("client_id", client.GetID()).Msg("Failed to send scanner state snapshot")
	}

	defer func() {
		h.wsManager.RemoveClient(client.GetID())
		h.logger.Info().Str("client_id", client.GetID()).Msg("WebSocket client disconnected")
	}()

	client.HandleConnection()
}
