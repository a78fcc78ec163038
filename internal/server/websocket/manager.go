package websocket

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/domain/interfaces"
	"github.com/tuncanbit/qrpay/pkg/config"
)

const cleanupInterval = 30 * time.Second

// Manager fans app events out to every connected UI client. It satisfies
// domain.EventSink so it can subscribe to the app directly.
type Manager struct {
	clients   map[string]interfaces.WebSocketClient
	clientsMu sync.RWMutex
	config    config.WebSocketConfig
	logger    zerolog.Logger
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewManager(cfg config.WebSocketConfig, logger zerolog.Logger) *Manager {
	manager := &Manager{
		clients: make(map[string]interfaces.WebSocketClient),
		config:  cfg,
		logger:  logger.With().Str("component", "ws_manager").Logger(),
		stop:    make(chan struct{}),
	}

	go manager.cleanupInactiveClients()

	return manager
}

func (m *Manager) Config() config.WebSocketConfig {
	return m.config
}

func (m *Manager) AddClient(client interfaces.WebSocketClient) error {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	m.clients[client.GetID()] = client

	m.logger.Info().
		Str("client_id", client.GetID()).
		Int("total_clients", len(m.clients)).
		Msg("WebSocket client added")

	return nil
}

func (m *Manager) RemoveClient(clientID string) error {
	m.clientsMu.Lock()
	client, exists := m.clients[clientID]
	delete(m.clients, clientID)
	total := len(m.clients)
	m.clientsMu.Unlock()

	if !exists {
		return nil
	}
	client.Close()
	m.logger.Info().
		Str("client_id", clientID).
		Int("total_clients", total).
		Msg("WebSocket client removed")
	return nil
}

// Publish implements domain.EventSink.
func (m *Manager) Publish(event domain.Event) {
	m.Broadcast(&event)
}

// Broadcast queues event on every client. Sends never block, so this runs
// inline on the publisher's goroutine.
func (m *Manager) Broadcast(event *domain.Event) error {
	m.clientsMu.RLock()
	clients := make([]interfaces.WebSocketClient, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.clientsMu.RUnlock()

	successCount := 0
	for _, c := range clients {
		if err := c.Send(event); err != nil {
			m.logger.Warn().
				Err(err).
				Str("client_id", c.GetID()).
				Msg("Failed to send event to WebSocket client")
			if !c.IsActive() {
				m.RemoveClient(c.GetID())
			}
			continue
		}
		successCount++
	}

	m.logger.Debug().
		Int("success_count", successCount).
		Int("total_clients", len(clients)).
		Str("event_type", string(event.Type)).
		Msg("Broadcast completed")

	return nil
}

func (m *Manager) SendToClient(clientID string, event *domain.Event) error {
	m.clientsMu.RLock()
	client, exists := m.clients[clientID]
	m.clientsMu.RUnlock()

	if !exists {
		return ErrClientNotFound
	}

	if err := client.Send(event); err != nil {
		m.logger.Error().
			Err(err).
			Str("client_id", clientID).
			Msg("Failed to send event to WebSocket client")
		if !client.IsActive() {
			m.RemoveClient(clientID)
		}
		return err
	}

	return nil
}

func (m *Manager) GetClientCount() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()

	return len(m.clients)
}

// Close disconnects every client and stops the cleanup loop.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })

	m.clientsMu.Lock()
	clients := m.clients
	m.clients = make(map[string]interfaces.WebSocketClient)
	m.clientsMu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

func (m *Manager) cleanupInactiveClients() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}

		m.clientsMu.Lock()
		removed := 0
		for clientID, client := range m.clients {
			if !client.IsActive() {
				delete(m.clients, clientID)
				removed++
			}
		}
		active := len(m.clients)
		m.clientsMu.Unlock()

		if removed > 0 {
			m.logger.Info().
				Int("removed_count", removed).
				Int("active_clients", active).
				Msg("Cleaned up inactive WebSocket clients")
		}
	}
}
