package ws

import (
	"encoding/json"
	"sync"

	"newsroom-server/internal/messaging"

	"go.uber.org/zap"
)

// ConnectionManager tracks the websocket sessions watching each
// production and fans progress updates out to them.
type ConnectionManager struct {
	clients    map[string]map[*Client]bool // productionID -> sessions
	register   chan *Client
	unregister chan *Client
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewConnectionManager creates and starts the manager loop.
func NewConnectionManager(logger *zap.Logger) *ConnectionManager {
	m := &ConnectionManager{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.Named("ConnectionManager"),
	}
	go m.run()
	return m
}

func (m *ConnectionManager) run() {
	m.logger.Info("ConnectionManager started")
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			sessions, ok := m.clients[client.ProductionID]
			if !ok {
				sessions = make(map[*Client]bool)
				m.clients[client.ProductionID] = sessions
			}
			sessions[client] = true
			m.mu.Unlock()
			m.logger.Debug("Client registered", zap.String("productionID", client.ProductionID))

		case client := <-m.unregister:
			m.mu.Lock()
			if sessions, ok := m.clients[client.ProductionID]; ok {
				if _, found := sessions[client]; found {
					delete(sessions, client)
					close(client.send)
					if len(sessions) == 0 {
						delete(m.clients, client.ProductionID)
					}
				}
			}
			m.mu.Unlock()
			m.logger.Debug("Client unregistered", zap.String("productionID", client.ProductionID))
		}
	}
}

// RegisterClient adds a session.
func (m *ConnectionManager) RegisterClient(client *Client) {
	m.register <- client
}

// UnregisterClient removes a session.
func (m *ConnectionManager) UnregisterClient(client *Client) {
	m.unregister <- client
}

// Deliver implements messaging.ProgressSink: every session watching the
// update's production gets a copy. Sessions with a full send queue are
// skipped, the next update carries fresher state anyway.
func (m *ConnectionManager) Deliver(update messaging.ProgressUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		m.logger.Error("Failed to marshal progress update for delivery", zap.Error(err))
		return
	}

	m.mu.RLock()
	sessions := m.clients[update.ProductionID]
	for client := range sessions {
		select {
		case client.send <- payload:
		default:
			m.logger.Warn("Client send queue full, dropping update",
				zap.String("productionID", update.ProductionID))
		}
	}
	m.mu.RUnlock()
}
