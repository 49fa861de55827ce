package handler

import (
	"net/http"

	"newsroom-server/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The UI is served from a different origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades progress-subscription connections.
type WSHandler struct {
	manager *ws.ConnectionManager
	logger  *zap.Logger
}

// NewWSHandler creates the websocket handler.
func NewWSHandler(manager *ws.ConnectionManager, logger *zap.Logger) *WSHandler {
	return &WSHandler{manager: manager, logger: logger.Named("WSHandler")}
}

// subscribe upgrades the connection and registers it for the
// production's progress updates.
func (h *WSHandler) subscribe(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Error: "invalid production id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.String("productionID", id.String()), zap.Error(err))
		return
	}

	client := ws.NewClient(id.String(), conn, h.manager, h.logger)
	h.manager.RegisterClient(client)
	client.Start()
}
