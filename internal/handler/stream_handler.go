package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/escolahub/comms-api/internal/models"
	"github.com/escolahub/comms-api/internal/service"
)

// StreamHandler upgrades thread viewers to a websocket fed by the realtime
// router.
type StreamHandler struct {
	router   *service.RealtimeRouter
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewStreamHandler constructs StreamHandler.
func NewStreamHandler(router *service.RealtimeRouter, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin enforcement happens at the gateway's CORS layer.
				return true
			},
		},
		logger: logger,
	}
}

// Stream godoc
// @Summary Stream thread events of one communication
// @Tags Threads
// @Param id path string true "Communication ID"
// @Router /communications/{id}/stream [get]
func (h *StreamHandler) Stream(c *gin.Context) {
	communicationID := c.Param("id")

	events, conversations, cancel, err := h.router.Subscribe(c.Request.Context(), communicationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to attach to thread stream"})
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Initial snapshot so the viewer renders before the first event.
	if err := conn.WriteJSON(gin.H{"type": "snapshot", "conversations": conversations}); err != nil {
		return
	}

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := h.writeEvent(conn, event); err != nil {
				h.logger.Debug("stream write failed",
					zap.String("communication_id", communicationID), zap.Error(err))
				return
			}
		case <-clientClosed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *StreamHandler) writeEvent(conn *websocket.Conn, event models.ThreadEvent) error {
	return conn.WriteJSON(event)
}
