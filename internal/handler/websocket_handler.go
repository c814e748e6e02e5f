// internal/handler/websocket_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"smartwheel/internal/service"
	"smartwheel/internal/utils"
)

const (
	clientBuffer = 256
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeWait    = 10 * time.Second
)

// WebSocketHandler streams wheel messages to WebSocket clients. Clients may
// also send raw commands and request a status snapshot.
type WebSocketHandler struct {
	upgrader     websocket.Upgrader
	connections  *ConnectionManager
	wheelService *service.WheelService
	logger       *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler. An empty or "*"
// origin list accepts every origin.
func NewWebSocketHandler(wheelService *service.WheelService, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return &WebSocketHandler{
		upgrader:     upgrader,
		connections:  NewConnectionManager(),
		wheelService: wheelService,
		logger:       utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/messages", h.HandleMessages)
	router.GET("/stats", h.GetStats)
}

// HandleMessages upgrades the request and streams every wheel event
func (h *WebSocketHandler) HandleMessages(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	subscription, events := h.wheelService.Events().Subscribe(clientBuffer)
	client := &Client{
		ID:           uuid.New().String(),
		Connection:   conn,
		Send:         make(chan []byte, clientBuffer),
		UserAgent:    c.Request.UserAgent(),
		RemoteAddr:   c.Request.RemoteAddr,
		ConnectedAt:  time.Now(),
		subscription: subscription,
		events:       events,
		done:         make(chan struct{}),
	}

	h.connections.Register(client)
	h.logger.Info("WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type:      "status",
		Data:      h.wheelService.Snapshot(),
		Timestamp: time.Now(),
	})

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// GetStats returns the connected clients
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "WebSocket stats retrieved successfully", h.connections.GetStats())
}

func (h *WebSocketHandler) disconnect(client *Client) {
	if h.connections.Unregister(client) {
		h.wheelService.Events().Unsubscribe(client.subscription)
		h.logger.Info("WebSocket client disconnected", zap.String("client_id", client.ID))
	}
	client.close()
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.disconnect(client)
		client.Connection.Close()
	}()

	client.Connection.SetReadDeadline(time.Now().Add(pongWait))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			return
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "", "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite pumps wheel events and replies to the client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.disconnect(client)
		client.Connection.Close()
	}()

	for {
		select {
		case event, ok := <-client.events:
			if !ok {
				client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(&WebSocketMessage{
				Type:      "message",
				Data:      event,
				Timestamp: event.Timestamp,
			})
			if err != nil {
				continue
			}
			if !h.write(client, data) {
				return
			}

		case data := <-client.Send:
			if !h.write(client, data) {
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.done:
			return
		}
	}
}

func (h *WebSocketHandler) write(client *Client, data []byte) bool {
	client.Connection.SetWriteDeadline(time.Now().Add(writeWait))
	if err := client.Connection.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Error("WebSocket write error",
			zap.Error(err),
			zap.String("client_id", client.ID),
		)
		return false
	}
	return true
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	case "status":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "status",
			Data:      h.wheelService.Snapshot(),
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	case "command":
		cmd, _ := message.Data.(string)
		queued, err := h.wheelService.Command(cmd)
		if err != nil {
			h.sendError(client, message.RequestID, err.Error())
			return
		}
		h.sendMessage(client, &WebSocketMessage{
			Type:      "command_queued",
			Data:      CommandResult{Command: queued},
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.sendError(client, message.RequestID, "unknown message type: "+message.Type)
	}
}

// sendMessage queues a message for the client; it is dropped when the
// client is slow or gone
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	select {
	case client.Send <- data:
	case <-client.done:
	default:
		h.logger.Warn("WebSocket client buffer full", zap.String("client_id", client.ID))
	}
}

func (h *WebSocketHandler) sendError(client *Client, requestID, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      "error",
		Data:      map[string]string{"error": errorMsg},
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// GetConnectionStats returns the connected clients
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
