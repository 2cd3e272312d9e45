package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const writeWait = 10 * time.Second

// WSMessage is the frame sent to websocket clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketHandler streams job lifecycle events to connected clients
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	allowedEvents    map[interfaces.EventType]bool          // Empty = allow all
	throttlers       map[interfaces.EventType]*rate.Limiter // Nil entry = no throttling
	serverInstanceID string                                 // Clients use it to detect a server restart
}

// NewWebSocketHandler creates the handler and subscribes it to every
// lifecycle event on eventService.
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]*sync.Mutex),
		allowedEvents:    make(map[interfaces.EventType]bool),
		throttlers:       make(map[interfaces.EventType]*rate.Limiter),
		serverInstanceID: uuid.New().String(),
	}

	if config != nil {
		for _, eventType := range config.AllowedEvents {
			h.allowedEvents[interfaces.EventType(eventType)] = true
		}
		for eventType, intervalStr := range config.ThrottleIntervals {
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Failed to parse throttle interval - throttler disabled")
				continue
			}
			h.throttlers[interfaces.EventType(eventType)] = rate.NewLimiter(rate.Every(duration), 1)
		}
	}

	if eventService != nil {
		for _, eventType := range interfaces.AllEventTypes() {
			if err := eventService.Subscribe(eventType, h.handleEvent); err != nil {
				logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe websocket handler")
			}
		}
	}

	logger.Debug().
		Str("server_instance_id", h.serverInstanceID).
		Int("allowed_events", len(h.allowedEvents)).
		Int("throttled_events", len(h.throttlers)).
		Msg("WebSocket handler initialized")

	return h
}

// HandleWebSocket handles WebSocket connections. GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	mutex := &sync.Mutex{}
	h.mu.Lock()
	h.clients[conn] = mutex
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	h.send(conn, mutex, WSMessage{
		Type: "status",
		Payload: map[string]interface{}{
			"server_instance_id": h.serverInstanceID,
			"version":            common.GetVersion(),
		},
	})

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Int("clients", remaining).Msg("WebSocket client disconnected")
	}()

	// Read until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHandler) handleEvent(ctx context.Context, event interfaces.Event) error {
	if len(h.allowedEvents) > 0 && !h.allowedEvents[event.Type] {
		return nil
	}
	if limiter := h.throttlers[event.Type]; limiter != nil && !limiter.Allow() {
		return nil
	}
	h.Broadcast(WSMessage{Type: string(event.Type), Payload: event.Payload})
	return nil
}

// Broadcast sends msg to every connected client
func (h *WebSocketHandler) Broadcast(msg WSMessage) {
	h.mu.RLock()
	clients := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, mutex := range h.clients {
		clients[conn] = mutex
	}
	h.mu.RUnlock()

	for conn, mutex := range clients {
		h.send(conn, mutex, msg)
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, mutex *sync.Mutex, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal websocket message")
		return
	}

	mutex.Lock()
	defer mutex.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send websocket message")
	}
}
