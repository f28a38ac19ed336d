package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spotevents/spot/internal/application"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	subscriberSize = 16
)

type subscriber struct {
	send chan []byte
}

// Hub delivers notifications to WebSocket clients subscribed per event.
// Slow clients drop messages rather than block publishers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewHub returns an empty hub. checkOrigin may be nil to accept any origin.
func NewHub(checkOrigin func(*http.Request) bool, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		subscribers: make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: logger.With("component", "hub"),
	}
}

// Publish implements application.Broadcaster.
func (h *Hub) Publish(_ context.Context, notification application.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("broadcast: encode %s: %w", notification.Type, err)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers[notification.EventID] {
		select {
		case sub.send <- payload:
		default:
			h.logger.Warn("dropping notification for slow listener", "event_id", notification.EventID, "type", notification.Type)
		}
	}
	return nil
}

// Subscribers reports how many listeners follow eventID.
func (h *Hub) Subscribers(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[eventID])
}

func (h *Hub) subscribe(eventID string) *subscriber {
	sub := &subscriber{send: make(chan []byte, subscriberSize)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[eventID] == nil {
		h.subscribers[eventID] = make(map[*subscriber]struct{})
	}
	h.subscribers[eventID][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(eventID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers[eventID], sub)
	if len(h.subscribers[eventID]) == 0 {
		delete(h.subscribers, eventID)
	}
}

// Serve upgrades the request and streams notifications for eventID until the
// client disconnects. Authorization must happen before calling Serve.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, eventID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("broadcast: upgrade: %w", err)
	}
	defer conn.Close()

	sub := h.subscribe(eventID)
	defer h.unsubscribe(eventID, sub)
	logger := h.logger.With("event_id", eventID, "remote_addr", r.RemoteAddr)
	logger.Info("live listener connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		// Listeners never send data; reading only surfaces close frames.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case payload := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Info("live listener write failed", "error", err)
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		case <-done:
			logger.Info("live listener disconnected")
			return nil
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return nil
		}
	}
}
