// Package websocket pushes document transition events to browser clients.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kirillkom/docflow/internal/core/domain"
)

const (
	TypeConnectionEstablished = "connection_established"
	TypeWorkflowStatus        = "workflow_status"
	TypeHumanReviewRequired   = "human_review_required"
	TypeWorkflowCompleted     = "workflow_completed"
	TypeErrorNotification     = "error_notification"
	TypePong                  = "pong"
)

// Message is the JSON frame sent to clients.
type Message struct {
	Type       string                `json:"type"`
	DocumentID string                `json:"document_id"`
	Status     domain.DocumentStatus `json:"status,omitempty"`
	Stage      domain.Stage          `json:"stage,omitempty"`
	Message    string                `json:"message,omitempty"`
	Data       any                   `json:"data,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// StatusLookup answers a client "get_status" request.
type StatusLookup func(ctx context.Context, documentID string) (any, error)

type Options struct {
	// AllowedOrigins lists hosts allowed to connect; "*" allows any and
	// "*.example.com" allows subdomains. Requests without Origin are accepted.
	AllowedOrigins []string
	SendBuffer     int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	Status         StatusLookup
	OnOpen         func()
	OnClose        func()
}

// Hub fans transition events out to the clients watching each document.
type Hub struct {
	opts     Options
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	now     func() time.Time
}

func NewHub(opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 16
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	h := &Hub{
		opts:    opts,
		clients: make(map[string]map[*client]struct{}),
		now:     func() time.Time { return time.Now().UTC() },
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// Notify implements ports.Notifier. A client whose send buffer is full is
// disconnected.
func (h *Hub) Notify(_ context.Context, event domain.TransitionEvent) {
	msg := Message{
		Type:       messageType(event.NewStatus),
		DocumentID: event.DocumentID,
		Status:     event.NewStatus,
		Stage:      event.Stage,
		Message:    event.Reason,
		Timestamp:  event.Timestamp,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[event.DocumentID] {
		c.enqueue(msg)
	}
}

// Watchers reports how many clients follow documentID.
func (h *Hub) Watchers(documentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[documentID])
}

// Serve upgrades the request and streams events for documentID until the
// client disconnects or ctx of the request ends.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, documentID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		hub:        h,
		conn:       conn,
		documentID: documentID,
		send:       make(chan Message, h.opts.SendBuffer),
		done:       make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	c.enqueue(Message{
		Type:       TypeConnectionEstablished,
		DocumentID: documentID,
		Message:    "Connected to document " + documentID + " updates",
		Timestamp:  h.now(),
	})
	c.replyStatus(r.Context())

	go c.writeLoop()
	c.readLoop(r.Context())
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	if h.clients[c.documentID] == nil {
		h.clients[c.documentID] = make(map[*client]struct{})
	}
	h.clients[c.documentID][c] = struct{}{}
	h.mu.Unlock()
	if h.opts.OnOpen != nil {
		h.opts.OnOpen()
	}
	slog.Debug("stream_client_connected", "document_id", c.documentID)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set, ok := h.clients[c.documentID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.documentID)
		}
	}
	h.mu.Unlock()
	c.close()
	if h.opts.OnClose != nil {
		h.opts.OnClose()
	}
	slog.Debug("stream_client_disconnected", "document_id", c.documentID)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.opts.AllowedOrigins) == 0 {
		return sameHost(origin, r.Host)
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, allowed := range h.opts.AllowedOrigins {
		allowed = strings.TrimSpace(allowed)
		switch {
		case allowed == "*", allowed == host:
			return true
		case strings.HasPrefix(allowed, "*.") && strings.HasSuffix(host, allowed[1:]):
			return true
		}
	}
	slog.Warn("stream_origin_rejected", "origin", origin)
	return false
}

func sameHost(origin, host string) bool {
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, host)
}

func messageType(status domain.DocumentStatus) string {
	switch status {
	case domain.StatusHumanReviewRequired:
		return TypeHumanReviewRequired
	case domain.StatusCompleted:
		return TypeWorkflowCompleted
	case domain.StatusFailed:
		return TypeErrorNotification
	default:
		return TypeWorkflowStatus
	}
}

type client struct {
	hub        *Hub
	conn       *websocket.Conn
	documentID string
	send       chan Message

	once sync.Once
	done chan struct{}
}

func (c *client) enqueue(msg Message) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		slog.Warn("stream_client_too_slow", "document_id", c.documentID, "type", msg.Type)
		c.close()
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.hub.opts.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

type clientRequest struct {
	Type string `json:"type"`
}

func (c *client) readLoop(ctx context.Context) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var req clientRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			continue
		}
		switch req.Type {
		case "ping":
			c.enqueue(Message{Type: TypePong, DocumentID: c.documentID, Timestamp: c.hub.now()})
		case "get_status":
			c.replyStatus(ctx)
		}
	}
}

func (c *client) replyStatus(ctx context.Context) {
	if c.hub.opts.Status == nil {
		return
	}
	view, err := c.hub.opts.Status(ctx, c.documentID)
	if err != nil {
		c.enqueue(Message{Type: TypeErrorNotification, DocumentID: c.documentID, Message: err.Error(), Timestamp: c.hub.now()})
		return
	}
	c.enqueue(Message{Type: TypeWorkflowStatus, DocumentID: c.documentID, Data: view, Timestamp: c.hub.now()})
}
