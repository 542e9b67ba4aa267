package websocket

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/raaihank/mail-sentinel/internal/config"
	"github.com/raaihank/mail-sentinel/internal/logger"
	"github.com/raaihank/mail-sentinel/internal/observability"
)

// Hub maintains the set of active clients and broadcasts events to them.
// The client set is owned by the Run goroutine.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	direct     chan directEvent
	done       chan struct{}

	config   config.WebSocketConfig
	upgrader websocket.Upgrader
	logger   *logger.Logger
	metrics  *observability.Metrics

	mu    sync.RWMutex
	stats HubStats
}

// HubStats tracks WebSocket hub statistics
type HubStats struct {
	TotalConnections  int64     `json:"total_connections"`
	ActiveConnections int64     `json:"active_connections"`
	TotalMessages     int64     `json:"total_messages"`
	TotalBroadcasts   int64     `json:"total_broadcasts"`
	DroppedEvents     int64     `json:"dropped_events"`
	LastBroadcastTime time.Time `json:"last_broadcast_time"`
}

type subscription struct {
	client  *Client
	request SubscriptionRequest
}

type directEvent struct {
	client *Client
	event  Event
}

// NewHub creates a new WebSocket hub. metrics may be nil.
func NewHub(cfg config.WebSocketConfig, log *logger.Logger, metrics *observability.Metrics) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		direct:     make(chan directEvent),
		done:       make(chan struct{}),
		config:     cfg,
		logger:     log.WithComponent("websocket"),
		metrics:    metrics,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// Run handles client registration and broadcasting until ctx is done
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Starting WebSocket hub")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.removeClient(client)
			}
			h.logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			if h.clients[client] {
				h.removeClient(client)
				h.fanOut(connectionEvent("disconnected", client), nil)
			}

		case sub := <-h.subscribe:
			if h.clients[sub.client] {
				request := sub.request
				sub.client.Subscription = &request
				h.logger.Debug("Client subscription updated",
					zap.String("client_id", sub.client.ID),
					zap.Any("events", request.Events))
			}

		case d := <-h.direct:
			if h.clients[d.client] {
				select {
				case d.client.Send <- d.event:
				default:
				}
			}

		case event := <-h.broadcast:
			h.fanOut(event, nil)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clients[client] = true

	h.mu.Lock()
	h.stats.TotalConnections++
	h.stats.ActiveConnections = int64(len(h.clients))
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(len(h.clients)))
	}

	h.logger.Info("Client connected",
		zap.String("client_id", client.ID),
		zap.String("client_ip", client.IP),
		zap.Int("active_connections", len(h.clients)))

	h.fanOut(connectionEvent("connected", client), client)
}

// removeClient drops a client and closes its send channel
func (h *Hub) removeClient(client *Client) {
	delete(h.clients, client)
	close(client.Send)

	h.mu.Lock()
	h.stats.ActiveConnections = int64(len(h.clients))
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(len(h.clients)))
	}

	h.logger.Info("Client disconnected",
		zap.String("client_id", client.ID),
		zap.Int("active_connections", len(h.clients)))
}

// fanOut delivers an event to every interested client except exclude
func (h *Hub) fanOut(event Event, exclude *Client) {
	if event.Type == EventTypeConnection && !h.config.Events.BroadcastConnections {
		return
	}

	var sent int64
	for client := range h.clients {
		if client == exclude || !shouldSendToClient(client, event) {
			continue
		}

		select {
		case client.Send <- event:
			sent++
		default:
			h.logger.Warn("Client send channel full, closing connection",
				zap.String("client_id", client.ID))
			h.removeClient(client)
		}
	}

	h.mu.Lock()
	h.stats.TotalBroadcasts++
	h.stats.TotalMessages += sent
	h.stats.LastBroadcastTime = time.Now()
	h.mu.Unlock()
}

// shouldSendToClient applies the client's subscription, if any
func shouldSendToClient(client *Client, event Event) bool {
	if client.Subscription == nil {
		return true
	}

	if !slices.Contains(client.Subscription.Events, event.Type) {
		return false
	}

	if client.Subscription.Filter != nil {
		return applyEventFilter(client.Subscription.Filter, event)
	}

	return true
}

// applyEventFilter checks category and health-check filters
func applyEventFilter(filter *EventFilter, event Event) bool {
	switch data := event.Data.(type) {
	case PIIDetectionEvent:
		if len(filter.Categories) == 0 {
			return true
		}
		for _, c := range data.Categories {
			if slices.Contains(filter.Categories, c.Category) {
				return true
			}
		}
		return false
	case ClassificationEvent:
		return len(filter.Categories) == 0 || slices.Contains(filter.Categories, data.Category)
	case RequestLogEvent:
		return !(filter.ExcludeHealth && data.Path == "/health")
	default:
		return true
	}
}

// BroadcastEvent queues an event for all clients if its type is enabled
func (h *Hub) BroadcastEvent(event Event) {
	if !h.shouldBroadcastEvent(event.Type) {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case h.broadcast <- event:
	default:
		h.mu.Lock()
		h.stats.DroppedEvents++
		h.mu.Unlock()
		h.logger.Warn("Broadcast channel full, dropping event",
			zap.String("event_type", string(event.Type)))
	}
}

// shouldBroadcastEvent checks if an event type is enabled in configuration
func (h *Hub) shouldBroadcastEvent(eventType EventType) bool {
	switch eventType {
	case EventTypePIIDetection:
		return h.config.Events.BroadcastDetections
	case EventTypeClassification:
		return h.config.Events.BroadcastClassifications
	case EventTypeRequestLog:
		return h.config.Events.BroadcastRequests
	case EventTypeConnection:
		return h.config.Events.BroadcastConnections
	default:
		return false
	}
}

// RequireAuth guards next with the dashboard credentials
func (h *Hub) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.authorize(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authorize checks basic auth and writes the 401 challenge on failure
func (h *Hub) authorize(w http.ResponseWriter, r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	if !ok || !h.validCredentials(user, pass) {
		w.Header().Set("WWW-Authenticate", `Basic realm="mail-sentinel"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

// HandleWebSocket authenticates and upgrades a dashboard connection
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	if h.config.MaxConnections > 0 && h.GetStats().ActiveConnections >= int64(h.config.MaxConnections) {
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.NewString(),
		Conn:        conn,
		Send:        make(chan Event, 256),
		ConnectedAt: time.Now(),
		IP:          clientIP(r),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) validCredentials(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.config.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.config.Password)) == 1
	return userOK && passOK
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}

	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// writePump writes queued events and pings to the client
func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Conn.WriteJSON(event); err != nil {
				h.logger.Debug("Failed to write WebSocket message",
					zap.String("client_id", client.ID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads subscription and ping messages until the connection closes
func (h *Hub) readPump(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(h.config.MaxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
		return nil
	})

	for {
		var msg ClientMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket error",
					zap.String("client_id", client.ID),
					zap.Error(err))
			}
			return
		}

		var err error
		switch msg.Type {
		case "subscribe":
			err = h.enqueueSubscription(subscription{client: client, request: msg.Data})
		case "ping":
			pong := Event{Type: EventTypePong, Timestamp: time.Now(), Data: map[string]string{"message": "pong"}}
			err = h.enqueueDirect(directEvent{client: client, event: pong})
		}
		if err != nil {
			return
		}
	}
}

var errHubStopped = errors.New("websocket hub stopped")

func (h *Hub) enqueueSubscription(sub subscription) error {
	select {
	case h.subscribe <- sub:
		return nil
	case <-h.done:
		return errHubStopped
	}
}

func (h *Hub) enqueueDirect(d directEvent) error {
	select {
	case h.direct <- d:
		return nil
	case <-h.done:
		return errHubStopped
	}
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

func connectionEvent(action string, client *Client) Event {
	return Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data: ConnectionEvent{
			Action:   action,
			ClientID: client.ID,
			ClientIP: client.IP,
			Message:  fmt.Sprintf("Client %s %s", client.ID, action),
		},
	}
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
