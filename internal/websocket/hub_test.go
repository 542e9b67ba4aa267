package websocket

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/mail-sentinel/internal/config"
	"github.com/raaihank/mail-sentinel/internal/logger"
	"github.com/raaihank/mail-sentinel/internal/observability"
	"github.com/raaihank/mail-sentinel/internal/privacy"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	cfg := config.GetDefaults().WebSocket
	cfg.Enabled = true
	cfg.Password = "secret"

	hub := NewHub(cfg, logger.NewNop(), observability.NewMetrics("test"))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return hub, server
}

func dial(t *testing.T, server *httptest.Server, user, pass string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+pass)))
	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), header)
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event map[string]interface{}
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestHandleWebSocket_Auth(t *testing.T) {
	_, server := startHub(t)

	_, resp, err := dial(t, server, "admin", "wrong")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := dial(t, server, "admin", "secret")
	require.NoError(t, err)
	conn.Close()
}

func TestHub_BroadcastDetection(t *testing.T) {
	hub, server := startHub(t)

	conn, _, err := dial(t, server, "admin", "secret")
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.GetStats().ActiveConnections == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastEvent(Event{
		Type: EventTypePIIDetection,
		Data: PIIDetectionEvent{
			RequestID:     "req-1",
			Path:          "/",
			Categories:    []privacy.CategoryCount{{Category: privacy.CategoryEmail, Count: 1}},
			TotalEntities: 1,
		},
	})

	event := readEvent(t, conn)
	assert.Equal(t, "pii_detection", event["type"])
	data := event["data"].(map[string]interface{})
	assert.Equal(t, "req-1", data["request_id"])
	assert.EqualValues(t, 1, data["total_entities"])
}

func TestHub_DisabledEventsAreDropped(t *testing.T) {
	hub, server := startHub(t)

	conn, _, err := dial(t, server, "admin", "secret")
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.GetStats().ActiveConnections == 1 }, 2*time.Second, 10*time.Millisecond)

	// request logs are off by default
	hub.BroadcastEvent(Event{Type: EventTypeRequestLog, Data: RequestLogEvent{Path: "/"}})
	hub.BroadcastEvent(Event{Type: EventTypeClassification, Data: ClassificationEvent{Category: "Request"}})

	event := readEvent(t, conn)
	assert.Equal(t, "classification", event["type"])
}

func TestHub_Ping(t *testing.T) {
	_, server := startHub(t)

	conn, _, err := dial(t, server, "admin", "secret")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	event := readEvent(t, conn)
	assert.Equal(t, "pong", event["type"])
}

func TestApplyEventFilter(t *testing.T) {
	filter := &EventFilter{Categories: []string{privacy.CategoryEmail}, ExcludeHealth: true}

	assert.True(t, applyEventFilter(filter, Event{Data: PIIDetectionEvent{
		Categories: []privacy.CategoryCount{{Category: privacy.CategoryEmail, Count: 2}},
	}}))
	assert.False(t, applyEventFilter(filter, Event{Data: PIIDetectionEvent{
		Categories: []privacy.CategoryCount{{Category: privacy.CategoryCVVNo, Count: 1}},
	}}))
	assert.False(t, applyEventFilter(filter, Event{Data: RequestLogEvent{Path: "/health"}}))
	assert.True(t, applyEventFilter(filter, Event{Data: RequestLogEvent{Path: "/"}}))

	client := &Client{Subscription: &SubscriptionRequest{Events: []EventType{EventTypeClassification}}}
	assert.False(t, shouldSendToClient(client, Event{Type: EventTypePIIDetection}))
	assert.True(t, shouldSendToClient(client, Event{Type: EventTypeClassification, Data: ClassificationEvent{}}))
	assert.True(t, shouldSendToClient(&Client{}, Event{Type: EventTypePIIDetection}))
}
