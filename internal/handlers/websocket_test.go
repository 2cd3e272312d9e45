package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/interfaces"
	"github.com/ternarybob/claimscope/internal/services/events"
)

func dial(t *testing.T, h *WebSocketHandler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var status WSMessage
	require.NoError(t, conn.ReadJSON(&status))
	require.Equal(t, "status", status.Type)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketHandler_StreamsAllowedEvents(t *testing.T) {
	eventService := events.NewService(arbor.NewLogger())
	h := NewWebSocketHandler(eventService, arbor.NewLogger(), &common.WebSocketConfig{
		AllowedEvents: []string{"job_completed", "stage_completed"},
	})
	conn := dial(t, h)
	assert.Equal(t, 1, h.ClientCount())

	ctx := context.Background()
	require.NoError(t, eventService.PublishSync(ctx, interfaces.Event{Type: interfaces.EventStageStarted, Payload: map[string]interface{}{"stage": "01_fetch_planner"}}))
	require.NoError(t, eventService.PublishSync(ctx, interfaces.Event{Type: interfaces.EventJobCompleted, Payload: map[string]interface{}{"job_id": "job-1"}}))

	msg := readMessage(t, conn)
	assert.Equal(t, "job_completed", msg.Type, "stage_started is filtered out")
	assert.Equal(t, "job-1", msg.Payload.(map[string]interface{})["job_id"])
}

func TestWebSocketHandler_Throttles(t *testing.T) {
	eventService := events.NewService(arbor.NewLogger())
	h := NewWebSocketHandler(eventService, arbor.NewLogger(), &common.WebSocketConfig{
		ThrottleIntervals: map[string]string{"stage_completed": "1h", "job_failed": "not-a-duration"},
	})
	conn := dial(t, h)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, eventService.PublishSync(ctx, interfaces.Event{Type: interfaces.EventStageCompleted, Payload: map[string]interface{}{"n": i}}))
	}
	require.NoError(t, eventService.PublishSync(ctx, interfaces.Event{Type: interfaces.EventJobFailed}))

	first := readMessage(t, conn)
	assert.Equal(t, "stage_completed", first.Type)
	assert.Equal(t, float64(0), first.Payload.(map[string]interface{})["n"])

	assert.Equal(t, "job_failed", readMessage(t, conn).Type, "later stage_completed events are dropped")
}
