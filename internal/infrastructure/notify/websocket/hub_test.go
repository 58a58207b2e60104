package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/infrastructure/notify/websocket"
)

func startHub(t *testing.T, opts websocket.Options) (*websocket.Hub, string) {
	t.Helper()
	hub := websocket.NewHub(opts)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, strings.TrimPrefix(r.URL.Path, "/"))
	}))
	t.Cleanup(server.Close)
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *gorilla.Conn) websocket.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg websocket.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitWatchers(t *testing.T, hub *websocket.Hub, documentID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Watchers(documentID) == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubPushesTransitionsToDocumentWatchers(t *testing.T) {
	hub, url := startHub(t, websocket.Options{})
	conn := dial(t, url+"/doc-1", nil)
	other := dial(t, url+"/doc-2", nil)

	hello := read(t, conn)
	assert.Equal(t, websocket.TypeConnectionEstablished, hello.Type)
	assert.Equal(t, "doc-1", hello.DocumentID)
	_ = read(t, other)
	waitWatchers(t, hub, "doc-1", 1)

	hub.Notify(context.Background(), domain.TransitionEvent{
		DocumentID: "doc-1",
		NewStatus:  domain.StatusHumanReviewRequired,
		Stage:      domain.StageAnomalyDetection,
		Reason:     "Low confidence in extraction",
		Timestamp:  time.Now().UTC(),
	})
	msg := read(t, conn)
	assert.Equal(t, websocket.TypeHumanReviewRequired, msg.Type)
	assert.Equal(t, domain.StatusHumanReviewRequired, msg.Status)
	assert.Equal(t, "Low confidence in extraction", msg.Message)

	hub.Notify(context.Background(), domain.TransitionEvent{DocumentID: "doc-1", NewStatus: domain.StatusCompleted})
	assert.Equal(t, websocket.TypeWorkflowCompleted, read(t, conn).Type)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "watchers of another document must not receive the event")
}

func TestHubAnswersPingAndStatus(t *testing.T) {
	hub, url := startHub(t, websocket.Options{
		Status: func(_ context.Context, documentID string) (any, error) {
			return map[string]string{"document_id": documentID, "status": "processing"}, nil
		},
	})
	conn := dial(t, url+"/doc-9", nil)
	assert.Equal(t, websocket.TypeConnectionEstablished, read(t, conn).Type)
	initial := read(t, conn)
	assert.Equal(t, websocket.TypeWorkflowStatus, initial.Type, "current status follows the greeting")
	waitWatchers(t, hub, "doc-9", 1)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, websocket.TypePong, read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "get_status"}))
	status := read(t, conn)
	assert.Equal(t, websocket.TypeWorkflowStatus, status.Type)
	data, ok := status.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "processing", data["status"])
}

func TestHubTracksDisconnects(t *testing.T) {
	var opened, closed atomic.Int32
	hub, url := startHub(t, websocket.Options{
		OnOpen:  func() { opened.Add(1) },
		OnClose: func() { closed.Add(1) },
	})
	conn := dial(t, url+"/doc-3", nil)
	_ = read(t, conn)
	waitWatchers(t, hub, "doc-3", 1)

	require.NoError(t, conn.Close())
	waitWatchers(t, hub, "doc-3", 0)
	assert.Equal(t, int32(1), opened.Load())
	assert.Eventually(t, func() bool { return closed.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	_, url := startHub(t, websocket.Options{AllowedOrigins: []string{"app.example.com"}})

	_, resp, err := gorilla.DefaultDialer.Dial(url+"/doc-1", http.Header{"Origin": {"https://evil.test"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, url+"/doc-1", http.Header{"Origin": {"https://app.example.com"}})
	assert.Equal(t, websocket.TypeConnectionEstablished, read(t, conn).Type)
}
