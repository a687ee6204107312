package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastsStatusToConnectedClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// give the hub's register channel a moment to process before broadcasting
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, hub.BroadcastStatus(RunStatus{RunID: "r1", Mode: "genetic", Iteration: 3, Total: 10, BestFitness: 7.5}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, body, err := conn.ReadMessage()
	require.NoError(t, err)

	var got RunStatus
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 3, got.Iteration)
	assert.Equal(t, 7.5, got.BestFitness)
}
