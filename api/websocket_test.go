package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubReplaysHistoryAndBroadcastsLive(t *testing.T) {
	hub := NewHub()
	hub.Broadcast(">>>", "AT")
	hub.Broadcast("<<<", "OK\r\n")

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// Events from before the connect are replayed in order.
	var ev TraceEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, ">>>", ev.Direction)
	assert.Equal(t, "AT", ev.Text)
	assert.Empty(t, ev.Label, "sent lines carry no classification")

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "<<<", ev.Direction)
	assert.Equal(t, "OK\r\n", ev.Text)
	assert.Equal(t, "ok", ev.Label)

	// A broadcast after connect reaches the live client.
	hub.Broadcast(">>>", "AT+CIPCLOSE")
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "AT+CIPCLOSE", ev.Text)
}

func TestHubHistoryIsCapped(t *testing.T) {
	hub := NewHub()
	for i := 0; i < historyCap+100; i++ {
		hub.Broadcast(">>>", "AT")
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	assert.Len(t, hub.history, historyCap)
}
