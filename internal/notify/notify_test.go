package notify

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/arkwallet/arkwalletd/internal/settlement"
)

func TestHubBroadcastsToConnectedClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	server := httptest.NewServer(hub)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(EventDone, "round-1")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(data), `"type":"done"`)
	require.Contains(t, string(data), `"round-1"`)
}

func TestEventTypeForState(t *testing.T) {
	cases := []struct {
		state settlement.State
		want  EventType
		ok    bool
	}{
		{settlement.StateIdle, "", false},
		{settlement.StateRegistering, EventRegistering, true},
		{settlement.StateNonces, EventNonces, true},
		{settlement.StateSignatures, EventSignatures, true},
		{settlement.StateForfeiting, EventForfeiting, true},
		{settlement.StateDone, EventDone, true},
		{settlement.StateFatal, EventFatal, true},
	}

	for _, tc := range cases {
		got, ok := eventTypeForState(tc.state)
		require.Equal(t, tc.ok, ok, "state %s", tc.state)
		require.Equal(t, tc.want, got, "state %s", tc.state)
	}
}
