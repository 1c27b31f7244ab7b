package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skidline/racecore/pkg/streaming"
)

func TestSend_DropsOnlyVehicleStates(t *testing.T) {
	c := newConnection(slog.Default())
	c.sendCh = make(chan outbound, 1)

	require.NoError(t, c.send([]byte("state-1"), true))
	require.NoError(t, c.send([]byte("state-2"), true))
	assert.Equal(t, 1, c.droppedCount())

	// A lap never gets dropped; with the queue full it waits until close.
	require.NoError(t, c.close())
	assert.ErrorIs(t, c.send([]byte("lap"), false), ErrClosed)
	assert.Equal(t, 1, c.droppedCount())
	assert.Equal(t, "state-1", string((<-c.sendCh).data))
}

func TestClose_Twice(t *testing.T) {
	c := newConnection(slog.Default())
	require.NoError(t, c.close())
	require.NoError(t, c.close())
}

func TestSendAndWait_IgnoresOtherAcks(t *testing.T) {
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			// acknowledge the wrong message first
			for _, typ := range []string{streaming.TypeStartRace, streaming.TypeEndRace} {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: typ})
				if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))
	defer srv.Close()

	c := newConnection(slog.Default())
	require.NoError(t, c.dial(wsURL(srv), ""))
	defer c.close()

	data, err := marshalEnvelope(streaming.TypeEndRace, streaming.EndRacePayload{RaceUUID: "r-1"})
	require.NoError(t, err)
	require.NoError(t, c.sendAndWait(data, streaming.TypeEndRace, 2*time.Second))

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.waiters)
}

func TestReconnect_ReplaysStartRace(t *testing.T) {
	var mu sync.Mutex
	var perConn [][]string

	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		mu.Lock()
		perConn = append(perConn, nil)
		n := len(perConn) - 1
		mu.Unlock()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			mu.Lock()
			perConn[n] = append(perConn[n], env.Type)
			mu.Unlock()

			data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				return
			}
			if n == 0 {
				// drop the first client after its race announcement
				return
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	defer b.Close()
	require.NoError(t, b.StartRace(testRace()))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(perConn) == 2 && len(perConn[1]) == 1
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, b.EndRace())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{streaming.TypeStartRace}, perConn[0])
	assert.Equal(t, []string{streaming.TypeStartRace, streaming.TypeEndRace}, perConn[1])
}
