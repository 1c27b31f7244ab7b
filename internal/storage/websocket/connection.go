package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/skidline/racecore/pkg/streaming"
)

const (
	sendChSize   = 10_000
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// SecretHeader carries the server secret on the upgrade request.
const SecretHeader = "X-Api-Key"

// ErrClosed is returned for sends after Close.
var ErrClosed = errors.New("websocket connection closed")

type outbound struct {
	data []byte
	// droppable messages are discarded when the send queue is full
	droppable bool
}

// connection owns one server socket with a single writer. Vehicle states are
// dropped under backpressure; every other message waits for queue space.
type connection struct {
	mu           sync.Mutex
	conn         *ws.Conn
	closed       bool
	reconnecting bool
	// start_race replayed after a reconnect
	startMsg []byte
	// ack waiters by acknowledged message type
	waiters map[string]chan struct{}

	sendCh  chan outbound
	done    chan struct{}
	dropped atomic.Int64

	wsURL  string
	secret string
	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:  make(chan outbound, sendChSize),
		done:    make(chan struct{}),
		waiters: make(map[string]chan struct{}),
		logger:  logger,
	}
}

func (c *connection) dial(rawURL, secret string) error {
	c.wsURL, c.secret = rawURL, secret
	conn, err := c.dialOnce()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.start(conn)
	return nil
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	header := http.Header{}
	if c.secret != "" {
		header.Set(SecretHeader, c.secret)
	}
	dialer := ws.Dialer{HandshakeTimeout: writeWait}
	conn, _, err := dialer.Dial(c.wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// start runs the loops of one socket. The write loop ends with the read loop.
func (c *connection) start(conn *ws.Conn) {
	stop := make(chan struct{})
	go c.writeLoop(conn, stop)
	go func() {
		err := c.readLoop(conn)
		close(stop)
		if err != nil {
			c.logger.Warn("WebSocket read error", "error", err)
			c.reconnect(conn)
		}
	}()
}

func (c *connection) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case msg := <-c.sendCh:
			if err := write(conn, msg.data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				c.requeue(msg)
				c.reconnect(conn)
				return
			}
		}
	}
}

// requeue puts back a message the broken socket failed to write.
func (c *connection) requeue(msg outbound) {
	if msg.droppable {
		c.dropped.Add(1)
		return
	}
	select {
	case c.sendCh <- msg:
	default:
		c.logger.Warn("WebSocket send queue full, message lost after write error")
	}
}

func write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readLoop releases ack waiters until the socket fails. Anything that is not
// an ack is ignored. It returns nil after close.
func (c *connection) readLoop(conn *ws.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
				return err
			}
		}
		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("Ignoring server message", "raw", string(message))
			continue
		}
		c.mu.Lock()
		if ch, ok := c.waiters[ack.For]; ok {
			close(ch)
			delete(c.waiters, ack.For)
		}
		c.mu.Unlock()
	}
}

// reconnect replaces broken with a fresh socket. Both loops of a broken
// socket may call it; only the first does the work.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.reconnecting || c.conn != broken {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.conn = nil
	c.mu.Unlock()
	_ = broken.Close()

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		timer := time.NewTimer(backoff)
		select {
		case <-c.done:
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = min(backoff*2, maxBackoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			continue
		}
		c.mu.Lock()
		replay := c.startMsg
		c.mu.Unlock()
		if replay != nil {
			if err := write(conn, replay); err != nil {
				c.logger.Warn("Failed to replay start_race after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()
		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		c.start(conn)
		return
	}
	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// setStart remembers the race announcement for replay. Nil forgets it.
func (c *connection) setStart(data []byte) {
	c.mu.Lock()
	c.startMsg = data
	c.mu.Unlock()
}

// send queues data for the writer. Droppable data never blocks; other data
// waits up to writeWait for room.
func (c *connection) send(data []byte, droppable bool) error {
	msg := outbound{data: data, droppable: droppable}
	if droppable {
		select {
		case c.sendCh <- msg:
		default:
			if n := c.dropped.Add(1); n%1000 == 1 {
				c.logger.Warn("WebSocket send queue full, dropping vehicle states", "dropped", n)
			}
		}
		return nil
	}

	timer := time.NewTimer(writeWait)
	defer timer.Stop()
	select {
	case c.sendCh <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	case <-timer.C:
		return fmt.Errorf("websocket send queue full for %s", writeWait)
	}
}

// sendAndWait sends data and blocks until the server acknowledges ackFor.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	acked := make(chan struct{})
	c.mu.Lock()
	c.waiters[ackFor] = acked
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.waiters[ackFor] == acked {
			delete(c.waiters, ackFor)
		}
		c.mu.Unlock()
	}()

	if err := c.send(data, false); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-acked:
		return nil
	case <-timer.C:
		return fmt.Errorf("timeout waiting for ack of %q", ackFor)
	case <-c.done:
		return fmt.Errorf("%w while waiting for ack of %q", ErrClosed, ackFor)
	}
}

func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return conn.Close()
}

func (c *connection) droppedCount() int { return int(c.dropped.Load()) }
