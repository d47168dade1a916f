package mockserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/invoicedash/pkg/realtime"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// conn is one dashboard socket. Only writePump writes to ws.
type conn struct {
	id      string
	ws      *websocket.Conn
	send    chan realtime.Envelope
	done    chan struct{}
	once    sync.Once
	metrics *Metrics
	logger  *logrus.Entry
}

func newConn(id string, ws *websocket.Conn, m *Metrics, logger *logrus.Entry) *conn {
	return &conn{
		id:      id,
		ws:      ws,
		send:    make(chan realtime.Envelope, sendBuffer),
		done:    make(chan struct{}),
		metrics: m,
		logger:  logger.WithField("client", id),
	}
}

// enqueue queues env without blocking. A client that cannot keep up loses
// the frame.
func (c *conn) enqueue(env realtime.Envelope) {
	if env.Event == "" {
		return
	}
	select {
	case <-c.done:
	case c.send <- env:
	default:
		c.logger.WithField("event", env.Event).Warn("Send buffer full, dropping frame")
	}
}

// close tells the peer goodbye and tears the socket down. WriteControl is
// safe alongside writePump's writes.
func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// readPump decodes frames until the socket fails and hands each to handle.
func (c *conn) readPump(handle func(realtime.Envelope)) {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.WithError(err).Debug("Socket closed unexpectedly")
			}
			return
		}

		var env realtime.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.metrics.received.WithLabelValues("invalid").Inc()
			c.enqueue(realtime.Envelope{Event: realtime.EventError, Data: mustJSON(realtime.ErrorPayload{Message: "malformed frame"})})
			continue
		}
		c.metrics.received.WithLabelValues(env.Event).Inc()
		handle(env)
	}
}

// writePump drains the send queue and keeps the peer alive with pings.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case env := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(env); err != nil {
				c.logger.WithError(err).Debug("Write failed")
				return
			}
			c.metrics.sent.WithLabelValues(env.Event).Inc()
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func mustJSON(v interface{}) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
