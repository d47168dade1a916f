package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/invoicedash/config"
	"github.com/grovetools/invoicedash/errors"
	"github.com/grovetools/invoicedash/logging"
	"github.com/grovetools/invoicedash/pkg/models"
	"github.com/grovetools/invoicedash/version"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

// State is the connectivity of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// AckFunc receives the peer's acknowledgment payload, or an error when the
// acknowledgment timed out or the connection dropped first. It is called at
// most once.
type AckFunc func(data json.RawMessage, err error)

// Options configures a Client.
type Options struct {
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	AckTimeout        time.Duration
	HandshakeTimeout  time.Duration
	Header            http.Header
}

// DefaultOptions returns the options of the stock dashboard.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Client)
}

// OptionsFromConfig maps the client section of the configuration.
func OptionsFromConfig(cfg config.ClientConfig) Options {
	return Options{
		URL:               cfg.URL,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay(),
		AckTimeout:        cfg.AckTimeout(),
		HandshakeTimeout:  cfg.HandshakeTimeout(),
	}
}

type pendingAck struct {
	event string
	fn    AckFunc
	timer *time.Timer
}

// Client is a reconnecting event socket. Handlers are held by the client,
// not the connection, so they may be registered before Connect and survive
// reconnection.
type Client struct {
	opts   Options
	dialer *websocket.Dialer
	logger *logrus.Entry

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	stop    chan struct{} // closed by Disconnect
	pending map[uint64]*pendingAck
	nextAck uint64

	writeMu sync.Mutex

	handlersMu     sync.RWMutex
	onUpdated      []func(models.InvoiceUpdate)
	onCreated      []func(models.NewInvoice)
	onNotification []func(models.Notification)
	onActivity     []func(models.Activity)
	onState        []func(State)
}

// NewClient creates a disconnected client. A nil logger uses the
// "realtime" component logger.
func NewClient(opts Options, logger *logrus.Entry) *Client {
	defaults := DefaultOptions()
	if opts.URL == "" {
		opts.URL = defaults.URL
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaults.ReconnectDelay
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = defaults.AckTimeout
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaults.HandshakeTimeout
	}
	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if header.Get("User-Agent") == "" {
		header.Set("User-Agent", version.UserAgent())
	}
	opts.Header = header

	if logger == nil {
		logger = logging.NewLogger("realtime")
	}

	return &Client{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger:  logger.WithField("url", opts.URL),
		pending: make(map[uint64]*pendingAck),
	}
}

// State returns the current connectivity.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the socket is up.
func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// Connect dials the server, retrying up to ReconnectAttempts times. It is
// a no-op unless the client is disconnected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	c.stop = stop
	c.state = StateConnecting
	c.mu.Unlock()
	c.notifyState(StateConnecting)

	conn, err := c.dial(ctx, stop, 1+c.opts.ReconnectAttempts, false)
	if err != nil {
		c.settle(stop)
		return err
	}
	return c.attach(conn, stop)
}

// Disconnect closes the socket and stops any reconnection in progress.
// Registered handlers are kept.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.stop != nil {
		select {
		case <-c.stop:
		default:
			close(c.stop)
		}
	}
	conn := c.conn
	c.conn = nil
	pending := c.takePendingLocked()
	changed := c.state != StateDisconnected
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
		c.logger.Info("Disconnected from real-time server")
	}
	failPending(pending)
	if changed {
		c.notifyState(StateDisconnected)
	}
}

// OnInvoiceUpdated adds a handler for invoice-updated events.
func (c *Client) OnInvoiceUpdated(fn func(models.InvoiceUpdate)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onUpdated = append(c.onUpdated, fn)
}

// OnInvoiceCreated adds a handler for invoice-created events.
func (c *Client) OnInvoiceCreated(fn func(models.NewInvoice)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onCreated = append(c.onCreated, fn)
}

// OnNotification adds a handler for notification events.
func (c *Client) OnNotification(fn func(models.Notification)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onNotification = append(c.onNotification, fn)
}

// OnActivityCreated adds a handler for create-activity events.
func (c *Client) OnActivityCreated(fn func(models.Activity)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onActivity = append(c.onActivity, fn)
}

// OnStateChange adds an observer of connectivity transitions.
func (c *Client) OnStateChange(fn func(State)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onState = append(c.onState, fn)
}

// RemoveListeners detaches every event handler. State observers stay.
func (c *Client) RemoveListeners() {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onUpdated = nil
	c.onCreated = nil
	c.onNotification = nil
	c.onActivity = nil
}

// EmitInvoiceUpdate sends update-invoice. ack may be nil. When an error is
// returned ack is never called.
func (c *Client) EmitInvoiceUpdate(update models.InvoiceUpdate, ack AckFunc) error {
	return c.emit(EventUpdateInvoice, update, ack)
}

// CreateInvoice sends create-invoice. ack may be nil.
func (c *Client) CreateInvoice(req models.NewInvoiceRequest, ack AckFunc) error {
	return c.emit(EventCreateInvoice, req, ack)
}

func (c *Client) emit(event string, payload interface{}, ack AckFunc) error {
	env, err := NewEnvelope(event, payload, 0)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to encode event").WithDetail("event", event)
	}

	c.mu.Lock()
	conn := c.conn
	if conn == nil || c.state != StateConnected {
		c.mu.Unlock()
		return errors.NotConnected(event)
	}
	if ack != nil {
		c.nextAck++
		id := c.nextAck
		env.AckID = id
		p := &pendingAck{event: event, fn: ack}
		p.timer = time.AfterFunc(c.opts.AckTimeout, func() { c.expire(id) })
		c.pending[id] = p
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteJSON(env)
	c.writeMu.Unlock()
	if err != nil {
		c.resolve(env.AckID)
		return errors.Wrap(err, errors.ErrCodeNotConnected, "failed to send event").WithDetail("event", event)
	}

	c.logger.WithFields(logrus.Fields{"event": event, "ack_id": env.AckID}).Debug("Sent event")
	return nil
}

// dial tries up to attempts times, ReconnectDelay apart. It gives up early
// when ctx is done or stop is closed.
func (c *Client) dial(ctx context.Context, stop <-chan struct{}, attempts int, delayFirst bool) (*websocket.Conn, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 || delayFirst {
			timer := time.NewTimer(c.opts.ReconnectDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, errors.ConnectionFailed(c.opts.URL, attempt-1, ctx.Err())
			case <-timer.C:
			}
		}

		conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
		if err == nil {
			return conn, nil
		}
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		lastErr = err
		c.logger.WithError(err).WithField("attempt", attempt).Warn("Connection attempt failed")
		if ctx.Err() != nil {
			return nil, errors.ConnectionFailed(c.opts.URL, attempt, lastErr)
		}
	}
	return nil, errors.ConnectionFailed(c.opts.URL, attempts, lastErr)
}

// attach installs conn unless Disconnect ran while dialing.
func (c *Client) attach(conn *websocket.Conn, stop chan struct{}) error {
	c.mu.Lock()
	select {
	case <-stop:
		c.mu.Unlock()
		_ = conn.Close()
		return errors.NotConnected("connect")
	default:
	}
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Info("Connected to real-time server")
	c.notifyState(StateConnected)
	go c.readLoop(conn, stop)
	return nil
}

// settle marks a failed dial as disconnected, unless a newer Connect or a
// Disconnect already owns the state.
func (c *Client) settle(stop chan struct{}) {
	c.mu.Lock()
	if c.stop != stop || c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.mu.Unlock()
	c.notifyState(StateDisconnected)
}

func (c *Client) readLoop(conn *websocket.Conn, stop chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, stop, err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.WithError(err).Error("Dropping malformed frame")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) handleDrop(conn *websocket.Conn, stop chan struct{}, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	pending := c.takePendingLocked()
	c.state = StateDisconnected
	c.mu.Unlock()

	_ = conn.Close()
	failPending(pending)
	c.logger.WithError(cause).Warn("Disconnected from real-time server")
	c.notifyState(StateDisconnected)

	if c.opts.ReconnectAttempts > 0 {
		go c.reconnect(stop)
	}
}

func (c *Client) reconnect(stop chan struct{}) {
	c.mu.Lock()
	if c.stop != stop || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	select {
	case <-stop:
		c.mu.Unlock()
		return
	default:
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.notifyState(StateConnecting)

	conn, err := c.dial(context.Background(), stop, c.opts.ReconnectAttempts, true)
	if err != nil {
		c.logger.WithError(err).Error("Giving up on reconnection")
		c.settle(stop)
		return
	}
	if err := c.attach(conn, stop); err != nil {
		c.logger.WithError(err).Debug("Discarding connection opened after disconnect")
	}
}

func (c *Client) dispatch(env Envelope) {
	log := c.logger.WithField("event", env.Event)

	switch env.Event {
	case EventInvoiceUpdated:
		var update models.InvoiceUpdate
		if err := env.Decode(&update); err != nil {
			log.WithError(err).Error("Ignoring event")
			return
		}
		c.handlersMu.RLock()
		handlers := c.onUpdated
		c.handlersMu.RUnlock()
		for _, fn := range handlers {
			fn(update)
		}

	case EventInvoiceCreated:
		var created models.NewInvoice
		if err := env.Decode(&created); err != nil {
			log.WithError(err).Error("Ignoring event")
			return
		}
		c.handlersMu.RLock()
		handlers := c.onCreated
		c.handlersMu.RUnlock()
		for _, fn := range handlers {
			fn(created)
		}

	case EventNotification:
		var n models.Notification
		if err := env.Decode(&n); err != nil {
			log.WithError(err).Error("Ignoring event")
			return
		}
		c.handlersMu.RLock()
		handlers := c.onNotification
		c.handlersMu.RUnlock()
		for _, fn := range handlers {
			fn(n)
		}

	case EventActivityCreated:
		var a models.Activity
		if err := env.Decode(&a); err != nil {
			log.WithError(err).Error("Ignoring event")
			return
		}
		c.handlersMu.RLock()
		handlers := c.onActivity
		c.handlersMu.RUnlock()
		for _, fn := range handlers {
			fn(a)
		}

	case EventError:
		var p ErrorPayload
		if err := env.Decode(&p); err != nil {
			p.Message = string(env.Data)
		}
		log.WithField("message", p.Message).Error("Socket error")

	case EventAck:
		p := c.resolve(env.AckID)
		if p == nil {
			log.WithField("ack_id", env.AckID).Debug("Ignoring unknown or late ack")
			return
		}
		p.fn(env.Data, nil)

	default:
		log.Debug("Ignoring unknown event")
	}
}

// resolve removes and returns the pending ack for id.
func (c *Client) resolve(id uint64) *pendingAck {
	if id == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	p.timer.Stop()
	return p
}

func (c *Client) expire(id uint64) {
	if p := c.resolve(id); p != nil {
		p.fn(nil, errors.AckTimeout(p.event, c.opts.AckTimeout))
	}
}

func (c *Client) takePendingLocked() []*pendingAck {
	out := make([]*pendingAck, 0, len(c.pending))
	for id, p := range c.pending {
		p.timer.Stop()
		out = append(out, p)
		delete(c.pending, id)
	}
	return out
}

func failPending(pending []*pendingAck) {
	for _, p := range pending {
		p.fn(nil, errors.NotConnected(p.event))
	}
}

func (c *Client) notifyState(s State) {
	c.handlersMu.RLock()
	observers := c.onState
	c.handlersMu.RUnlock()
	for _, fn := range observers {
		fn(s)
	}
}
