package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devbridge/internal/host"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devbridge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/devbridge/internal/protocol"
	"github.com/GriffinCanCode/devbridge/internal/session"
)

var (
	// ErrUnsupportedURL is returned for a connect URL that is neither ws nor http.
	ErrUnsupportedURL = errors.New("connect url must start with ws or http")
	// ErrNoTransport is returned when sending without a reply target.
	ErrNoTransport = errors.New("no transport for reply")
	// ErrNotConnected is returned by RespondToConnection before a connection exists.
	ErrNotConnected = errors.New("not connected")
)

// State is the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

var allStates = []string{string(StateDisconnected), string(StateConnecting), string(StateConnected)}

// Transport is the kind of channel in use.
type Transport string

const (
	TransportNone      Transport = ""
	TransportWebSocket Transport = "websocket"
	TransportHTTP      Transport = "http"
)

// Event kinds.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

// Event signals a connection change.
type Event struct {
	Kind      string
	URL       string
	Transport Transport
}

// Listener receives connection events on the transport goroutine.
type Listener func(Event)

// Handler receives decoded inbound messages in arrival order.
type Handler func(ctx context.Context, msg *protocol.Message)

// Options configures a Manager.
type Options struct {
	URL          string
	PageURL      string
	Env          host.Env
	WebSocket    bool
	Dialer       Dialer
	PollInterval time.Duration
	Backoff      resilience.Backoff
	Client       *Client
	Session      *session.Store
	Logger       *zap.Logger
	Metrics      *monitoring.Metrics
}

// Status is a snapshot of the connection.
type Status struct {
	State     State     `json:"state"`
	Transport Transport `json:"transport,omitempty"`
	URL       string    `json:"url,omitempty"`
}

// Manager owns the single logical connection to the dev server.
type Manager struct {
	connectURL   string
	pageURL      string
	env          host.Env
	dialer       Dialer
	pollInterval time.Duration
	backoff      resilience.Backoff
	client       *Client
	session      *session.Store
	logger       *zap.Logger
	metrics      *monitoring.Metrics

	started atomic.Bool
	wg      sync.WaitGroup

	mu        sync.RWMutex
	ctx       context.Context
	state     State
	transport Transport
	url       string
	current   protocol.Reply
	handler   Handler
	listeners []Listener
}

// NewManager creates a disconnected manager.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics()
	}
	if opts.Session == nil {
		opts.Session = session.NewStore(nil, opts.Logger)
	}
	if opts.Client == nil {
		opts.Client = NewClient(0, opts.Logger)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.Dialer == nil && opts.WebSocket {
		opts.Dialer = GorillaDialer{}
	}

	m := &Manager{
		connectURL:   opts.URL,
		pageURL:      opts.PageURL,
		env:          opts.Env,
		dialer:       opts.Dialer,
		pollInterval: opts.PollInterval,
		backoff:      opts.Backoff,
		client:       opts.Client,
		session:      opts.Session,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		ctx:          context.Background(),
		state:        StateDisconnected,
	}
	m.metrics.SetConnectionState(string(StateDisconnected), allStates)
	return m
}

// OnMessage sets the inbound message handler.
func (m *Manager) OnMessage(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// OnEvent registers a connection event listener.
func (m *Manager) OnEvent(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Connect starts the transport loop and returns once it is running. Only
// the first call has any effect. Loops stop when ctx is cancelled.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return nil
	}

	connectURL := strings.TrimSpace(m.connectURL)
	if connectURL == "" {
		connectURL = config.DefaultConnectURL
	}
	connectURL = m.switchToHTTP(connectURL)

	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	switch {
	case strings.HasPrefix(connectURL, "ws"):
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.runWebSocket(ctx, connectURL)
		}()
	case strings.HasPrefix(connectURL, "http"):
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.runHTTP(ctx, connectURL)
		}()
	default:
		m.logger.Error("Unsupported connect url", zap.String("url", connectURL))
		return fmt.Errorf("%w: %q", ErrUnsupportedURL, connectURL)
	}
	return nil
}

// Wait blocks until the transport loop has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// switchToHTTP falls back to HTTP when no websocket implementation exists.
func (m *Manager) switchToHTTP(connectURL string) string {
	if strings.HasPrefix(connectURL, "http") || m.dialer != nil {
		return connectURL
	}
	if !strings.HasPrefix(connectURL, "ws") {
		return connectURL
	}
	m.logger.Warn("No WebSocket implementation found! Falling back to http-long-polling")
	return toHTTP(connectURL)
}

func (m *Manager) makeURL(connectURL string) (string, error) {
	return MakeURL(connectURL, m.env, m.pageURL, m.session.Get())
}

// Status returns a snapshot of the connection.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{State: m.state, Transport: m.transport, URL: m.url}
}

// State returns the connection state.
func (m *Manager) State() State {
	return m.Status().State
}

// Respond sends body as the response to msg through msg's reply channel.
// A message without a reply channel is silently dropped.
func (m *Manager) Respond(msg *protocol.Message, body interface{}) error {
	if msg == nil {
		return nil
	}
	err := m.send(msg, msg.Reply, body)
	if errors.Is(err, ErrNoTransport) {
		return nil
	}
	return err
}

// RespondToConnection sends body through the current connection.
func (m *Manager) RespondToConnection(body interface{}) error {
	m.mu.RLock()
	reply := m.current
	m.mu.RUnlock()

	if reply.IsZero() {
		return ErrNotConnected
	}
	return m.send(nil, reply, body)
}

func (m *Manager) send(msg *protocol.Message, reply protocol.Reply, body interface{}) error {
	if reply.IsZero() {
		return ErrNoTransport
	}

	sess := m.session.Get()
	data, err := protocol.Encode(protocol.ResponseFor(msg, sess.ID, sess.Name, body))
	if err != nil {
		return err
	}

	if reply.Socket != nil {
		err = reply.Socket.Send(data)
		m.metrics.RecordSend(string(TransportWebSocket), err)
		return err
	}

	m.mu.RLock()
	ctx := m.ctx
	m.mu.RUnlock()

	err = m.client.Post(ctx, reply.HTTPURL, data)
	m.metrics.RecordSend(string(TransportHTTP), err)
	return err
}

func (m *Manager) deliver(ctx context.Context, msg *protocol.Message) {
	m.mu.RLock()
	h := m.handler
	m.mu.RUnlock()

	if h == nil {
		m.logger.Debug("No handler for message", zap.String("op", msg.Op))
		return
	}
	h(ctx, msg)
}

func (m *Manager) setState(s State, t Transport) {
	m.mu.Lock()
	m.state = s
	m.transport = t
	m.mu.Unlock()
	m.metrics.SetConnectionState(string(s), allStates)
}

func (m *Manager) established(url string, reply protocol.Reply, t Transport) {
	m.mu.Lock()
	m.state = StateConnected
	m.transport = t
	m.url = url
	m.current = reply
	m.mu.Unlock()

	m.metrics.SetConnectionState(string(StateConnected), allStates)
	m.logger.Info("Connection established", zap.String("url", url), zap.String("transport", string(t)))
	m.emit(Event{Kind: EventConnected, URL: url, Transport: t})
}

func (m *Manager) closed(url string, t Transport) {
	m.mu.Lock()
	m.state = StateDisconnected
	m.mu.Unlock()

	m.metrics.SetConnectionState(string(StateDisconnected), allStates)
	m.emit(Event{Kind: EventDisconnected, URL: url, Transport: t})
}

func (m *Manager) emit(e Event) {
	m.metrics.RecordConnectionEvent(e.Kind, string(e.Transport))

	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()

	for _, l := range listeners {
		l(e)
	}
}
