// Package realtime owns the single live socket to the platform backend.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"slot-lobby/internal/storage"

	"github.com/rs/zerolog/log"
)

type State int

const (
	Closed State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

// ExpiryHandler is told when the server reports the session as expired.
type ExpiryHandler interface {
	HandleExpiry(reason string)
}

type ConnectOptions struct {
	OnOpen  func()
	OnClose func(err error)
	OnError func(err error)
}

func (o ConnectOptions) empty() bool {
	return o.OnOpen == nil && o.OnClose == nil && o.OnError == nil
}

// ChainHooks runs each set of callbacks in order.
func ChainHooks(hooks ...ConnectOptions) ConnectOptions {
	return ConnectOptions{
		OnOpen: func() {
			for _, h := range hooks {
				if h.OnOpen != nil {
					h.OnOpen()
				}
			}
		},
		OnClose: func(err error) {
			for _, h := range hooks {
				if h.OnClose != nil {
					h.OnClose(err)
				}
			}
		},
		OnError: func(err error) {
			for _, h := range hooks {
				if h.OnError != nil {
					h.OnError(err)
				}
			}
		},
	}
}

// Listener wraps a callback so registration has identity semantics.
type Listener struct {
	fn         func(Message)
	registered atomic.Bool
}

func NewListener(fn func(Message)) *Listener {
	return &Listener{fn: fn}
}

type Options struct {
	SocketURL      string
	ReconnectDelay time.Duration
	MaxAttempts    int
	Dialer         Dialer
	Session        storage.Scope
	Expiry         ExpiryHandler
}

type Manager struct {
	socketURL   string
	delay       time.Duration
	maxAttempts int
	dialer      Dialer
	session     storage.Scope

	// writeMu serialises transport writes and the open-time queue flush.
	writeMu sync.Mutex

	mu         sync.Mutex
	state      State
	conn       Conn
	gen        uint64
	attempts   int
	queue      []any
	listeners  []*Listener
	hooks      ConnectOptions
	expiry     ExpiryHandler
	timer      *time.Timer
	cancelDial context.CancelFunc
	shutdown   bool
}

func NewManager(opts Options) *Manager {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1000
	}
	if opts.Dialer == nil {
		opts.Dialer = NewWebsocketDialer(0)
	}
	if opts.Session == nil {
		opts.Session = storage.NewSessionStore()
	}
	return &Manager{
		socketURL:   strings.TrimRight(opts.SocketURL, "/"),
		delay:       opts.ReconnectDelay,
		maxAttempts: opts.MaxAttempts,
		dialer:      opts.Dialer,
		session:     opts.Session,
		expiry:      opts.Expiry,
	}
}

func (m *Manager) SetExpiryHandler(h ExpiryHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry = h
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsConnected() bool {
	return m.State() == Open
}

func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// ReconnectPending reports whether a reconnect timer is armed.
func (m *Manager) ReconnectPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Manager) endpoint(token string) string {
	auth := strings.ReplaceAll(url.QueryEscape("Bearer "+token), "+", "%20")
	return m.socketURL + "/user/auth?authorization=" + auth
}

// Connect opens the socket using the current session token. It is a no-op
// while connecting and without a token; when already open it only runs
// opts.OnOpen. Non-empty opts replace the lifecycle callbacks.
func (m *Manager) Connect(opts ConnectOptions) {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	if !opts.empty() {
		m.hooks = opts
	}
	switch m.state {
	case Open:
		m.mu.Unlock()
		log.Debug().Msg("ws_reuse_open_connection")
		if opts.OnOpen != nil {
			opts.OnOpen()
		}
		return
	case Connecting:
		m.mu.Unlock()
		return
	}
	token, _ := m.session.Get(storage.KeyToken)
	if token == "" {
		m.mu.Unlock()
		log.Debug().Msg("ws_skip_no_token")
		return
	}
	m.stopTimerLocked()
	m.gen++
	gen := m.gen
	m.state = Connecting
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelDial = cancel
	target := m.endpoint(token)
	m.mu.Unlock()

	metricConnectTotal.Add(1)
	go m.dial(ctx, gen, target)
}

func (m *Manager) dial(ctx context.Context, gen uint64, target string) {
	conn, err := m.dialer.Dial(ctx, target)
	if err != nil {
		metricConnectErrors.Add(1)
		log.Warn().Err(err).Msg("ws_connect_failed")
		m.handleClose(gen, err)
		return
	}

	m.writeMu.Lock()
	m.mu.Lock()
	if gen != m.gen || m.shutdown {
		m.mu.Unlock()
		m.writeMu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.state = Open
	m.attempts = 0
	m.cancelDial = nil
	queued := m.queue
	m.queue = nil
	hooks := m.hooks
	m.mu.Unlock()
	for i, msg := range queued {
		if err := m.write(conn, msg); err != nil {
			log.Warn().Err(err).Int("remaining", len(queued)-i).Msg("ws_flush_failed")
			m.mu.Lock()
			m.queue = append(append([]any(nil), queued[i:]...), m.queue...)
			m.mu.Unlock()
			break
		}
	}
	m.writeMu.Unlock()

	log.Info().Int("flushed", len(queued)).Msg("ws_open")
	if hooks.OnOpen != nil {
		hooks.OnOpen()
	}
	go m.readLoop(gen, conn)
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(gen, err)
			return
		}
		m.mu.Lock()
		stale := gen != m.gen
		m.mu.Unlock()
		if stale {
			return
		}
		m.dispatch(data)
	}
}

func (m *Manager) handleClose(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		_ = m.conn.Close()
	}
	m.conn = nil
	m.state = Closed
	m.cancelDial = nil
	hooks := m.hooks
	token, _ := m.session.Get(storage.KeyToken)
	scheduled := false
	if !m.shutdown && token != "" && m.attempts < m.maxAttempts {
		m.attempts++
		m.scheduleLocked(m.gen)
		scheduled = true
	}
	attempts := m.attempts
	m.mu.Unlock()

	if err != nil && !errors.Is(err, io.EOF) {
		log.Warn().Err(err).Msg("ws_error")
		if hooks.OnError != nil {
			hooks.OnError(err)
		}
	}
	log.Info().Bool("reconnect_scheduled", scheduled).Int("attempt", attempts).Int("max_attempts", m.maxAttempts).Msg("ws_closed")
	if hooks.OnClose != nil {
		hooks.OnClose(err)
	}
}

func (m *Manager) scheduleLocked(gen uint64) {
	metricReconnectScheduled.Add(1)
	var t *time.Timer
	t = time.AfterFunc(m.delay, func() {
		m.mu.Lock()
		if m.timer == t {
			m.timer = nil
		}
		stale := gen != m.gen || m.shutdown
		m.mu.Unlock()
		if stale {
			return
		}
		m.Connect(ConnectOptions{})
	})
	m.timer = t
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) dispatch(raw []byte) {
	metricMessagesIn.Add(1)
	msg, ok := parseMessage(raw)
	if !ok {
		log.Warn().Int("bytes", len(raw)).Msg("ws_message_decode_failed")
		return
	}
	if msg.Operation == OperationInfo {
		m.session.Set(storage.KeyWSInfo, string(raw))
	}
	if msg.sessionExpired() {
		metricSessionExpiredTotal.Add(1)
		m.mu.Lock()
		h := m.expiry
		m.mu.Unlock()
		log.Info().Msg("ws_session_expired")
		if h != nil {
			h.HandleExpiry("socket session expired")
		}
		return
	}

	m.mu.Lock()
	listeners := append([]*Listener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		if !l.registered.Load() {
			continue
		}
		l.fn(msg)
	}
}

// Send writes msg when open and queues it otherwise. Strings, byte slices
// and json.RawMessage go out verbatim; anything else is JSON encoded.
func (m *Manager) Send(msg any) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	if m.state != Open || m.conn == nil {
		m.queue = append(m.queue, msg)
		m.mu.Unlock()
		metricMessagesQueued.Add(1)
		return
	}
	conn := m.conn
	m.mu.Unlock()

	if err := m.write(conn, msg); err != nil {
		if errors.Is(err, errUnencodable) {
			log.Error().Err(err).Msg("ws_send_dropped")
			return
		}
		log.Warn().Err(err).Msg("ws_send_failed")
		m.mu.Lock()
		m.queue = append(m.queue, msg)
		m.mu.Unlock()
		metricMessagesQueued.Add(1)
	}
}

var errUnencodable = errors.New("ws_message_unencodable")

func (m *Manager) write(conn Conn, msg any) error {
	var data []byte
	switch v := msg.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return errors.Join(errUnencodable, err)
		}
		data = raw
	}
	if err := conn.WriteMessage(data); err != nil {
		return err
	}
	metricMessagesOut.Add(1)
	return nil
}

// AddListener registers l; adding an already registered listener is a no-op.
func (m *Manager) AddListener(l *Listener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.listeners {
		if existing == l {
			return
		}
	}
	l.registered.Store(true)
	m.listeners = append(m.listeners, l)
}

func (m *Manager) RemoveListener(l *Listener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			l.registered.Store(false)
			m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
			return
		}
	}
}

func (m *Manager) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// NetworkRestored resets the attempt counter and reconnects.
func (m *Manager) NetworkRestored() {
	m.mu.Lock()
	m.attempts = 0
	m.mu.Unlock()
	log.Info().Msg("ws_network_restored")
	m.Connect(ConnectOptions{})
}

// BecameVisible resets the attempt counter and reconnects unless open.
func (m *Manager) BecameVisible() {
	m.mu.Lock()
	if m.state == Open {
		m.mu.Unlock()
		return
	}
	m.attempts = 0
	m.mu.Unlock()
	m.Connect(ConnectOptions{})
}

// Close drops the connection and any pending reconnect. A later Connect
// opens a fresh one.
func (m *Manager) Close() {
	m.closeWith(false)
}

// Shutdown is Close for teardown: listeners and queued messages are
// released and the manager never reconnects again.
func (m *Manager) Shutdown() {
	m.closeWith(true)
}

func (m *Manager) closeWith(shutdown bool) {
	m.mu.Lock()
	m.gen++
	m.stopTimerLocked()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	conn := m.conn
	wasActive := m.state != Closed
	m.conn = nil
	m.state = Closed
	hooks := m.hooks
	if shutdown {
		m.shutdown = true
		for _, l := range m.listeners {
			l.registered.Store(false)
		}
		m.listeners = nil
		m.queue = nil
		m.hooks = ConnectOptions{}
	}
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if wasActive {
		log.Info().Bool("shutdown", shutdown).Msg("ws_closed_by_client")
		if hooks.OnClose != nil {
			hooks.OnClose(nil)
		}
	}
}
