package bridge

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"slot-lobby/internal/directory"
	"slot-lobby/internal/navigation"
	"slot-lobby/internal/realtime"
)

type fakeRuntime struct {
	name     string
	events   *eventLog
	failLoad bool

	mu        sync.Mutex
	ch        *Channel
	cfg       RuntimeConfig
	delivered []Inbound
	quits     int
}

func (r *fakeRuntime) Load(ctx context.Context, cfg RuntimeConfig, ch *Channel) error {
	r.events.add("load:" + r.name)
	if r.failLoad {
		return errors.New("loader script failed")
	}
	r.mu.Lock()
	r.ch = ch
	r.cfg = cfg
	r.mu.Unlock()
	return nil
}

func (r *fakeRuntime) Deliver(msg Inbound) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, msg)
	return nil
}

func (r *fakeRuntime) Quit(context.Context) error {
	r.events.add("quit:" + r.name)
	r.mu.Lock()
	r.quits++
	r.mu.Unlock()
	return nil
}

func (r *fakeRuntime) emit(t *testing.T, msg Outbound) {
	t.Helper()
	r.mu.Lock()
	ch := r.ch
	r.mu.Unlock()
	if err := ch.Emit(context.Background(), msg); err != nil {
		t.Fatalf("emit %T: %v", msg, err)
	}
}

func (r *fakeRuntime) Delivered() []Inbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Inbound(nil), r.delivered...)
}

func (r *fakeRuntime) Quits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quits
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// fakeFactory hands out runtimes in order; failFirst makes the first n
// loads fail.
type fakeFactory struct {
	events    *eventLog
	failFirst int

	mu       sync.Mutex
	runtimes []*fakeRuntime
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{events: &eventLog{}}
}

func (f *fakeFactory) NewRuntime(kind directory.RuntimeKind) (Runtime, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt := &fakeRuntime{
		name:     string(kind) + "-" + string(rune('a'+len(f.runtimes))),
		events:   f.events,
		failLoad: len(f.runtimes) < f.failFirst,
	}
	f.runtimes = append(f.runtimes, rt)
	return rt, nil
}

func (f *fakeFactory) last() *fakeRuntime {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runtimes[len(f.runtimes)-1]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runtimes)
}

type fakeSocket struct {
	mu        sync.Mutex
	sent      []any
	listeners []*realtime.Listener
}

func (s *fakeSocket) Send(msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
}

func (s *fakeSocket) AddListener(l *realtime.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *fakeSocket) RemoveListener(l *realtime.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.listeners {
		if existing == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *fakeSocket) Sent() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.sent...)
}

func (s *fakeSocket) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

type fakeFrames struct {
	mu     sync.Mutex
	posted []navigation.FrameType
}

func (f *fakeFrames) Post(t navigation.FrameType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posted = append(f.posted, t)
	return nil
}

func (f *fakeFrames) Posted() []navigation.FrameType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]navigation.FrameType(nil), f.posted...)
}

type expiryRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (e *expiryRecorder) HandleExpiry(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reasons = append(e.reasons, reason)
}

func (e *expiryRecorder) Reasons() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.reasons...)
}

type casinoStub struct {
	url string
	err error
}

func (c casinoStub) GetCasinoURL(context.Context, string, string, directory.TableID) (string, error) {
	return c.url, c.err
}

// wsConn feeds inbound frames to a real realtime.Manager.
type wsConn struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once
}

func newWSConn() *wsConn {
	return &wsConn{inbound: make(chan []byte, 8), closed: make(chan struct{})}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *wsConn) WriteMessage([]byte) error { return nil }

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type wsDialer struct{ conn *wsConn }

func (d wsDialer) Dial(context.Context, string) (realtime.Conn, error) { return d.conn, nil }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func timeout() <-chan time.Time { return time.After(2 * time.Second) }
