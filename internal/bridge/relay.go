package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"slot-lobby/internal/directory"
)

const relayBacklog = 64

var (
	ErrRuntimeQuit = errors.New("bridge_runtime_quit")
	ErrNotLoaded   = errors.New("bridge_runtime_not_loaded")
	ErrNoLaunchURL = errors.New("bridge_no_launch_url")
)

// Relay is a runtime whose engine runs in an embedding page attached to the
// host. Inbound messages wait in a short backlog until the page subscribes;
// the page reports outbound messages through Emit.
type Relay struct {
	kind directory.RuntimeKind

	mu      sync.Mutex
	cfg     RuntimeConfig
	ch      *Channel
	subs    map[chan Inbound]struct{}
	backlog []Inbound
	quit    bool
}

func NewRelay(kind directory.RuntimeKind) *Relay {
	return &Relay{kind: kind, subs: make(map[chan Inbound]struct{})}
}

func (r *Relay) Kind() directory.RuntimeKind { return r.kind }

func (r *Relay) Load(ctx context.Context, cfg RuntimeConfig, ch *Channel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quit {
		return ErrRuntimeQuit
	}
	r.cfg = cfg
	r.ch = ch
	return nil
}

func (r *Relay) Config() RuntimeConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

func (r *Relay) Deliver(msg Inbound) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quit {
		return ErrRuntimeQuit
	}
	if r.ch == nil {
		return ErrNotLoaded
	}
	if len(r.subs) == 0 {
		if len(r.backlog) == relayBacklog {
			r.backlog = r.backlog[1:]
		}
		r.backlog = append(r.backlog, msg)
		return nil
	}
	for sub := range r.subs {
		select {
		case sub <- msg:
		default:
			_, method := msg.Target()
			log.Warn().Str("method", method).Msg("relay_subscriber_full")
		}
	}
	return nil
}

// Subscribe attaches an embedding page. Backlogged messages are replayed
// first, in order.
func (r *Relay) Subscribe(buffer int) (<-chan Inbound, func(), error) {
	if buffer < 1 {
		buffer = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quit {
		return nil, nil, ErrRuntimeQuit
	}
	sub := make(chan Inbound, buffer+len(r.backlog))
	for _, msg := range r.backlog {
		sub <- msg
	}
	r.backlog = nil
	r.subs[sub] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if _, ok := r.subs[sub]; ok {
				delete(r.subs, sub)
				close(sub)
			}
		})
	}
	return sub, cancel, nil
}

// Emit hands an outbound message from the page to the bridge.
func (r *Relay) Emit(ctx context.Context, msg Outbound) error {
	r.mu.Lock()
	ch, quit := r.ch, r.quit
	r.mu.Unlock()
	if quit {
		return ErrRuntimeQuit
	}
	if ch == nil {
		return ErrNotLoaded
	}
	return ch.Emit(ctx, msg)
}

func (r *Relay) Quit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quit {
		return nil
	}
	r.quit = true
	for sub := range r.subs {
		delete(r.subs, sub)
		close(sub)
	}
	r.backlog = nil
	return nil
}

// External is a third-party game page. It has no message entry point, so
// inbound traffic is dropped.
type External struct {
	mu  sync.Mutex
	url string
}

func (e *External) Load(ctx context.Context, cfg RuntimeConfig, _ *Channel) error {
	if cfg.LaunchURL == "" {
		return ErrNoLaunchURL
	}
	e.mu.Lock()
	e.url = cfg.LaunchURL
	e.mu.Unlock()
	return ctx.Err()
}

func (e *External) URL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.url
}

func (e *External) Deliver(Inbound) error { return nil }

func (e *External) Quit(context.Context) error { return nil }

// RelayFactory serves 3D and 2D tables through a Relay and external
// tables through an External runtime.
var RelayFactory = RuntimeFactoryFunc(func(kind directory.RuntimeKind) (Runtime, error) {
	switch kind {
	case directory.RuntimeUnity, directory.RuntimePixi:
		return NewRelay(kind), nil
	case directory.RuntimeExternal:
		return &External{}, nil
	}
	return nil, fmt.Errorf("unsupported runtime kind %q", kind)
})
