// Package navigation carries the two ways the client leaves a page: typed
// cross-frame messages for an embedding parent, and the location of the
// page itself.
package navigation

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

type FrameType string

const (
	FrameNavigateLobby FrameType = "NAVIGATE_LOBBY"
	FrameNavigateLogin FrameType = "NAVIGATE_LOGIN"
	FrameGameLoaded    FrameType = "GAME_LOADED"
)

var ErrFrameBusClosed = errors.New("frame_bus_closed")

type FrameMessage struct {
	Type         FrameType `json:"type"`
	TargetOrigin string    `json:"-"`
}

// FrameBus fans frame messages out to subscribers. A slow subscriber loses
// messages rather than blocking the sender.
type FrameBus struct {
	origin string

	mu     sync.Mutex
	subs   map[chan FrameMessage]struct{}
	closed bool
}

func NewFrameBus(targetOrigin string) *FrameBus {
	if targetOrigin == "" {
		targetOrigin = "*"
	}
	return &FrameBus{origin: targetOrigin, subs: map[chan FrameMessage]struct{}{}}
}

func (b *FrameBus) Post(t FrameType) error {
	msg := FrameMessage{Type: t, TargetOrigin: b.origin}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrFrameBusClosed
	}
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
			log.Warn().Str("type", string(t)).Msg("frame_message_dropped")
		}
	}
	log.Debug().Str("type", string(t)).Str("target_origin", b.origin).Msg("frame_message_posted")
	return nil
}

// Subscribe returns a buffered channel of frame messages and a cancel func.
func (b *FrameBus) Subscribe(buffer int) (<-chan FrameMessage, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan FrameMessage, buffer)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

func (b *FrameBus) NavigateLogin() error { return b.Post(FrameNavigateLogin) }
func (b *FrameBus) NavigateLobby() error { return b.Post(FrameNavigateLobby) }

func (b *FrameBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = map[chan FrameMessage]struct{}{}
}
