// Package bridge hosts one embedded game runtime at a time and relays
// messages between it, the realtime socket and the lobby page.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"slot-lobby/internal/config"
	"slot-lobby/internal/directory"
	"slot-lobby/internal/ids"
	"slot-lobby/internal/navigation"
	"slot-lobby/internal/realtime"
	"slot-lobby/internal/storage"
)

const (
	defaultLoadAttempts = 3
	defaultLoadTimeout  = 30 * time.Second
	defaultRetryDelay   = 2 * time.Second
	defaultQuitTimeout  = 5 * time.Second
	channelBuffer       = 32

	userTypeRegular = "REGULAR"
)

var (
	ErrNoFactory      = errors.New("bridge_no_runtime_factory")
	ErrNoCasino       = errors.New("bridge_no_casino_resolver")
	ErrLoadExhausted  = errors.New("bridge_load_attempts_exhausted")
	ErrNothingRunning = errors.New("bridge_no_runtime")
	ErrNotRelayed     = errors.New("bridge_runtime_not_relayed")
)

// Popup names a modal the runtime asked the page to show.
type Popup string

const (
	PopupLowBalance          Popup = "LowBalance"
	PopupInactive            Popup = "Inactive"
	PopupInitializationError Popup = "InitializationError"
)

type Socket interface {
	Send(msg any)
	AddListener(l *realtime.Listener)
	RemoveListener(l *realtime.Listener)
}

type ExpiryHandler interface {
	HandleExpiry(reason string)
}

type FramePoster interface {
	Post(t navigation.FrameType) error
}

type PageNavigator interface {
	Navigate(path string)
}

type CasinoResolver interface {
	GetCasinoURL(ctx context.Context, token, username string, tableID directory.TableID) (string, error)
}

type Options struct {
	Config   config.ClientConfig
	Factory  RuntimeFactory
	Socket   Socket
	Session  storage.Scope
	Durable  storage.Durable
	Expiry   ExpiryHandler
	Frames   FramePoster
	Location PageNavigator
	Casino   CasinoResolver

	OnBalance func(amount float64)
	OnPopup   func(p Popup)

	LoadAttempts int
	LoadTimeout  time.Duration
	RetryDelay   time.Duration
	QuitTimeout  time.Duration
}

type instance struct {
	cfg      RuntimeConfig
	rt       Runtime
	ch       *Channel
	listener *realtime.Listener
	cancel   context.CancelFunc
}

type Bridge struct {
	opts Options

	launchMu sync.Mutex

	mu  sync.Mutex
	cur *instance
}

func New(opts Options) *Bridge {
	if opts.LoadAttempts <= 0 {
		opts.LoadAttempts = defaultLoadAttempts
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaultLoadTimeout
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	} else if opts.RetryDelay == 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.QuitTimeout <= 0 {
		opts.QuitTimeout = opts.Config.RuntimeQuitTimeout
	}
	if opts.QuitTimeout <= 0 {
		opts.QuitTimeout = defaultQuitTimeout
	}
	if opts.Session == nil {
		opts.Session = storage.NewSessionStore()
	}
	if opts.Durable == nil {
		opts.Durable = storage.NewMemoryDurable()
	}
	return &Bridge{opts: opts}
}

// Current reports the config of the loaded runtime, if any.
func (b *Bridge) Current() (RuntimeConfig, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil {
		return RuntimeConfig{}, false
	}
	return b.cur.cfg, true
}

// Runtime returns the loaded runtime, if any.
func (b *Bridge) Runtime() (Runtime, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cur == nil {
		return nil, false
	}
	return b.cur.rt, true
}

// Relay returns the loaded runtime when an embedding page drives it.
func (b *Bridge) Relay() (*Relay, error) {
	rt, ok := b.Runtime()
	if !ok {
		return nil, ErrNothingRunning
	}
	r, ok := rt.(*Relay)
	if !ok {
		return nil, ErrNotRelayed
	}
	return r, nil
}

// Launch replaces whatever is running with a runtime for table.
func (b *Bridge) Launch(ctx context.Context, table directory.Table) (RuntimeConfig, error) {
	b.launchMu.Lock()
	defer b.launchMu.Unlock()
	metricLaunchTotal.Add(1)

	if err := b.Teardown(ctx); err != nil {
		log.Warn().Err(err).Msg("bridge_teardown_before_launch_failed")
	}
	if b.opts.Factory == nil {
		metricLaunchFailures.Add(1)
		return RuntimeConfig{}, ErrNoFactory
	}

	cfg, err := b.configure(ctx, table)
	if err != nil {
		metricLaunchFailures.Add(1)
		return RuntimeConfig{}, err
	}

	rt, ch, err := b.load(ctx, cfg)
	if err != nil {
		metricLaunchFailures.Add(1)
		b.popup(PopupInitializationError)
		return RuntimeConfig{}, err
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	inst := &instance{cfg: cfg, rt: rt, ch: ch, cancel: cancel}
	inst.listener = realtime.NewListener(func(m realtime.Message) { b.inward(inst, m) })

	b.mu.Lock()
	b.cur = inst
	b.mu.Unlock()

	go b.pump(pumpCtx, inst)
	if b.opts.Socket != nil {
		b.opts.Socket.AddListener(inst.listener)
	}

	if cfg.Kind == directory.RuntimeUnity {
		if token, ok := b.opts.Session.Get(storage.KeyToken); ok && token != "" {
			b.deliver(inst, GameDetails{Slug: table.Slug, BuildURL: cfg.Assets.Build})
		}
	}

	log.Info().
		Str("instance_id", cfg.InstanceID).
		Str("slug", table.Slug).
		Str("kind", string(cfg.Kind)).
		Msg("bridge_runtime_launched")
	return cfg, nil
}

func (b *Bridge) configure(ctx context.Context, table directory.Table) (RuntimeConfig, error) {
	c := b.opts.Config
	cfg := RuntimeConfig{
		InstanceID:  ids.New(),
		Table:       table,
		Kind:        table.Runtime,
		Orientation: table.Orientation,
		APIURL:      c.APIURL,
		SocketURL:   c.SocketURL,
	}
	if c.LoadingScreenURL != "" && table.Slug != "" {
		cfg.LoadingScreen = strings.TrimRight(c.LoadingScreenURL, "/") + "/" + table.Slug + ".mp4"
	}

	switch table.Runtime {
	case directory.RuntimeUnity:
		cfg.Assets = UnityAssets(c.AssetBaseURL, table.Slug, table.PhaseNumber())
	case directory.RuntimePixi:
		cfg.ScriptURL = PixiScript(c.PixiAssetURL, table.Slug)
	case directory.RuntimeExternal:
		if b.opts.Casino == nil {
			return RuntimeConfig{}, ErrNoCasino
		}
		token, _ := b.opts.Session.Get(storage.KeyToken)
		username, _ := b.opts.Session.Get(storage.KeyUsername)
		url, err := b.opts.Casino.GetCasinoURL(ctx, token, username, table.TableID)
		if err != nil {
			return RuntimeConfig{}, fmt.Errorf("resolve casino url: %w", err)
		}
		cfg.LaunchURL = url
	default:
		return RuntimeConfig{}, fmt.Errorf("unknown runtime kind %q", table.Runtime)
	}
	return cfg, nil
}

func (b *Bridge) load(ctx context.Context, cfg RuntimeConfig) (Runtime, *Channel, error) {
	var lastErr error
	for attempt := 1; attempt <= b.opts.LoadAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(b.opts.RetryDelay):
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		}
		metricLoadAttempts.Add(1)

		rt, err := b.opts.Factory.NewRuntime(cfg.Kind)
		if err != nil {
			return nil, nil, err
		}
		ch := newChannel(channelBuffer)
		loadCtx, cancel := context.WithTimeout(ctx, b.opts.LoadTimeout)
		err = rt.Load(loadCtx, cfg, ch)
		cancel()
		if err == nil {
			return rt, ch, nil
		}

		lastErr = err
		ch.close()
		b.quit(rt)
		log.Warn().Err(err).
			Int("attempt", attempt).
			Str("slug", cfg.Table.Slug).
			Msg("bridge_runtime_load_failed")
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
	}
	return nil, nil, errors.Join(ErrLoadExhausted, lastErr)
}

// Teardown releases the current runtime. It is a no-op when nothing is
// loaded and safe to call repeatedly.
func (b *Bridge) Teardown(ctx context.Context) error {
	_, err := b.release(ctx, nil)
	return err
}

// release tears down the current runtime. With want set, it only does so
// while want is still current, and reports whether it released anything.
func (b *Bridge) release(ctx context.Context, want *instance) (bool, error) {
	b.mu.Lock()
	inst := b.cur
	if inst == nil || (want != nil && inst != want) {
		b.mu.Unlock()
		return false, nil
	}
	b.cur = nil
	b.mu.Unlock()

	if b.opts.Socket != nil {
		b.opts.Socket.RemoveListener(inst.listener)
	}
	inst.cancel()
	inst.ch.close()
	err := b.quitWith(ctx, inst.rt)
	log.Info().Str("instance_id", inst.cfg.InstanceID).Msg("bridge_runtime_released")
	return true, err
}

func (b *Bridge) quit(rt Runtime) {
	if err := b.quitWith(context.Background(), rt); err != nil {
		log.Warn().Err(err).Msg("bridge_runtime_quit_failed")
	}
}

func (b *Bridge) quitWith(ctx context.Context, rt Runtime) error {
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.opts.QuitTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- rt.Quit(qctx) }()
	select {
	case err := <-done:
		return err
	case <-qctx.Done():
		metricQuitTimeouts.Add(1)
		return fmt.Errorf("runtime quit: %w", qctx.Err())
	}
}

func (b *Bridge) active(inst *instance) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cur == inst
}

func (b *Bridge) deliver(inst *instance, msg Inbound) {
	if err := inst.rt.Deliver(msg); err != nil {
		_, method := msg.Target()
		log.Warn().Err(err).Str("method", method).Msg("bridge_deliver_failed")
		return
	}
	metricInbound.Add(1)
}

func (b *Bridge) inward(inst *instance, m realtime.Message) {
	if !b.active(inst) || len(m.Raw) == 0 {
		return
	}
	b.deliver(inst, SocketMessage{Raw: m.Raw})
}

func (b *Bridge) pump(ctx context.Context, inst *instance) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-inst.ch.Done():
			return
		case msg := <-inst.ch.out:
			metricOutbound.Add(1)
			b.handle(ctx, inst, msg)
		}
	}
}

// handle acts on one message from inst. Messages still buffered when inst
// was released are dropped so they never reach the next game.
func (b *Bridge) handle(ctx context.Context, inst *instance, msg Outbound) {
	if !b.active(inst) {
		log.Debug().Str("instance_id", inst.cfg.InstanceID).Str("type", fmt.Sprintf("%T", msg)).Msg("bridge_stale_outbound_dropped")
		return
	}
	switch m := msg.(type) {
	case Hello:
	case Ready:
		b.pushCredentials(ctx, inst)
		b.send(textGameReady)
	case ServerMessage:
		b.send(m.Payload)
	case Balance:
		if b.opts.OnBalance != nil {
			b.opts.OnBalance(m.Amount)
		}
	case Loaded:
		if b.regularUser() {
			b.postFrame(navigation.FrameGameLoaded)
		}
	case NavigateLobby:
		released, err := b.release(ctx, inst)
		if err != nil {
			log.Warn().Err(err).Msg("bridge_teardown_failed")
		}
		if !released {
			return
		}
		if b.regularUser() {
			b.postFrame(navigation.FrameNavigateLobby)
		}
		if b.opts.Location != nil {
			b.opts.Location.Navigate(navigation.PathLobby)
		}
	case Logout:
		if b.opts.Expiry != nil {
			b.opts.Expiry.HandleExpiry("runtime logout")
		}
	case LowBalance:
		b.popup(PopupLowBalance)
	case Inactive:
		b.popup(PopupInactive)
	case MusicVolume:
		b.storeVolume(ctx, storage.MusicKey, m.Level)
	case SoundVolume:
		b.storeVolume(ctx, storage.SoundKey, m.Level)
	default:
		log.Warn().Str("type", fmt.Sprintf("%T", msg)).Msg("bridge_unknown_outbound")
	}
}

func (b *Bridge) pushCredentials(ctx context.Context, inst *instance) {
	s := b.opts.Session
	token, _ := s.Get(storage.KeyToken)
	csrf, _ := s.Get(storage.KeyCSRFToken)
	info, _ := s.Get(storage.KeyWSInfo)

	b.deliver(inst, ServerURL{URL: inst.cfg.APIURL})
	b.deliver(inst, SessionToken{Token: token})
	b.deliver(inst, CSRFToken{Token: csrf})
	b.deliver(inst, BetInfo{Info: info})
	b.deliver(inst, MusicSettings{Level: b.volume(ctx, storage.MusicKey)})
	b.deliver(inst, SoundSettings{Level: b.volume(ctx, storage.SoundKey)})
}

func (b *Bridge) volume(ctx context.Context, key func(string) string) float64 {
	username, _ := b.opts.Session.Get(storage.KeyUsername)
	raw, err := b.opts.Durable.Get(ctx, key(username))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Msg("bridge_volume_read_failed")
		}
		return defaultVolume
	}
	return parseVolume(raw)
}

func (b *Bridge) storeVolume(ctx context.Context, key func(string) string, level float64) {
	username, _ := b.opts.Session.Get(storage.KeyUsername)
	if err := b.opts.Durable.Set(ctx, key(username), formatVolume(level)); err != nil {
		log.Warn().Err(err).Msg("bridge_volume_write_failed")
	}
}

func (b *Bridge) send(payload string) {
	if b.opts.Socket == nil || payload == "" {
		return
	}
	b.opts.Socket.Send(payload)
}

func (b *Bridge) regularUser() bool {
	userType, _ := b.opts.Session.Get(storage.KeyUserType)
	return userType == userTypeRegular
}

func (b *Bridge) postFrame(t navigation.FrameType) {
	if b.opts.Frames == nil {
		return
	}
	if err := b.opts.Frames.Post(t); err != nil {
		log.Warn().Err(err).Str("frame", string(t)).Msg("bridge_frame_post_failed")
	}
}

func (b *Bridge) popup(p Popup) {
	if b.opts.OnPopup != nil {
		b.opts.OnPopup(p)
	}
}
