package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"

	"slot-lobby/internal/directory"
)

var ErrChannelClosed = errors.New("bridge_channel_closed")

// Runtime is one loaded game engine instance.
type Runtime interface {
	// Load starts the engine. Outbound messages go through ch until Quit.
	Load(ctx context.Context, cfg RuntimeConfig, ch *Channel) error
	Deliver(msg Inbound) error
	Quit(ctx context.Context) error
}

// RuntimeFactory builds a fresh runtime for each load attempt.
type RuntimeFactory interface {
	NewRuntime(kind directory.RuntimeKind) (Runtime, error)
}

type RuntimeFactoryFunc func(kind directory.RuntimeKind) (Runtime, error)

func (f RuntimeFactoryFunc) NewRuntime(kind directory.RuntimeKind) (Runtime, error) {
	return f(kind)
}

// Assets lists the URLs a 3D build is assembled from.
type Assets struct {
	Build           string `json:"build_url"`
	Loader          string `json:"loader_url"`
	Data            string `json:"data_url"`
	Framework       string `json:"framework_url"`
	Code            string `json:"code_url"`
	StreamingAssets string `json:"streaming_assets_url,omitempty"`
}

type RuntimeConfig struct {
	InstanceID  string                `json:"instance_id"`
	Table       directory.Table       `json:"table"`
	Kind        directory.RuntimeKind `json:"kind"`
	Orientation directory.Orientation `json:"orientation"`
	Assets      Assets                `json:"assets"`
	// ScriptURL is the entry module of a 2D build.
	ScriptURL string `json:"script_url,omitempty"`
	// LaunchURL is the third-party game page for external tables.
	LaunchURL     string `json:"launch_url,omitempty"`
	APIURL        string `json:"api_url"`
	SocketURL     string `json:"socket_url"`
	LoadingScreen string `json:"loading_screen,omitempty"`
}

// UnityAssets resolves the build files for slug. Phase 3 and 4 tables ship a
// self-contained bundle; older tables share one loader.
func UnityAssets(base, slug string, phase int) Assets {
	base = strings.TrimRight(base, "/")
	if phase == 3 || phase == 4 {
		root := base + "/new-phase/" + slug
		return Assets{
			Build:           root + "/maingame.unity3d",
			Loader:          root + "/loader/Build.loader.js",
			Data:            root + "/loader/Build.data",
			Framework:       root + "/loader/Build.framework.js",
			Code:            root + "/loader/Build.wasm",
			StreamingAssets: root + "/StreamingAssets",
		}
	}
	return Assets{
		Build:     base + "/Unity/" + slug + "/maingame.unity3d",
		Loader:    base + "/loader/Build.loader.js",
		Data:      base + "/loader/Build.data",
		Framework: base + "/loader/Build.framework.js",
		Code:      base + "/loader/Build.wasm",
	}
}

func PixiScript(base, slug string) string {
	return strings.TrimRight(base, "/") + "/" + slug + "/main.js"
}

// Channel carries outbound messages from one runtime instance to the
// bridge. It is closed when the instance is torn down.
type Channel struct {
	out       chan Outbound
	done      chan struct{}
	closeOnce sync.Once
}

func newChannel(size int) *Channel {
	return &Channel{out: make(chan Outbound, size), done: make(chan struct{})}
}

// Emit blocks until the bridge accepts msg, ctx ends or the channel closes.
func (c *Channel) Emit(ctx context.Context, msg Outbound) error {
	if msg == nil {
		return nil
	}
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	select {
	case c.out <- msg:
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) Done() <-chan struct{} { return c.done }

func (c *Channel) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
