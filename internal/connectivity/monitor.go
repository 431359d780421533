// Package connectivity polls a probe endpoint and reports when the host
// goes offline or comes back.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Status string

const (
	Online  Status = "Wi-Fi"
	Offline Status = "No Internet"
)

const (
	defaultInterval = 5 * time.Second
	probeTimeout    = 3 * time.Second
)

var ErrNoProbeURL = errors.New("connectivity_no_probe_url")

type Prober interface {
	Probe(ctx context.Context) error
}

type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// HTTPProber treats any HTTP response as reachability.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func (p HTTPProber) Probe(ctx context.Context) error {
	if p.URL == "" {
		return ErrNoProbeURL
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe status %d", resp.StatusCode)
	}
	return nil
}

// Restorer is told when the network comes back.
type Restorer interface {
	NetworkRestored()
}

type Options struct {
	Prober   Prober
	Interval time.Duration
	Restorer Restorer
	OnChange func(Status)
}

type Monitor struct {
	prober   Prober
	interval time.Duration
	restorer Restorer
	onChange func(Status)

	mu      sync.Mutex
	status  Status
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewMonitor(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	return &Monitor{
		prober:   opts.Prober,
		interval: opts.Interval,
		restorer: opts.Restorer,
		onChange: opts.OnChange,
		status:   Online,
	}
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Start checks once right away and then on every tick until Stop or ctx
// ends. A second Start is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go m.loop(ctx)
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()
	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Stop cancels the ticker and waits for an in-flight probe to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.started = false
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
}

// Check probes once and applies the result.
func (m *Monitor) Check(ctx context.Context) Status {
	next := Online
	if m.prober == nil {
		return m.apply(next)
	}
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := m.prober.Probe(pctx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return m.Status()
		}
		metricProbeFailures.Add(1)
		log.Debug().Err(err).Msg("connectivity_probe_failed")
		next = Offline
	}
	return m.apply(next)
}

func (m *Monitor) apply(next Status) Status {
	m.mu.Lock()
	prev := m.status
	m.status = next
	m.mu.Unlock()
	if prev == next {
		return next
	}

	metricTransitions.Add(1)
	log.Info().Str("from", string(prev)).Str("to", string(next)).Msg("connectivity_changed")
	if prev == Offline && next == Online && m.restorer != nil {
		m.restorer.NetworkRestored()
	}
	if m.onChange != nil {
		m.onChange(next)
	}
	return next
}
