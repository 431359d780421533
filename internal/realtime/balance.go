package realtime

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// BalancePoller asks for the wallet balance when the socket opens and then on
// a fixed interval while it stays open. Balances pushed back by the server
// are captured by its listener.
type BalancePoller struct {
	mgr      *Manager
	interval time.Duration
	listener *Listener
	onChange func(float64)

	mu      sync.Mutex
	stop    chan struct{}
	balance float64
	known   bool
}

func NewBalancePoller(mgr *Manager, interval time.Duration, onChange func(float64)) *BalancePoller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	p := &BalancePoller{mgr: mgr, interval: interval, onChange: onChange}
	p.listener = NewListener(p.handle)
	return p
}

// Hooks returns the lifecycle callbacks to pass to Manager.Connect.
func (p *BalancePoller) Hooks() ConnectOptions {
	return ConnectOptions{
		OnOpen:  p.Start,
		OnClose: func(error) { p.Stop() },
		OnError: func(error) { p.Stop() },
	}
}

func (p *BalancePoller) Attach() { p.mgr.AddListener(p.listener) }
func (p *BalancePoller) Detach() { p.mgr.RemoveListener(p.listener) }

// Start sends one balance request and arms the interval, replacing any
// interval already running.
func (p *BalancePoller) Start() {
	p.mu.Lock()
	if p.stop != nil {
		close(p.stop)
	}
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	p.request()
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if p.mgr.IsConnected() {
					p.request()
				}
			}
		}
	}()
}

func (p *BalancePoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

func (p *BalancePoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

func (p *BalancePoller) Balance() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, p.known
}

func (p *BalancePoller) request() {
	p.mgr.Send(map[string]string{"operation": OperationGetBalance})
}

func (p *BalancePoller) handle(msg Message) {
	balance, ok := msg.Balance()
	if !ok {
		return
	}
	p.mu.Lock()
	p.balance = balance
	p.known = true
	p.mu.Unlock()
	log.Debug().Float64("balance", balance).Msg("balance_update")
	if p.onChange != nil {
		p.onChange(balance)
	}
}
