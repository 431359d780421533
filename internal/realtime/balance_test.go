package realtime

import (
	"strings"
	"testing"
	"time"
)

func TestBalancePollerLifecycle(t *testing.T) {
	d := newFakeDialer()
	m, _, _ := newTestManager(t, d, 3, time.Millisecond)

	changes := make(chan float64, 4)
	p := NewBalancePoller(m, 10*time.Millisecond, func(b float64) { changes <- b })
	p.Attach()
	connectAndWait(t, m, p.Hooks())

	conn := d.last()
	waitFor(t, "repeated balance requests", func() bool {
		n := 0
		for _, w := range conn.Written() {
			if strings.Contains(w, `"getbalance"`) {
				n++
			}
		}
		return n >= 3
	})

	conn.inbound <- []byte(`{"data":{"balance":1250.5}}`)
	select {
	case b := <-changes:
		if b != 1250.5 {
			t.Fatalf("unexpected balance %v", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("balance not observed")
	}
	if b, ok := p.Balance(); !ok || b != 1250.5 {
		t.Fatalf("expected cached balance, got %v %v", b, ok)
	}

	m.Close()
	if p.Running() {
		t.Fatal("expected poller stopped on close")
	}
	sent := len(conn.Written())
	time.Sleep(30 * time.Millisecond)
	if len(conn.Written()) != sent {
		t.Fatal("expected no requests after close")
	}
	p.Detach()
}
