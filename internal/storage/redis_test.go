package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"slot-lobby/internal/testutil"
)

func TestRedisRoundTrip(t *testing.T) {
	url := testutil.RedisURL(t)
	ctx := context.Background()
	ns := fmt.Sprintf("test_%d", time.Now().UnixNano())

	st, err := NewRedis(ctx, url, ns)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer st.Close()

	key := SoundKey("carol")
	if _, err := st.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.Set(ctx, key, "0.75"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, err := st.Get(ctx, key); err != nil || v != "0.75" {
		t.Fatalf("expected 0.75, got %q %v", v, err)
	}
	if err := st.Remove(ctx, key); err != nil {
		t.Fatalf("remove: %v", err)
	}
}
