package storage

import (
	"context"
	"errors"
	"testing"

	"slot-lobby/internal/config"
)

func TestSessionStoreClear(t *testing.T) {
	s := NewSessionStore()
	s.Set(KeyToken, "abc")
	s.Set(KeyUsername, "alice")
	if v, ok := s.Get(KeyToken); !ok || v != "abc" {
		t.Fatalf("expected token abc, got %q %v", v, ok)
	}
	s.Remove(KeyToken)
	if _, ok := s.Get(KeyToken); ok {
		t.Fatal("expected token removed")
	}
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
	s.Clear()
}

func TestMemoryDurableNotFound(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDurable()
	if _, err := d.Get(ctx, KeyDeviceType); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := d.Set(ctx, MusicKey("bob"), "0.25"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := d.Get(ctx, "bob_music")
	if err != nil || v != "0.25" {
		t.Fatalf("expected 0.25, got %q %v", v, err)
	}
	if err := d.Remove(ctx, MusicKey("bob")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := d.Get(ctx, "bob_music"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestOpenDurableSelectsBackend(t *testing.T) {
	d, err := OpenDurable(context.Background(), config.StorageConfig{Durable: "memory"})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := d.(*MemoryDurable); !ok {
		t.Fatalf("expected *MemoryDurable, got %T", d)
	}
	if _, err := OpenDurable(context.Background(), config.StorageConfig{Durable: "postgres"}); err == nil {
		t.Fatal("expected error without dsn")
	}
	if _, err := OpenDurable(context.Background(), config.StorageConfig{Durable: "etcd"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
