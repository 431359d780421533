package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"slot-lobby/internal/storage"

	"github.com/rs/zerolog/log"
)

// Directory holds the loaded tables and favourite ids. Both are replaced
// wholesale on refresh.
type Directory struct {
	mu     sync.RWMutex
	tables []Table
	favs   []string
}

func New() *Directory {
	return &Directory{}
}

func (d *Directory) Replace(tables []Table, favIDs []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables = slices.Clone(tables)
	d.favs = slices.Clone(favIDs)
}

func (d *Directory) SetFavorites(favIDs []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.favs = slices.Clone(favIDs)
}

func (d *Directory) Tables() []Table {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.tables)
}

func (d *Directory) Favorites() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.favs)
}

func (d *Directory) IsFavorite(id TableID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Contains(d.favs, string(id))
}

func (d *Directory) Filtered(f Filters, excludeID string) []Table {
	d.mu.RLock()
	tables, favs := d.tables, d.favs
	d.mu.RUnlock()
	return Filter(tables, f, favs, excludeID)
}

func (d *Directory) FindBySlug(slug string) (Table, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, t := range d.tables {
		if t.Slug == slug {
			return t, true
		}
	}
	return Table{}, false
}

// persistedRoot mirrors the layout the web client wrote: every persisted
// slice is itself a JSON string.
type persistedRoot struct {
	Tables  string `json:"tables"`
	Persist string `json:"_persist"`
}

const persistMeta = `{"version":-1,"rehydrated":true}`

// Persist writes the table cache. Favourites are not persisted.
func (d *Directory) Persist(ctx context.Context, store storage.Durable) error {
	raw, err := json.Marshal(d.Tables())
	if err != nil {
		return err
	}
	root, err := json.Marshal(persistedRoot{Tables: string(raw), Persist: persistMeta})
	if err != nil {
		return err
	}
	return store.Set(ctx, storage.KeyPersistRoot, string(root))
}

// Restore loads a cached table set, leaving favourites empty. A missing
// cache is not an error.
func (d *Directory) Restore(ctx context.Context, store storage.Durable) error {
	v, err := store.Get(ctx, storage.KeyPersistRoot)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var root persistedRoot
	if err := json.Unmarshal([]byte(v), &root); err != nil {
		return fmt.Errorf("decode persisted root: %w", err)
	}
	var tables []Table
	if root.Tables != "" {
		if err := json.Unmarshal([]byte(root.Tables), &tables); err != nil {
			return fmt.Errorf("decode persisted tables: %w", err)
		}
	}
	d.mu.Lock()
	d.tables = KeepSupported(tables)
	d.mu.Unlock()
	log.Debug().Int("tables", len(tables)).Msg("directory_restored")
	return nil
}

// Purge drops the persisted cache.
func Purge(ctx context.Context, store storage.Durable) error {
	return store.Remove(ctx, storage.KeyPersistRoot)
}
