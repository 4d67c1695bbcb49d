// Package stickers maintains the item-to-sticker mapping and the admin
// commands that manage it over chat.
package stickers

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"gardenbot/internal/storage"
	logx "gardenbot/pkg/logx"
)

const storeKey = "stickers.map"

// Registry maps item names to sticker file ids. Lookups are case-insensitive;
// the whole map is persisted on every mutation.
type Registry struct {
	log   logx.Logger
	store storage.Store

	mu  sync.RWMutex
	ids map[string]string
}

func NewRegistry(store storage.Store, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		log:   log,
		store: store,
		ids:   map[string]string{},
	}
}

// Load restores the persisted mapping. Missing or corrupt data leaves the
// registry empty; the admin can rebuild it with /add.
func (r *Registry) Load(ctx context.Context) {
	if r.store == nil {
		return
	}
	raw, ok, err := r.store.Get(ctx, storeKey)
	if err != nil {
		r.log.Warn("sticker map load failed; starting empty", logx.Err(err))
		return
	}
	if !ok {
		return
	}
	loaded := map[string]string{}
	if err := json.Unmarshal(raw, &loaded); err != nil {
		r.log.Warn("sticker map corrupt; starting empty", logx.Err(err))
		return
	}
	ids := make(map[string]string, len(loaded))
	for name, id := range loaded {
		ids[canon(name)] = id
	}
	r.mu.Lock()
	r.ids = ids
	r.mu.Unlock()
	r.log.Info("sticker map loaded", logx.Int("entries", len(ids)))
}

// Lookup implements the watcher's TokenSource.
func (r *Registry) Lookup(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[canon(name)]
	return id, ok
}

// Set binds an item to a sticker file id and persists the full map.
func (r *Registry) Set(ctx context.Context, name, fileID string) error {
	r.mu.Lock()
	r.ids[canon(name)] = fileID
	snapshot := make(map[string]string, len(r.ids))
	for k, v := range r.ids {
		snapshot[k] = v
	}
	r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, storeKey, raw)
}

// Missing returns the subset of names with no sticker bound, in input order.
func (r *Registry) Missing(names []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, n := range names {
		if _, ok := r.ids[canon(n)]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// Bound returns the mapped item names, sorted.
func (r *Registry) Bound() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ids))
	for n := range r.ids {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func canon(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
