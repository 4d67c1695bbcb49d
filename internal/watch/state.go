package watch

import (
	"context"
	"encoding/json"

	"gardenbot/internal/storage"
	logx "gardenbot/pkg/logx"
)

const stateKey = "watch.state"

// loadState reads the persisted watcher state. It never fails the caller:
// missing, corrupt, or unreadable data yields a fresh default (logged), at
// worst costing one duplicate notification round.
func loadState(ctx context.Context, store storage.Store, log logx.Logger) State {
	st := newState()
	if store == nil {
		return st
	}
	raw, ok, err := store.Get(ctx, stateKey)
	if err != nil {
		log.Warn("state load failed; starting from default", logx.Err(err))
		return st
	}
	if !ok {
		return st
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		log.Warn("state corrupt; starting from default", logx.Err(err))
		return newState()
	}
	if st.Sections == nil {
		st.Sections = map[string]SectionState{}
	}
	return st
}

// saveState persists the whole state. Best-effort: a lost write only risks a
// duplicate notification next cycle, so failures are logged and absorbed.
func saveState(ctx context.Context, store storage.Store, log logx.Logger, st State) {
	if store == nil {
		return
	}
	raw, err := json.Marshal(st)
	if err != nil {
		log.Error("state marshal failed", logx.Err(err))
		return
	}
	if err := store.Put(ctx, stateKey, raw); err != nil {
		log.Warn("state save failed", logx.Err(err))
	}
}
