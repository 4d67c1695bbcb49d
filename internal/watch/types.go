// Package watch implements the stock watcher: a fixed-schedule poll loop
// that fetches the stock page, detects semantic changes via fingerprinting,
// and posts per-section sticker notifications gated by refresh periods.
package watch

import (
	"context"
	"time"

	"gardenbot/internal/stock"
	"gardenbot/internal/transport"
)

// Fetcher produces stock snapshots. Implementations retry internally and
// return an all-empty snapshot on total failure, never an error.
type Fetcher interface {
	Fetch(ctx context.Context) stock.Snapshot
}

// TokenSource resolves an item name to its sticker file id.
// ok=false means the item has no sticker configured and is skipped.
type TokenSource interface {
	Lookup(name string) (token string, ok bool)
}

// Section is one watched stock category.
type Section struct {
	Name    string
	Cadence time.Duration
	// Notify marks the section as eligible for channel posts. Non-notify
	// sections still participate in fingerprinting.
	Notify bool
}

// SectionState is the persisted per-section notification state.
// Mutated only by considerSection after a successful emit.
type SectionState struct {
	LastPeriod stock.Period `json:"last_period"`
	// LastMessage is the first message of the previous notification round;
	// deleting it removes the section's stale post from the channel.
	LastMessage transport.MessageRef `json:"last_message"`
}

// State is the whole persisted watcher state, replaced atomically once per
// cycle that performed work.
type State struct {
	Fingerprint string                  `json:"fingerprint"`
	Sections    map[string]SectionState `json:"sections"`
}

func newState() State {
	return State{Sections: map[string]SectionState{}}
}
