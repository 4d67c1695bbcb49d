package watch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gardenbot/internal/stock"
	"gardenbot/internal/transport"
	logx "gardenbot/pkg/logx"
)

func testSnapshot() stock.Snapshot {
	return stock.Snapshot{
		"GEAR STOCK": {{Name: "trowel", Emoji: "🛠️", Qty: "x2"}},
	}
}

func newTestService(t *testing.T, ad *fakeAdapter, f Fetcher, tokens fakeTokens, store *memStore) *Service {
	t.Helper()
	s, err := New(Config{
		Schedule:  "30s",
		GuardBand: 5 * time.Second,
		Target:    transport.ChatTarget{ChatID: 42},
		Sections:  []Section{gearSection},
	}, ad, f, tokens, store, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Fast delete retries in tests.
	s.notif.deleteBackoff = time.Millisecond
	return s
}

func loadTestState(t *testing.T, store *memStore) State {
	t.Helper()
	raw, ok, err := store.Get(context.Background(), stateKey)
	if err != nil || !ok {
		t.Fatalf("state not persisted (ok=%v err=%v)", ok, err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		t.Fatalf("persisted state unreadable: %v", err)
	}
	return st
}

func TestRunCycleNotifiesAndPersists(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	store := newMemStore()
	snap := testSnapshot()
	s := newTestService(t, ad, &fakeFetcher{snap: snap}, fakeTokens{"trowel": "s-1"}, store)
	now := time.Date(2026, 1, 2, 10, 3, 0, 0, time.Local)

	s.runCycle(context.Background(), now)

	if got := ad.sentCount(); got != 1 {
		t.Fatalf("sent %d stickers, want 1", got)
	}
	st := loadTestState(t, store)
	if st.Fingerprint != stock.Fingerprint(snap) {
		t.Fatal("fingerprint not persisted")
	}
	if !st.Sections["GEAR STOCK"].LastPeriod.Contains(now) {
		t.Fatal("section period not persisted")
	}
}

func TestRunCycleUnchangedSnapshotNoop(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	store := newMemStore()
	snap := testSnapshot()
	s := newTestService(t, ad, &fakeFetcher{snap: snap}, fakeTokens{"trowel": "s-1"}, store)
	now := time.Date(2026, 1, 2, 10, 3, 0, 0, time.Local)

	s.runCycle(context.Background(), now)
	puts := store.putCount()

	s.runCycle(context.Background(), now.Add(30*time.Second))
	if got := ad.sentCount(); got != 1 {
		t.Fatalf("unchanged snapshot triggered a send (total %d)", got)
	}
	if store.putCount() != puts {
		t.Fatal("unchanged snapshot must not rewrite state")
	}
}

func TestRunCycleSamePeriodChangePersistsWithoutSend(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	store := newMemStore()
	fetcher := &fakeFetcher{snap: testSnapshot()}
	s := newTestService(t, ad, fetcher, fakeTokens{"trowel": "s-1"}, store)
	now := time.Date(2026, 1, 2, 10, 3, 0, 0, time.Local)

	s.runCycle(context.Background(), now)

	// Content changes inside the same window: new fingerprint is recorded so
	// it won't be re-evaluated, but the section stays gated.
	fetcher.snap = stock.Snapshot{
		"GEAR STOCK": {{Name: "trowel", Emoji: "🛠️", Qty: "x5"}},
	}
	s.runCycle(context.Background(), now.Add(time.Minute))

	if got := ad.sentCount(); got != 1 {
		t.Fatalf("period-gated change sent a sticker (total %d)", got)
	}
	st := loadTestState(t, store)
	if st.Fingerprint != stock.Fingerprint(fetcher.snap) {
		t.Fatal("new fingerprint not recorded on a gated round")
	}
}

func TestRunCycleEmptyFetchSkipsWithoutPersist(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	store := newMemStore()
	s := newTestService(t, ad, &fakeFetcher{snap: stock.Snapshot{}}, fakeTokens{"trowel": "s-1"}, store)

	s.runCycle(context.Background(), time.Now())

	if ad.sentCount() != 0 {
		t.Fatal("empty fetch must not notify")
	}
	if store.putCount() != 0 {
		t.Fatal("empty fetch must not persist state")
	}
}

func TestRunCyclePermissionFailureAborts(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		permOK bool
		err    error
	}{
		{name: "check errors", permOK: true, err: errors.New("chat not found")},
		{name: "rights missing", permOK: false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ad := newFakeAdapter()
			ad.permOK = tc.permOK
			ad.permErr = tc.err
			store := newMemStore()
			s := newTestService(t, ad, &fakeFetcher{snap: testSnapshot()}, fakeTokens{"trowel": "s-1"}, store)

			s.runCycle(context.Background(), time.Now())

			if ad.sentCount() != 0 {
				t.Fatal("must not notify without post/delete rights")
			}
			if store.putCount() != 0 {
				t.Fatal("aborted cycle must not mutate state")
			}
		})
	}
}

func TestTickCoalescing(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	store := newMemStore()
	fetcher := &fakeFetcher{snap: testSnapshot()}
	s := newTestService(t, ad, fetcher, fakeTokens{"trowel": "s-1"}, store)
	now := time.Date(2026, 1, 2, 10, 3, 0, 0, time.Local)

	s.tick(context.Background(), now)
	if got := ad.sentCount(); got != 1 {
		t.Fatalf("first tick sent %d, want 1", got)
	}

	// Content changes, but the tick lands inside interval minus guard band of
	// the last start: skipped entirely, state untouched.
	fetcher.snap = stock.Snapshot{
		"GEAR STOCK": {{Name: "trowel", Emoji: "🛠️", Qty: "x9"}},
	}
	puts := store.putCount()
	s.tick(context.Background(), now.Add(10*time.Second))
	if store.putCount() != puts {
		t.Fatal("coalesced tick ran a cycle")
	}

	// Past the guard threshold the tick runs: the changed fingerprint is
	// recorded even though the section is still period-gated.
	s.tick(context.Background(), now.Add(26*time.Second))
	if store.putCount() != puts+1 {
		t.Fatal("post-guard tick did not run a cycle")
	}
	if got := ad.sentCount(); got != 1 {
		t.Fatalf("period-gated tick sent a sticker (total %d)", got)
	}
}

func TestTickSkipsWhileRunning(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	store := newMemStore()
	s := newTestService(t, ad, &fakeFetcher{snap: testSnapshot()}, fakeTokens{"trowel": "s-1"}, store)

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.tick(context.Background(), time.Now())
	if ad.sentCount() != 0 {
		t.Fatal("tick must not overlap a running cycle")
	}
}

type panicFetcher struct{}

func (panicFetcher) Fetch(ctx context.Context) stock.Snapshot { panic("parser blew up") }

func TestTickContainsCyclePanic(t *testing.T) {
	t.Parallel()
	ad := newFakeAdapter()
	store := newMemStore()
	s := newTestService(t, ad, panicFetcher{}, fakeTokens{}, store)

	// Must not propagate, and the running flag must be released for the next tick.
	s.tick(context.Background(), time.Now())

	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		t.Fatal("running flag leaked after a panicking cycle")
	}
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "duration", raw: "30s"},
		{name: "empty uses default", raw: ""},
		{name: "cron", raw: "*/5 * * * *"},
		{name: "sub-second rejected", raw: "500ms", wantErr: true},
		{name: "garbage", raw: "every now and then", wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSchedule(tc.raw)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseSchedule(%q) err=%v, wantErr=%v", tc.raw, err, tc.wantErr)
			}
		})
	}
}

func TestScheduleInterval(t *testing.T) {
	t.Parallel()
	sched, err := ParseSchedule("30s")
	if err != nil {
		t.Fatal(err)
	}
	if got := scheduleInterval(sched); got != 30*time.Second {
		t.Fatalf("interval %v, want 30s", got)
	}
}
