package stickers

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"testing"

	"gardenbot/internal/transport"
	logx "gardenbot/pkg/logx"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func newMemStore() *memStore { return &memStore{data: map[string]json.RawMessage{}} }

func (m *memStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	return raw, ok, nil
}

func (m *memStore) Put(ctx context.Context, key string, val json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append(json.RawMessage(nil), val...)
	return nil
}

func (m *memStore) Close() error { return nil }

func TestRegistrySetAndLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newMemStore()
	reg := NewRegistry(store, logx.Nop())

	if err := reg.Set(ctx, "Master Sprinkler", "file-1"); err != nil {
		t.Fatal(err)
	}

	// Case and spacing insensitive.
	for _, q := range []string{"Master Sprinkler", "master sprinkler", "MASTER  SPRINKLER"} {
		id, ok := reg.Lookup(q)
		if !ok || id != "file-1" {
			t.Fatalf("Lookup(%q) = (%q, %v), want (file-1, true)", q, id, ok)
		}
	}
	if _, ok := reg.Lookup("unmapped"); ok {
		t.Fatal("unmapped item resolved")
	}
}

func TestRegistryPersistsAcrossLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newMemStore()

	reg := NewRegistry(store, logx.Nop())
	if err := reg.Set(ctx, "trowel", "file-2"); err != nil {
		t.Fatal(err)
	}

	fresh := NewRegistry(store, logx.Nop())
	fresh.Load(ctx)
	id, ok := fresh.Lookup("trowel")
	if !ok || id != "file-2" {
		t.Fatalf("reloaded Lookup = (%q, %v), want (file-2, true)", id, ok)
	}
}

func TestRegistryLoadCorruptStartsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newMemStore()
	store.data[storeKey] = json.RawMessage(`{"broken`)

	reg := NewRegistry(store, logx.Nop())
	reg.Load(ctx)
	if got := reg.Bound(); len(got) != 0 {
		t.Fatalf("corrupt map yielded entries: %v", got)
	}
}

func TestRegistryMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := NewRegistry(nil, logx.Nop())
	if err := reg.Set(ctx, "a", "s-a"); err != nil {
		t.Fatal(err)
	}

	got := reg.Missing([]string{"a", "b", "c"})
	want := []string{"b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Missing = %v, want %v", got, want)
	}
}

func TestCommandName(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, want string
	}{
		{"/add", "/add"},
		{"/Add@GardenBot", "/add"},
		{"/check_stickers extra words", "/check_stickers"},
		{"hello", ""},
		{"  /start  ", "/start"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := commandName(tc.in); got != tc.want {
			t.Errorf("commandName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// stubAdapter records text sends for command flow tests.
type stubAdapter struct {
	mu       sync.Mutex
	texts    []string
	stickers []string
	keyboard [][]transport.Button
}

func (a *stubAdapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (a *stubAdapter) Stop(ctx context.Context) error                               { return nil }

func (a *stubAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.texts = append(a.texts, text)
	if opt != nil && opt.Keyboard != nil {
		a.keyboard = opt.Keyboard
	}
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(a.texts)}, nil
}

func (a *stubAdapter) SendSticker(ctx context.Context, to transport.ChatTarget, fileID string) (transport.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stickers = append(a.stickers, fileID)
	return transport.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (a *stubAdapter) DeleteMessage(ctx context.Context, ref transport.MessageRef) error { return nil }
func (a *stubAdapter) AnswerCallback(ctx context.Context, id, text string) error         { return nil }
func (a *stubAdapter) CheckPermissions(ctx context.Context, to transport.ChatTarget) (bool, error) {
	return true, nil
}

func TestCommandsAddFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ad := &stubAdapter{}
	reg := NewRegistry(newMemStore(), logx.Nop())
	const admin = int64(7)
	c := NewCommands(ad, reg, []string{"trowel", "shovel"}, admin, logx.Nop())

	c.handleMessage(ctx, &transport.Message{ChatID: 7, FromID: admin, Text: "/add"})
	if len(ad.keyboard) == 0 {
		t.Fatal("/add did not present the item keyboard")
	}
	if ad.keyboard[0][0].Data != "pick:trowel" {
		t.Fatalf("keyboard data %q, want pick:trowel", ad.keyboard[0][0].Data)
	}

	c.handleCallback(ctx, &transport.Callback{ID: "cb1", FromID: admin, ChatID: 7, Data: "pick:trowel"})
	c.handleMessage(ctx, &transport.Message{ChatID: 7, FromID: admin, StickerID: "file-9"})

	id, ok := reg.Lookup("trowel")
	if !ok || id != "file-9" {
		t.Fatalf("binding after flow = (%q, %v), want (file-9, true)", id, ok)
	}

	// Pending is consumed: a second sticker without a new pick is rejected.
	c.handleMessage(ctx, &transport.Message{ChatID: 7, FromID: admin, StickerID: "file-10"})
	if id, _ := reg.Lookup("trowel"); id != "file-9" {
		t.Fatalf("stray sticker rebound the item to %q", id)
	}
}

func TestCommandsRejectNonAdmin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ad := &stubAdapter{}
	reg := NewRegistry(nil, logx.Nop())
	c := NewCommands(ad, reg, []string{"trowel"}, 7, logx.Nop())

	c.handleMessage(ctx, &transport.Message{ChatID: 5, FromID: 5, Text: "/add"})
	if len(ad.keyboard) != 0 {
		t.Fatal("non-admin received the item keyboard")
	}

	c.handleCallback(ctx, &transport.Callback{ID: "cb1", FromID: 5, ChatID: 5, Data: "pick:trowel"})
	c.handleMessage(ctx, &transport.Message{ChatID: 5, FromID: 5, StickerID: "file-9"})
	if _, ok := reg.Lookup("trowel"); ok {
		t.Fatal("non-admin bound a sticker")
	}
}

func TestCommandsCoverageReport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ad := &stubAdapter{}
	reg := NewRegistry(nil, logx.Nop())
	if err := reg.Set(ctx, "trowel", "s-1"); err != nil {
		t.Fatal(err)
	}
	c := NewCommands(ad, reg, []string{"trowel", "shovel"}, 7, logx.Nop())

	c.handleMessage(ctx, &transport.Message{ChatID: 7, FromID: 7, Text: "/check_stickers"})
	if len(ad.stickers) != 1 || ad.stickers[0] != "s-1" {
		t.Fatalf("previewed stickers %v, want [s-1]", ad.stickers)
	}
	last := ad.texts[len(ad.texts)-1]
	if last != "Missing stickers: shovel" {
		t.Fatalf("coverage summary = %q", last)
	}
}
