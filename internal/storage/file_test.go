package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	logx "gardenbot/pkg/logx"
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "watch.state"); err != nil || ok {
		t.Fatalf("Get on empty store = ok=%v err=%v", ok, err)
	}

	want := json.RawMessage(`{"fingerprint":"abc","sections":{}}`)
	if err := st.Put(ctx, "watch.state", want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := st.Get(ctx, "watch.state")
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v", ok, err)
	}
	if string(got) != string(want) {
		t.Fatalf("Get = %s, want %s", got, want)
	}

	// Overwrite is whole-value.
	next := json.RawMessage(`{"fingerprint":"def","sections":{}}`)
	if err := st.Put(ctx, "watch.state", next); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _, _ = st.Get(ctx, "watch.state")
	if string(got) != string(next) {
		t.Fatalf("Get after overwrite = %s", got)
	}
}

func TestFileStoreCorruptValue(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	if err := os.WriteFile(filepath.Join(dir, "stickers.map.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := st.Get(context.Background(), "stickers.map"); err == nil {
		t.Fatal("expected error for corrupt value")
	}
}

func TestFileStoreRejectsBadKeys(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	for _, key := range []string{"", "../escape", "has space", "UPPER"} {
		if err := st.Put(context.Background(), key, json.RawMessage(`{}`)); err == nil {
			t.Fatalf("Put(%q) accepted, want error", key)
		}
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "bogus"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
