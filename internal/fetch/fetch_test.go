package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	logx "gardenbot/pkg/logx"
)

func testClient(url string, attempts int) *Client {
	return New(Config{
		URL:        url,
		Attempts:   attempts,
		RetryDelay: time.Millisecond,
		Sections:   []string{"GEAR STOCK", "EGG STOCK", "SEEDS STOCK"},
		Required:   []string{"GEAR STOCK", "EGG STOCK", "SEEDS STOCK"},
	}, testTable(), logx.Nop())
}

func TestFetchRetriesUntilUsable(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	snap := testClient(srv.URL, 3).Fetch(context.Background())
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("server hit %d times, want 3", got)
	}
	if len(snap["SEEDS STOCK"]) == 0 {
		t.Fatalf("snapshot empty after successful retry: %+v", snap)
	}
}

func TestFetchEmptyPageIsNotUsable(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("<html><body><p>maintenance</p></body></html>"))
	}))
	defer srv.Close()

	snap := testClient(srv.URL, 2).Fetch(context.Background())
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("server hit %d times, want 2", got)
	}
	// Exhaustion yields the all-empty snapshot, never an error.
	if !snap.Empty([]string{"GEAR STOCK", "EGG STOCK", "SEEDS STOCK"}) {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestFetchHonorsContextCancel(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap := testClient(srv.URL, 5).Fetch(ctx)
	if !snap.Empty([]string{"GEAR STOCK"}) {
		t.Fatalf("canceled fetch produced items: %+v", snap)
	}
}
