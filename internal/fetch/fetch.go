package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gardenbot/internal/retry"
	"gardenbot/internal/stock"
	logx "gardenbot/pkg/logx"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultAttempts   = 3
	defaultRetryDelay = 5 * time.Second
)

type Config struct {
	URL     string
	Timeout time.Duration
	// Attempts/RetryDelay bound the per-fetch retry loop.
	Attempts   int
	RetryDelay time.Duration
	// Sections lists every section to scrape; Required lists the sections of
	// which at least one must be non-empty for a fetch to count as usable.
	Sections []string
	Required []string
}

// Client fetches and parses the stock page.
//
// Fetch never propagates failure: after exhausting retries it returns an
// all-empty snapshot, which the coordinator treats as a transient sourcing
// failure and skips the cycle.
type Client struct {
	cfg   Config
	table *Table
	http  *http.Client
	log   logx.Logger
}

func New(cfg Config, table *Table, log logx.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:   cfg,
		table: table,
		http:  &http.Client{Timeout: cfg.Timeout},
		log:   log,
	}
}

func (c *Client) Fetch(ctx context.Context) stock.Snapshot {
	var snap stock.Snapshot
	err := retry.Do(ctx, c.cfg.Attempts, c.cfg.RetryDelay, func(attempt int) error {
		s, err := c.fetchOnce(ctx)
		if err != nil {
			c.log.Warn("stock fetch failed",
				logx.Int("attempt", attempt), logx.Err(err))
			return err
		}
		if s.Empty(c.cfg.Required) {
			c.log.Warn("stock fetch returned no usable items",
				logx.Int("attempt", attempt))
			return errors.New("empty stock")
		}
		snap = s
		return nil
	})
	if err != nil {
		c.log.Error("stock fetch exhausted retries", logx.Err(err))
		return c.emptySnapshot()
	}
	return snap
}

func (c *Client) fetchOnce(ctx context.Context) (stock.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return Parse(resp.Body, c.cfg.Sections, c.table)
}

func (c *Client) emptySnapshot() stock.Snapshot {
	snap := make(stock.Snapshot, len(c.cfg.Sections))
	for _, name := range c.cfg.Sections {
		snap[name] = []stock.Item{}
	}
	return snap
}
