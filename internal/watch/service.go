package watch

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"gardenbot/internal/runtime/supervisor"
	"gardenbot/internal/stock"
	"gardenbot/internal/storage"
	"gardenbot/internal/transport"
	logx "gardenbot/pkg/logx"
)

type Config struct {
	// Schedule is a duration ("30s") or cron expression; see ParseSchedule.
	Schedule string
	// GuardBand widens the too-soon window of the coalescing check.
	GuardBand time.Duration
	// Target is the notification channel.
	Target transport.ChatTarget
	// Sections are processed in slice order every cycle.
	Sections []Section
	// ResetOnStart clears persisted fingerprint/period state at startup.
	ResetOnStart bool
}

// Service is the poll coordinator. One goroutine runs the cycle; the
// mutex-guarded running/lastStart pair is the only shared mutable state and
// implements the at-most-one-concurrent-run guarantee.
type Service struct {
	cfg     Config
	log     logx.Logger
	adapter transport.Adapter
	fetcher Fetcher
	store   storage.Store

	sched    cron.Schedule
	interval time.Duration
	notif    *notifier

	mu        sync.Mutex
	running   bool
	lastStart time.Time

	sup *supervisor.Supervisor
}

func New(cfg Config, adapter transport.Adapter, fetcher Fetcher, tokens TokenSource, store storage.Store, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	sched, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if cfg.GuardBand <= 0 {
		cfg.GuardBand = 5 * time.Second
	}
	if cfg.Target.IsZero() {
		return nil, errors.New("watch: notification target required")
	}

	s := &Service{
		cfg:      cfg,
		log:      log,
		adapter:  adapter,
		fetcher:  fetcher,
		store:    store,
		sched:    sched,
		interval: scheduleInterval(sched),
	}
	s.notif = &notifier{
		log:     log,
		adapter: adapter,
		tokens:  tokens,
		target:  cfg.Target,
	}
	return s, nil
}

func (s *Service) Start(ctx context.Context) error {
	if s.cfg.ResetOnStart {
		s.log.Info("resetting persisted watch state")
		saveState(ctx, s.store, s.log, newState())
	}

	s.sup = supervisor.New(ctx,
		supervisor.WithLogger(s.log),
		supervisor.WithCancelOnError(false),
	)
	s.sup.GoRestart0("watch.loop", s.loop,
		supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
	)
	s.log.Info("watcher started",
		logx.Duration("interval", s.interval),
		logx.Int("sections", len(s.cfg.Sections)))
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.sup == nil {
		return nil
	}
	s.sup.Cancel()
	if err := s.sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Service) loop(ctx context.Context) {
	for {
		next := s.sched.Next(time.Now())
		t := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case now := <-t.C:
			s.tick(ctx, now)
		}
	}
}

// tick enforces the coalescing guard, then runs one cycle with panic
// containment: a failing cycle is logged and abandoned, never fatal.
func (s *Service) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	tooSoon := !s.lastStart.IsZero() && now.Sub(s.lastStart) < s.interval-s.cfg.GuardBand
	if s.running || tooSoon {
		s.mu.Unlock()
		s.log.Debug("tick skipped",
			logx.Bool("running", s.running),
			logx.Duration("since_last", now.Sub(s.lastStart)))
		return
	}
	s.running = true
	s.lastStart = now
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("watch cycle panicked",
				logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			// Brief pause so a hot panic loop can't spin.
			time.Sleep(time.Second)
		}
	}()

	s.runCycle(ctx, now)
}

// runCycle is one fetch -> compare -> notify -> persist pass.
func (s *Service) runCycle(ctx context.Context, now time.Time) {
	started := time.Now()
	s.log.Debug("stock check started")

	state := loadState(ctx, s.store, s.log)

	snap := s.fetcher.Fetch(ctx)
	if snap.Empty(s.notifySections()) {
		// Transient sourcing failure, not "stock went empty": skip without
		// touching state so the next tick re-evaluates.
		s.log.Warn("fetch yielded no usable items; skipping cycle")
		return
	}

	fp := stock.Fingerprint(snap)
	if fp == state.Fingerprint {
		s.log.Debug("stock unchanged", logx.String("fingerprint", fp))
		return
	}

	ok, err := s.adapter.CheckPermissions(ctx, s.cfg.Target)
	if err != nil {
		s.log.Error("permission check failed; aborting cycle", logx.Err(err))
		return
	}
	if !ok {
		s.log.Error("bot lacks post/delete rights in target channel; aborting cycle")
		return
	}

	emitted := 0
	for _, sec := range s.cfg.Sections {
		if !sec.Notify {
			continue
		}
		did, newSt := s.notif.considerSection(ctx, sec, snap[sec.Name], now, state.Sections[sec.Name])
		state.Sections[sec.Name] = newSt
		if did {
			emitted++
		}
	}

	// Persist even when nothing was eligible to post, so a seen fingerprint
	// is never re-evaluated next cycle.
	state.Fingerprint = fp
	saveState(ctx, s.store, s.log, state)

	s.log.Info("stock cycle done",
		logx.Int("sections_notified", emitted),
		logx.Duration("took", time.Since(started)))
}

func (s *Service) notifySections() []string {
	out := make([]string, 0, len(s.cfg.Sections))
	for _, sec := range s.cfg.Sections {
		if sec.Notify {
			out = append(out, sec.Name)
		}
	}
	return out
}
