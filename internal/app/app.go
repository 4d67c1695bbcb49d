// Package app wires the bot together: config, logging, storage, the
// Telegram adapter, the sticker registry and its admin commands, and the
// stock watcher.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gardenbot/internal/config"
	"gardenbot/internal/fetch"
	"gardenbot/internal/runtime/supervisor"
	"gardenbot/internal/stickers"
	"gardenbot/internal/storage"
	kit "gardenbot/internal/transport"
	telegram "gardenbot/internal/transport/telegram/adapter"
	"gardenbot/internal/watch"
	logx "gardenbot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	adapter kit.Adapter

	registry *stickers.Registry
	commands *stickers.Commands
	watcher  *watch.Service

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// logx.New() calls Apply() immediately. Bootstrap with the Telegram sink
	// disabled, set the target, then Apply() the final config so enabling the
	// sink never races a missing target.
	baseLogCfg := mapLogConfig(cfg)
	baseLogCfg.Telegram.Enabled = false
	logSvc, log := logx.New(baseLogCfg, ad)
	log = log.With(logx.String("comp", "app"))

	if cfg.Telegram.AdminID != 0 {
		logSvc.SetTelegramTarget(kit.ChatTarget{ChatID: cfg.Telegram.AdminID})
	}
	logSvc.Apply(mapLogConfig(cfg))

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	table, itemNames := buildTable(cfg)

	fetchCfg, err := mapFetchConfig(cfg)
	if err != nil {
		return nil, err
	}
	client := fetch.New(fetchCfg, table, log.With(logx.String("comp", "fetch")))

	registry := stickers.NewRegistry(store, log.With(logx.String("comp", "stickers")))
	commands := stickers.NewCommands(ad, registry, itemNames, cfg.Telegram.AdminID,
		log.With(logx.String("comp", "commands")))

	watchCfg, err := mapWatchConfig(cfg)
	if err != nil {
		return nil, err
	}
	watcher, err := watch.New(watchCfg, ad, client, registry, store,
		log.With(logx.String("comp", "watch")))
	if err != nil {
		return nil, err
	}

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		store:    store,
		adapter:  ad,
		registry: registry,
		commands: commands,
		watcher:  watcher,
		updates:  make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(true),
	)

	a.registry.Load(a.sup.Context())

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	if err := a.watcher.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go0("commands.dispatch", func(c context.Context) {
		a.commands.Run(c, a.updates)
	})

	// Config hot reload: logging changes apply live; anything else needs a
	// restart and is called out in the log.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetOnChange(func(newCfg *config.Config) {
		if newCfg.Telegram.AdminID != 0 {
			a.logs.SetTelegramTarget(kit.ChatTarget{ChatID: newCfg.Telegram.AdminID})
		} else {
			a.logs.SetTelegramTarget(kit.ChatTarget{})
		}
		a.logs.Apply(mapLogConfig(newCfg))
		a.log.Info("logging config reapplied; other sections need a restart")
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Bound each shutdown step so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem > 0 && rem < max {
					max = rem
				}
			}
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Err(stepCtx.Err()))
		}
	}

	step("watcher", 2*time.Second, func(c context.Context) error { return a.watcher.Stop(c) })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil || strings.TrimSpace(cfg.Storage.Driver) == "" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, true, nil
}

// buildTable assembles the item allowlist and section decorations, returning
// canonical item names in config order for the admin keyboard.
func buildTable(cfg *config.Config) (*fetch.Table, []string) {
	items := make([]fetch.ItemSpec, 0, len(cfg.Watch.Items))
	names := make([]string, 0, len(cfg.Watch.Items))
	for _, it := range cfg.Watch.Items {
		items = append(items, fetch.ItemSpec{Name: it.Name, Emoji: it.Emoji})
		names = append(names, fetch.NormalizeName(it.Name))
	}
	sections := make([]fetch.SectionSpec, 0, len(cfg.Watch.Sections))
	for _, s := range cfg.Watch.Sections {
		sections = append(sections, fetch.SectionSpec{Name: s.Name, Emoji: s.Emoji})
	}
	return fetch.NewTable(items, sections), names
}

func mapFetchConfig(cfg *config.Config) (fetch.Config, error) {
	timeout, err := config.ParseDurationOrDefault("watch.fetch_timeout", cfg.Watch.FetchTimeout, 15*time.Second)
	if err != nil {
		return fetch.Config{}, err
	}
	all := make([]string, 0, len(cfg.Watch.Sections))
	var required []string
	for _, s := range cfg.Watch.Sections {
		all = append(all, s.Name)
		if s.Notify {
			required = append(required, s.Name)
		}
	}
	return fetch.Config{
		URL:      cfg.Watch.URL,
		Timeout:  timeout,
		Sections: all,
		Required: required,
	}, nil
}

func mapWatchConfig(cfg *config.Config) (watch.Config, error) {
	guard, err := config.ParseDurationOrDefault("watch.guard_band", cfg.Watch.GuardBand, 5*time.Second)
	if err != nil {
		return watch.Config{}, err
	}
	sections := make([]watch.Section, 0, len(cfg.Watch.Sections))
	for _, s := range cfg.Watch.Sections {
		cadence, err := config.ParseDurationField("watch.sections.cadence", s.Cadence)
		if err != nil {
			return watch.Config{}, err
		}
		if cadence <= 0 {
			return watch.Config{}, fmt.Errorf("watch.sections: %q needs a positive cadence", s.Name)
		}
		sections = append(sections, watch.Section{
			Name:    s.Name,
			Cadence: cadence,
			Notify:  s.Notify,
		})
	}
	return watch.Config{
		Schedule:     cfg.Watch.Schedule,
		GuardBand:    guard,
		Target:       parseChatTarget(cfg.Telegram.Channel),
		Sections:     sections,
		ResetOnStart: cfg.Watch.ResetOnStart,
	}, nil
}

// parseChatTarget accepts a numeric chat id or a channel @username.
func parseChatTarget(raw string) kit.ChatTarget {
	s := strings.TrimSpace(raw)
	if s == "" {
		return kit.ChatTarget{}
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return kit.ChatTarget{ChatID: id}
	}
	return kit.ChatTarget{Username: strings.TrimPrefix(s, "@")}
}
