package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/nightlyone/lockfile"
	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/api"
	"alpha-volume-bot/internal/ctxutil"
	"alpha-volume-bot/internal/engine"
	"alpha-volume-bot/internal/engine/engineobs"
	"alpha-volume-bot/internal/eod"
	"alpha-volume-bot/internal/eod/eodobs"
	"alpha-volume-bot/internal/interfaces"
	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/notify"
	"alpha-volume-bot/internal/order"
	"alpha-volume-bot/internal/page"
	"alpha-volume-bot/internal/page/chromepage"
	"alpha-volume-bot/internal/page/pageobs"
	"alpha-volume-bot/internal/pricing"
	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/trace"
	"alpha-volume-bot/internal/tradelog"
	"alpha-volume-bot/internal/volume"
	"alpha-volume-bot/internal/volume/volumeobs"
	"alpha-volume-bot/internal/waiter"
)

// initializeSystem loads .env and initializes the logger
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initializeTracing installs the tracer under the configured service name.
// The bot keeps running without traces when it fails.
func initializeTracing(ctx context.Context, cfg *store.Config) {
	if err := trace.Init(trace.Options{ServiceName: cfg.Trace.ServiceName, Version: version}); err != nil {
		logger.ErrorWithErr(ctx, "Failed to initialize tracer", err)
	}
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// lockRetryInterval paces TryLock while a restarted owner shuts down.
var lockRetryInterval = time.Second

// acquireLock takes the process lock. With restart set, a running owner is
// interrupted and given shutdownTimeout to release it.
func acquireLock(ctx context.Context, path string, restart bool, shutdownTimeout time.Duration) (lockfile.Lockfile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	flock, err := lockfile.New(abs)
	if err != nil {
		return "", fmt.Errorf("could not create lock file %q: %w", abs, err)
	}
	if err := flock.TryLock(); err == nil {
		return flock, nil
	} else if !restart {
		return "", fmt.Errorf("could not get lock on file %q (another bot running?): %w", abs, err)
	}

	owner, err := flock.GetOwner()
	if err != nil {
		return "", fmt.Errorf("could not get current owner of the lock file: %w", err)
	}
	logger.Warn(ctx, "Interrupting running instance", "pid", owner.Pid)
	if err := owner.Signal(os.Interrupt); err != nil {
		return "", fmt.Errorf("could not interrupt current owner of the lock file: %w", err)
	}
	if err := ctxutil.RetryTimeout(ctx, lockRetryInterval, shutdownTimeout, flock.TryLock); err != nil {
		return "", fmt.Errorf("previous instance did not release %q: %w", abs, err)
	}
	return flock, nil
}

// compressOldLogs compresses old round logs if retention is configured
func compressOldLogs(ctx context.Context, tl *tradelog.Log) {
	v := os.Getenv("TRADER_LOG_RETENTION_DAYS")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn(ctx, "Invalid TRADER_LOG_RETENTION_DAYS", "value", v)
		return
	}
	if err := tl.CompressOlder(n); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}

// openPage opens the trading page in the browser and wraps it with
// observability. The returned closer releases the browser tab.
func openPage(ctx context.Context, cfg *store.Config) (page.Page, func(), error) {
	p, err := chromepage.Open(ctx, chromepage.Options{
		URL:            cfg.Page.URL,
		RemoteURL:      cfg.Page.RemoteURL,
		UserDataDir:    cfg.Page.UserDataDir,
		Headless:       cfg.Page.Headless,
		ActionInterval: time.Duration(cfg.Page.ActionIntervalMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening trading page: %w", err)
	}

	if cfg.Page.RemoteURL != "" {
		logger.Info(ctx, "Attached to running browser", "remote_url", cfg.Page.RemoteURL)
	} else {
		logger.Info(ctx, "Browser launched", "headless", cfg.Page.Headless)
	}
	return pageobs.Wrap(p), p.Close, nil
}

// initializeNotifier always logs notices and adds Telegram when a token is
// configured
func initializeNotifier(ctx context.Context, cfg *store.Config) interfaces.Notifier {
	notifiers := notify.Multi{notify.Log{}}

	token := os.Getenv(cfg.Notify.TelegramTokenEnv)
	if token == "" {
		logger.Info(ctx, "Telegram notifications disabled", "token_env", cfg.Notify.TelegramTokenEnv)
		return notifiers
	}
	tg, err := notify.NewTelegram(token, cfg.Notify.TelegramChatID)
	if err != nil {
		logger.Warn(ctx, "Telegram notifications disabled", "error", err)
		return notifiers
	}
	return append(notifiers, tg)
}

// bot holds the wired components of a running process.
type bot struct {
	engine   *engine.Engine
	control  interfaces.Engine
	settings *store.Settings
	stats    *volume.Service
	tradeLog *tradelog.Log
}

// initializeBot wires the trade cycle, statistics and reporting on top of p.
func initializeBot(ctx context.Context, cfg *store.Config, p page.Page) (*bot, error) {
	settings, err := store.NewSettings(cfg.Trading.Trading())
	if err != nil {
		return nil, err
	}

	sel := cfg.Selectors
	lock := page.NewLock()
	w := waiter.New(p)
	points := decimal.NewFromFloat(cfg.Stats.PointsMultiplier)

	tracker := order.NewTracker(p, sel, order.DefaultTrackerOptions)
	submitter := order.NewSubmitter(w, sel, tracker, order.DefaultTimings)

	aggOpts := volume.DefaultOptions()
	aggOpts.MaxPages = cfg.Stats.MaxPages
	agg := volumeobs.Wrap(volume.NewAggregator(w, sel, aggOpts))
	stats := volume.NewService(agg, lock)

	tl := tradelog.New(cfg.LogDir)
	compressOldLogs(ctx, tl)

	opts := engine.DefaultOptions()
	opts.Fallback = cfg.DynamicFallback
	opts.StatsEvery = cfg.Stats.EveryRounds

	eng := engine.NewEngine(engine.Deps{
		Waiter:    w,
		Selectors: sel,
		Settings:  settings,
		Lock:      lock,
		Oracle:    pricing.New(w, sel),
		Orders:    submitter,
		Stats:     stats,
		TradeLog:  tl,
		Notifier:  initializeNotifier(ctx, cfg),
		Eod:       eodobs.Wrap(eod.NewSummarizer(cfg.LogDir, points)),
	}, opts)

	return &bot{
		engine:   eng,
		control:  engineobs.Wrap(eng),
		settings: settings,
		stats:    stats,
		tradeLog: tl,
	}, nil
}

// initializeAPI builds the control server. Runs it starts end with baseCtx.
func initializeAPI(baseCtx context.Context, cfg *store.Config, b *bot) *api.Server {
	return api.NewServer(baseCtx, b.control, b.settings, b.stats, api.Options{
		PointsMultiplier: decimal.NewFromFloat(cfg.Stats.PointsMultiplier),
		StatusPush:       time.Duration(cfg.API.StatusPushSeconds) * time.Second,
	})
}
