package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"alpha-volume-bot/internal/ctxutil"
	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/trace"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	autostart := flag.Bool("autostart", false, "start a run as soon as the trading page is open")
	restart := flag.Bool("restart", false, "interrupt a running instance that holds the lock")
	flag.Parse()

	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	err := run(*configPath, *autostart, *restart)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = trace.Shutdown(shutdownCtx)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, autostart, restart bool) error {
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	cfg, err := loadConfig(sigCtx, configPath)
	if err != nil {
		return err
	}
	initializeTracing(sigCtx, cfg)
	shutdownWait := 2*time.Duration(cfg.Trading.OrderTimeoutMs)*time.Millisecond + time.Minute

	flock, err := acquireLock(sigCtx, cfg.LockFile, restart, shutdownWait)
	if err != nil {
		return err
	}
	defer flock.Unlock()

	// Background work outlives the first signal so the current round can
	// finish; it ends when the group is closed.
	var cg ctxutil.CloseGroup
	defer cg.Close()
	bgCtx := cg.Context()

	p, closePage, err := openPage(bgCtx, cfg)
	if err != nil {
		return err
	}
	defer closePage()

	b, err := initializeBot(bgCtx, cfg, p)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	server := initializeAPI(bgCtx, cfg, b)
	cg.Go(func(ctx context.Context) {
		if err := server.Serve(ctx, cfg.API.Addr); err != nil {
			logger.ErrorWithErr(ctx, "API server failed", err, "addr", cfg.API.Addr)
		}
	})
	if cfg.Stats.RefreshSeconds > 0 {
		cg.Go(func(ctx context.Context) {
			b.stats.RunPeriodic(ctx, time.Duration(cfg.Stats.RefreshSeconds)*time.Second)
		})
	}

	logger.Info(sigCtx, "Bot ready",
		"api", cfg.API.Addr,
		"target_rounds", cfg.Trading.MaxRounds,
		"log_dir", cfg.LogDir,
	)
	if autostart {
		if _, err := b.control.Start(bgCtx); err != nil {
			logger.ErrorWithErr(sigCtx, "Autostart failed", err)
		}
	}

	<-sigCtx.Done()
	// A second signal terminates immediately.
	stopSignals()

	logger.Info(bgCtx, "Shutdown requested, finishing the current round", "max_wait", shutdownWait.String())
	b.control.Stop()
	if !waitTimeout(b.engine.Wait, shutdownWait) {
		logger.Warn(bgCtx, "Round still in progress, cancelling it")
	}
	cg.Close()
	b.engine.Wait()

	logger.Info(context.Background(), "Bot stopped", "outcome", string(b.control.Status().Outcome))
	return nil
}

// waitTimeout reports whether wait returned within d.
func waitTimeout(wait func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
