// Package api serves the control surface of the bot: run control, settings,
// statistics and a status feed.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/types"
)

const (
	DefaultTimeout      = 2 * time.Minute
	ServiceName         = "alpha-volume-bot"
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"
)

// Controller starts, stops and reports trade-cycle runs.
type Controller interface {
	Start(ctx context.Context) (string, error)
	Stop()
	Status() types.RunReport
}

// StatsSource holds the latest daily statistics and refreshes them on demand.
type StatsSource interface {
	Last() (*types.DailyStats, time.Time, error)
	TryRefresh(ctx context.Context) (*types.DailyStats, error)
}

type Options struct {
	PointsMultiplier decimal.Decimal
	// StatusPush is the interval of the /ws status feed.
	StatusPush time.Duration
}

type Server struct {
	engine   Controller
	settings *store.Settings
	stats    StatsSource
	opts     Options

	// Runs started over HTTP outlive the request; they end with baseCtx.
	baseCtx context.Context
}

func NewServer(baseCtx context.Context, engine Controller, settings *store.Settings, stats StatsSource, opts Options) *Server {
	if opts.StatusPush <= 0 {
		opts.StatusPush = 2 * time.Second
	}
	if opts.PointsMultiplier.IsZero() {
		opts.PointsMultiplier = decimal.NewFromInt(4)
	}
	return &Server{
		engine:   engine,
		settings: settings,
		stats:    stats,
		opts:     opts,
		baseCtx:  baseCtx,
	}
}

// SetupRoutes configures all API routes.
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware())
	router.Use(gin.Recovery())

	router.GET("/health", s.HealthCheck)
	router.GET("/status", s.GetStatus)
	router.POST("/run/start", s.StartRun)
	router.POST("/run/stop", s.StopRun)
	router.GET("/config", s.GetConfig)
	router.PATCH("/config", s.PatchConfig)
	router.GET("/stats", s.GetStats)
	router.POST("/stats/refresh", s.RefreshStats)
	router.GET("/ws", s.StatusFeed)

	return router
}

// Serve listens on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	logger.Info(ctx, "API stopped")
	return nil
}
