package engineobs

import (
	"context"
	"time"

	"alpha-volume-bot/internal/interfaces"
	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/trace"
	"alpha-volume-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Run(ctx context.Context) (types.RunReport, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Run")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting trade run")

	rep, err := oe.engine.Run(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Trade run not started", err)
		return rep, err
	}

	logger.InfoSkip(ctx, 1, "Trade run finished",
		"run_id", rep.RunID,
		"outcome", rep.Outcome,
		"completed_rounds", rep.CompletedRounds,
		"target_rounds", rep.TargetRounds,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rep, nil
}

func (oe *observableEngine) Start(ctx context.Context) (string, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Start")
	defer span.End()

	runID, err := oe.engine.Start(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Trade run not started", err)
		return "", err
	}
	logger.InfoSkip(ctx, 1, "Trade run started", "run_id", runID)
	return runID, nil
}

func (oe *observableEngine) Stop() {
	st := oe.engine.Status()
	logger.InfoSkip(context.Background(), 1, "Stop requested",
		"run_id", st.RunID,
		"state", st.State,
		"completed_rounds", st.CompletedRounds,
	)
	oe.engine.Stop()
}

func (oe *observableEngine) Status() types.RunReport {
	return oe.engine.Status()
}
