package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"alpha-volume-bot/internal/types"
)

// outcomeOf classifies a run-ending error: shutdown stops, anything else
// fails.
func outcomeOf(ctx context.Context) types.RunOutcome {
	if ctx.Err() != nil {
		return types.OutcomeStopped
	}
	return types.OutcomeFailed
}

// unfinished returns the first order of the round that did not complete.
func unfinished(r types.TradeRound) (types.OrderResult, types.Side) {
	if !r.Buy.Completed() {
		return r.Buy, types.SideBuy
	}
	if !r.Sell.Completed() {
		return r.Sell, types.SideSell
	}
	return types.OrderResult{}, ""
}

func describe(side types.Side, res types.OrderResult) string {
	status := res.Status
	if status == "" {
		status = types.StatusUnknown
	}
	msg := fmt.Sprintf("%s order %s", side, status)
	if res.Message != "" {
		msg += ": " + res.Message
	}
	if status == types.StatusTimeout && !strings.Contains(msg, "manual intervention") {
		msg += ", manual intervention required"
	}
	return msg
}

func haltNotice(rep types.RunReport, at time.Time) types.Notice {
	n := types.Notice{
		Level:   types.NoticeInfo,
		Title:   "Run " + string(rep.Outcome),
		Message: rep.Message,
		At:      at,
	}
	switch rep.Outcome {
	case types.OutcomeFailed:
		n.Level = types.NoticeError
	case types.OutcomeStopped, types.OutcomeRejected:
		n.Level = types.NoticeWarn
	}
	if rep.Error != "" {
		n.Message += "\n" + rep.Error
	}
	return n
}
