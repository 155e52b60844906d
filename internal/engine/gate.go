package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/page"
	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/volume"
	"alpha-volume-bot/internal/waiter"
)

type gateResult struct {
	checked bool
	passed  bool
	volumeM decimal.Decimal
	reason  string
}

// checkGate compares the page's 24h volume, in millions, with the configured
// minimum. A zero minimum disables the gate. A figure that cannot be found
// or read rejects the run.
func (e *Engine) checkGate(ctx context.Context, t store.Trading) (gateResult, error) {
	if !t.MinVolumeM.IsPositive() {
		return gateResult{passed: true}, nil
	}

	if err := e.d.Lock.Acquire(ctx); err != nil {
		return gateResult{}, err
	}
	defer e.d.Lock.Release()

	sel := e.d.Selectors
	label, err := e.d.Waiter.WaitFor(ctx, page.WithText(sel.VolumeLabel, sel.VolumeLabelText), nil, e.opts.Gate)
	if errors.Is(err, waiter.ErrNotFound) {
		logger.Warn(ctx, "24h volume not found on page", "label", sel.VolumeLabelText)
		return gateResult{reason: "24h volume not found"}, nil
	}
	if err != nil {
		return gateResult{}, err
	}

	text := volumeText(label)
	v, err := volume.ParseVolumeM(text)
	if err != nil {
		logger.Warn(ctx, "24h volume unreadable", "text", text, "error", err)
		return gateResult{reason: fmt.Sprintf("unreadable 24h volume %q", text)}, nil
	}

	g := gateResult{checked: true, volumeM: v}
	if v.LessThan(t.MinVolumeM) {
		g.reason = fmt.Sprintf("24h volume %sM below minimum %sM", v.String(), t.MinVolumeM.String())
		logger.Warn(ctx, "Volume gate rejected run", "volume_m", v.String(), "min_volume_m", t.MinVolumeM.String())
		return g, nil
	}
	g.passed = true
	logger.Info(ctx, "Volume gate passed", "volume_m", v.String(), "min_volume_m", t.MinVolumeM.String())
	return g, nil
}

// volumeText reads the figure next to the label, or the label's container
// when the figure is not a sibling.
func volumeText(label page.Element) string {
	if next := strings.TrimSpace(label.Selection().Next().Text()); strings.Contains(next, "$") {
		return next
	}
	return strings.TrimSpace(label.Selection().Parent().Text())
}
