package eod

import (
	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/interfaces"
)

// NewSummarizer writes reports under <logDir>/eod. pointsMultiplier weights
// the buy value in the points-volume line.
func NewSummarizer(logDir string, pointsMultiplier decimal.Decimal) interfaces.EodSummarizer {
	if logDir == "" {
		logDir = "logs"
	}
	return &eodSummarizer{dir: logDir, pointsMultiplier: pointsMultiplier}
}
