package eod

import (
	"path/filepath"

	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/volume"
)

func reportPath(logDir, day string) string {
	return filepath.Join(logDir, "eod", day+".csv")
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(volume.Places)
}
