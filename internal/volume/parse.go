package volume

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/store"
	"alpha-volume-bot/internal/types"
)

// Places kept for every figure.
const Places = 8

// DayStartHour is the local hour a trading day starts at.
const DayStartHour = 8

var (
	timePrefixRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	numberRe     = regexp.MustCompile(`\d[\d,]*\.?\d*|\.\d+`)
	volumeRe     = regexp.MustCompile(`\$([\d.,]+)\s*([KMBT])?`)
)

// TradingDay returns the trading day t belongs to as YYYY-MM-DD. Times before
// 08:00 local belong to the previous day.
func TradingDay(t time.Time) string {
	if t.Hour() < DayStartHour {
		t = t.AddDate(0, 0, -1)
	}
	return t.Format("2006-01-02")
}

// Parser turns order-history cells into trade records.
type Parser struct {
	sel store.Selectors
	loc *time.Location
}

func NewParser(sel store.Selectors, loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{sel: sel, loc: loc}
}

// RowTime parses the timestamp cell of a row.
func (p *Parser) RowTime(cells []string) (time.Time, bool) {
	if p.sel.Columns.Time >= len(cells) {
		return time.Time{}, false
	}
	raw := strings.TrimSpace(cells[p.sel.Columns.Time])
	if !timePrefixRe.MatchString(raw) {
		return time.Time{}, false
	}
	for _, layout := range p.sel.TimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, p.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseRow accepts a row only if it has a timestamp, a direction, a non-zero
// filled quantity and a filled status. Anything else is skipped.
func (p *Parser) ParseRow(cells []string) (types.TradeRecord, bool) {
	if len(cells) < p.sel.MinCells() {
		return types.TradeRecord{}, false
	}
	cols := p.sel.Columns

	t, ok := p.RowTime(cells)
	if !ok {
		return types.TradeRecord{}, false
	}

	dir := strings.TrimSpace(cells[cols.Direction])
	var side types.Side
	switch {
	case containsAny(dir, p.sel.BuyLabels):
		side = types.SideBuy
	case containsAny(dir, p.sel.SellLabels):
		side = types.SideSell
	default:
		return types.TradeRecord{}, false
	}

	status := strings.TrimSpace(cells[cols.Status])
	if !containsAny(status, p.sel.FilledLabels) {
		return types.TradeRecord{}, false
	}

	filled, ok := leadingNumber(cells[cols.Filled])
	if !ok || filled.IsZero() {
		return types.TradeRecord{}, false
	}
	price, _ := leadingNumber(cells[cols.Price])
	total, _ := leadingNumber(cells[cols.Total])

	return types.TradeRecord{
		Time:         t,
		RawTime:      strings.TrimSpace(cells[cols.Time]),
		Side:         side,
		FilledVolume: filled,
		Price:        price,
		TotalValue:   total,
		Status:       status,
	}, true
}

func containsAny(s string, labels []string) bool {
	for _, l := range labels {
		if l != "" && strings.Contains(s, l) {
			return true
		}
	}
	return false
}

// leadingNumber reads the first number in s, ignoring thousands separators,
// rounded to Places.
func leadingNumber(s string) (decimal.Decimal, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d.Round(Places), true
}

var ErrVolumeFormat = errors.New("unrecognized volume format")

// ParseVolumeM converts a "$12.3M" style figure to millions. K, M, B and T
// suffixes are supported; a bare number is taken as dollars.
func ParseVolumeM(text string) (decimal.Decimal, error) {
	m := volumeRe.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrVolumeFormat, text)
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrVolumeFormat, text)
	}
	switch m[2] {
	case "T":
		return v.Mul(decimal.NewFromInt(1_000_000)), nil
	case "B":
		return v.Mul(decimal.NewFromInt(1_000)), nil
	case "M":
		return v, nil
	case "K":
		return v.Div(decimal.NewFromInt(1_000)), nil
	default:
		return v.Div(decimal.NewFromInt(1_000_000)), nil
	}
}
