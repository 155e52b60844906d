// Package tradelog appends one JSON line per trade round to a file per
// trading day under the log directory.
package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/types"
	"alpha-volume-bot/internal/volume"
)

type Entry struct {
	Time       string          `json:"time"`
	Kind       string          `json:"kind"`
	RunID      string          `json:"run_id"`
	Seq        int             `json:"seq,omitempty"`
	Target     int             `json:"target,omitempty"`
	BuyPrice   decimal.Decimal `json:"buy_price"`
	SellPrice  decimal.Decimal `json:"sell_price"`
	BuyStatus  string          `json:"buy_status,omitempty"`
	SellStatus string          `json:"sell_status,omitempty"`
	Outcome    string          `json:"outcome,omitempty"`
	Message    string          `json:"message,omitempty"`
	Extra      map[string]any  `json:"extra,omitempty"`
}

const (
	KindRound = "round"
	KindHalt  = "halt"
)

type Log struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

func New(dir string) *Log {
	if dir == "" {
		dir = "logs"
	}
	return &Log{dir: dir, now: time.Now}
}

// Path is the file rounds of the given trading day go to.
func (l *Log) Path(day string) string {
	return filepath.Join(l.dir, day+".txt")
}

func (l *Log) AppendRound(runID string, target int, r types.TradeRound) error {
	return l.append(Entry{
		Kind:       KindRound,
		RunID:      runID,
		Seq:        r.Seq,
		Target:     target,
		BuyPrice:   r.BuyPrice,
		SellPrice:  r.SellPrice,
		BuyStatus:  string(r.Buy.Status),
		SellStatus: string(r.Sell.Status),
		Message:    firstNonEmpty(r.Sell.Message, r.Buy.Message),
	})
}

func (l *Log) AppendHalt(rep types.RunReport) error {
	e := Entry{
		Kind:    KindHalt,
		RunID:   rep.RunID,
		Seq:     rep.CompletedRounds,
		Target:  rep.TargetRounds,
		Outcome: string(rep.Outcome),
		Message: rep.Message,
	}
	if rep.Error != "" {
		e.Extra = map[string]any{"error": rep.Error}
	}
	return l.append(e)
}

func (l *Log) append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e.Time = now.Format("2006-01-02 15:04:05")
	p := l.Path(volume.TradingDay(now))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips day files last modified more than retentionDays ago
// and removes the originals.
func (l *Log) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := l.now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(l.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			return os.Remove(p)
		}
		if err := gzipFile(p, gz); err != nil {
			return fmt.Errorf("compress %s: %w", p, err)
		}
		return os.Remove(p)
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
