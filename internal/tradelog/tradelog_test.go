package tradelog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"alpha-volume-bot/internal/types"
)

func TestAppendRoundUsesTradingDay(t *testing.T) {
	l := New(t.TempDir())
	l.now = func() time.Time { return time.Date(2025, 6, 10, 7, 30, 0, 0, time.Local) }

	round := types.TradeRound{
		Seq:       2,
		BuyPrice:  decimal.RequireFromString("0.51"),
		SellPrice: decimal.RequireFromString("0.5"),
		Buy:       types.OrderResult{Status: types.StatusCompleted},
		Sell:      types.OrderResult{Status: types.StatusCompleted},
	}
	if err := l.AppendRound("run-1", 13, round); err != nil {
		t.Fatalf("AppendRound failed: %v", err)
	}
	if err := l.AppendHalt(types.RunReport{RunID: "run-1", Outcome: types.OutcomeStopped, CompletedRounds: 2, TargetRounds: 13}); err != nil {
		t.Fatalf("AppendHalt failed: %v", err)
	}

	f, err := os.Open(l.Path("2025-06-09"))
	if err != nil {
		t.Fatalf("Expected the previous trading day's file: %v", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("Bad line %q: %v", sc.Text(), err)
		}
		entries = append(entries, e)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kind != KindRound || entries[0].Seq != 2 || entries[0].BuyStatus != "completed" {
		t.Errorf("Unexpected round entry %+v", entries[0])
	}
	if !entries[0].BuyPrice.Equal(decimal.RequireFromString("0.51")) {
		t.Errorf("Expected buy price 0.51, got %s", entries[0].BuyPrice)
	}
	if entries[1].Kind != KindHalt || entries[1].Outcome != "stopped" {
		t.Errorf("Unexpected halt entry %+v", entries[1])
	}
}

func TestCompressOlder(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	old := l.Path("2025-05-01")
	fresh := l.Path("2025-06-10")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte(`{"kind":"round"}`+"\n"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	past := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	if err := l.CompressOlder(7); err != nil {
		t.Fatalf("CompressOlder failed: %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("Expected old file removed, got %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("Expected fresh file kept, got %v", err)
	}

	f, err := os.Open(old + ".gz")
	if err != nil {
		t.Fatalf("Expected gzip file: %v", err)
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	defer gr.Close()
	var e Entry
	if err := json.NewDecoder(gr).Decode(&e); err != nil || e.Kind != KindRound {
		t.Errorf("Expected round entry in archive, got %+v (%v)", e, err)
	}
}
