package store

import (
	"strings"
	"testing"
)

const sampleConfig = `
page:
  remote_url: ws://127.0.0.1:9222
trading:
  buy_price: 1.25
  sell_price: 1.24
  order_volume: 10
  max_rounds: 5
  order_timeout_ms: 60000
selectors:
  price_input: "#myPrice"
`

func TestParseConfigDefaults(t *testing.T) {
	c, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if c.DynamicFallback != FallbackStatic {
		t.Errorf("Expected fallback %q, got %q", FallbackStatic, c.DynamicFallback)
	}
	if c.Stats.MaxPages != 50 {
		t.Errorf("Expected 50 max pages, got %d", c.Stats.MaxPages)
	}
	if c.Stats.EveryRounds != 3 {
		t.Errorf("Expected stats every 3 rounds, got %d", c.Stats.EveryRounds)
	}
	if c.Selectors.PriceInput != "#myPrice" {
		t.Errorf("Expected overridden price input, got %q", c.Selectors.PriceInput)
	}
	if c.Selectors.VolumeInput != "#limitTotal" {
		t.Errorf("Expected default volume input, got %q", c.Selectors.VolumeInput)
	}
	if c.Selectors.MinCells() != 11 {
		t.Errorf("Expected 11 cells, got %d", c.Selectors.MinCells())
	}

	tr := c.Trading.Trading()
	if tr.MaxRounds != 5 || tr.BuyPrice.String() != "1.25" {
		t.Errorf("Unexpected trading values: %+v", tr)
	}
}

func TestParseConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing page",
			yaml:    "trading:\n  buy_price: 1\n  sell_price: 1\n",
			wantErr: "page.url",
		},
		{
			name:    "bad fallback",
			yaml:    "page:\n  url: https://x\ndynamic_fallback: maybe\ntrading:\n  buy_price: 1\n  sell_price: 1\n",
			wantErr: "dynamic_fallback",
		},
		{
			name:    "zero price",
			yaml:    "page:\n  url: https://x\ntrading:\n  buy_price: 0\n  sell_price: 1\n",
			wantErr: "buy_price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExampleConfigLoads(t *testing.T) {
	c, err := LoadConfig("../../config.example.yaml")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if c.Page.RemoteURL == "" || c.API.Addr != "127.0.0.1:8089" {
		t.Errorf("Unexpected example values: page=%+v api=%+v", c.Page, c.API)
	}
	if c.Selectors.Rows == "" {
		t.Error("Expected default selectors to be applied")
	}
}

func TestParseReportConfig(t *testing.T) {
	// Only selectors and stats matter offline; no page or trading section.
	offline := "stats:\n  max_pages: 5\nselectors:\n  rows: \".history-row\"\n"

	if _, err := ParseConfig([]byte(offline)); err == nil {
		t.Error("Expected the bot config to require a page")
	}

	c, err := ParseReportConfig([]byte(offline))
	if err != nil {
		t.Fatalf("ParseReportConfig failed: %v", err)
	}
	if c.Stats.MaxPages != 5 {
		t.Errorf("Expected 5 max pages, got %d", c.Stats.MaxPages)
	}
	if c.Selectors.Rows != ".history-row" {
		t.Errorf("Expected overridden rows selector, got %q", c.Selectors.Rows)
	}

	if _, err := ParseReportConfig([]byte("stats:\n  points_multiplier: -1\n")); err == nil ||
		!strings.Contains(err.Error(), "points_multiplier") {
		t.Errorf("Expected points_multiplier error, got %v", err)
	}
}
