package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Trading is the runtime form of the trading parameters. When DynamicPricing
// is on, BuyPrice and SellPrice only act as sanity bounds for the oracle.
type Trading struct {
	BuyPrice            decimal.Decimal `json:"buy_price"`
	SellPrice           decimal.Decimal `json:"sell_price"`
	DynamicPricing      bool            `json:"dynamic_pricing"`
	PriceOffset         decimal.Decimal `json:"price_offset"`
	OrderVolume         decimal.Decimal `json:"order_volume"`
	MaxRounds           int             `json:"max_rounds"`
	OrderTimeoutMs      int             `json:"order_timeout_ms"`
	AbortOnPriceWarning bool            `json:"abort_on_price_warning"`
	MinVolumeM          decimal.Decimal `json:"min_volume_m"`
}

func (t TradingConfig) Trading() Trading {
	return Trading{
		BuyPrice:            decimal.NewFromFloat(t.BuyPrice),
		SellPrice:           decimal.NewFromFloat(t.SellPrice),
		DynamicPricing:      t.DynamicPricing,
		PriceOffset:         decimal.NewFromFloat(t.PriceOffset),
		OrderVolume:         decimal.NewFromFloat(t.OrderVolume),
		MaxRounds:           t.MaxRounds,
		OrderTimeoutMs:      t.OrderTimeoutMs,
		AbortOnPriceWarning: t.AbortOnPriceWarning,
		MinVolumeM:          decimal.NewFromFloat(t.MinVolumeM),
	}
}

func (t Trading) OrderTimeout() time.Duration {
	return time.Duration(t.OrderTimeoutMs) * time.Millisecond
}

func (t Trading) validated() (Trading, error) {
	if !t.BuyPrice.IsPositive() {
		return t, fmt.Errorf("buy_price must be positive, got %s", t.BuyPrice)
	}
	if !t.SellPrice.IsPositive() {
		return t, fmt.Errorf("sell_price must be positive, got %s", t.SellPrice)
	}
	if t.PriceOffset.IsNegative() {
		return t, fmt.Errorf("price_offset must not be negative, got %s", t.PriceOffset)
	}
	if !t.OrderVolume.IsPositive() {
		return t, fmt.Errorf("order_volume must be positive, got %s", t.OrderVolume)
	}
	if t.MaxRounds < 1 {
		return t, fmt.Errorf("max_rounds must be at least 1, got %d", t.MaxRounds)
	}
	if t.OrderTimeoutMs < 1000 {
		return t, fmt.Errorf("order_timeout_ms must be at least 1000, got %d", t.OrderTimeoutMs)
	}
	if t.MinVolumeM.IsNegative() {
		return t, fmt.Errorf("min_volume_m must not be negative, got %s", t.MinVolumeM)
	}
	return t, nil
}

// Patch is a partial update of Trading. Nil fields are left unchanged.
type Patch struct {
	BuyPrice            *decimal.Decimal `json:"buy_price,omitempty"`
	SellPrice           *decimal.Decimal `json:"sell_price,omitempty"`
	DynamicPricing      *bool            `json:"dynamic_pricing,omitempty"`
	PriceOffset         *decimal.Decimal `json:"price_offset,omitempty"`
	OrderVolume         *decimal.Decimal `json:"order_volume,omitempty"`
	MaxRounds           *int             `json:"max_rounds,omitempty"`
	OrderTimeoutMs      *int             `json:"order_timeout_ms,omitempty"`
	AbortOnPriceWarning *bool            `json:"abort_on_price_warning,omitempty"`
	MinVolumeM          *decimal.Decimal `json:"min_volume_m,omitempty"`
}

func (p Patch) apply(t Trading) Trading {
	if p.BuyPrice != nil {
		t.BuyPrice = *p.BuyPrice
	}
	if p.SellPrice != nil {
		t.SellPrice = *p.SellPrice
	}
	if p.DynamicPricing != nil {
		t.DynamicPricing = *p.DynamicPricing
	}
	if p.PriceOffset != nil {
		t.PriceOffset = *p.PriceOffset
	}
	if p.OrderVolume != nil {
		t.OrderVolume = *p.OrderVolume
	}
	if p.MaxRounds != nil {
		t.MaxRounds = *p.MaxRounds
	}
	if p.OrderTimeoutMs != nil {
		t.OrderTimeoutMs = *p.OrderTimeoutMs
	}
	if p.AbortOnPriceWarning != nil {
		t.AbortOnPriceWarning = *p.AbortOnPriceWarning
	}
	if p.MinVolumeM != nil {
		t.MinVolumeM = *p.MinVolumeM
	}
	return t
}

var ErrInvalidSetting = errors.New("invalid setting")

// Settings owns the trading parameters for the lifetime of the process.
// Readers take a Snapshot; a running cycle takes one per round, so changes
// apply from the next round on.
type Settings struct {
	mu sync.RWMutex
	t  Trading
}

func NewSettings(t Trading) (*Settings, error) {
	t, err := t.validated()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	return &Settings{t: t}, nil
}

func (s *Settings) Snapshot() Trading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t
}

// Apply validates the patched result as a whole and stores it only when valid.
func (s *Settings) Apply(p Patch) (Trading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := p.apply(s.t).validated()
	if err != nil {
		return s.t, fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	s.t = next
	return next, nil
}

func (s *Settings) SetBuyPrice(v decimal.Decimal) error {
	_, err := s.Apply(Patch{BuyPrice: &v})
	return err
}

func (s *Settings) SetSellPrice(v decimal.Decimal) error {
	_, err := s.Apply(Patch{SellPrice: &v})
	return err
}

func (s *Settings) SetDynamicPricing(v bool) error {
	_, err := s.Apply(Patch{DynamicPricing: &v})
	return err
}

func (s *Settings) SetPriceOffset(v decimal.Decimal) error {
	_, err := s.Apply(Patch{PriceOffset: &v})
	return err
}

func (s *Settings) SetOrderVolume(v decimal.Decimal) error {
	_, err := s.Apply(Patch{OrderVolume: &v})
	return err
}

func (s *Settings) SetMaxRounds(v int) error {
	_, err := s.Apply(Patch{MaxRounds: &v})
	return err
}

func (s *Settings) SetOrderTimeoutMs(v int) error {
	_, err := s.Apply(Patch{OrderTimeoutMs: &v})
	return err
}

func (s *Settings) SetAbortOnPriceWarning(v bool) error {
	_, err := s.Apply(Patch{AbortOnPriceWarning: &v})
	return err
}

func (s *Settings) SetMinVolumeM(v decimal.Decimal) error {
	_, err := s.Apply(Patch{MinVolumeM: &v})
	return err
}
