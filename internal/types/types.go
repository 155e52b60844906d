package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order or a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the terminal state of one order attempt.
type OrderStatus string

const (
	StatusCompleted OrderStatus = "completed"
	StatusTimeout   OrderStatus = "timeout"
	StatusNoStock   OrderStatus = "no_stock"
	StatusAborted   OrderStatus = "aborted"
	StatusUnknown   OrderStatus = "unknown"
)

// OrderResult is produced by the order submitter/tracker and decides whether
// the cycle continues.
type OrderResult struct {
	Status  OrderStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

func (r OrderResult) Completed() bool {
	return r.Status == StatusCompleted
}

// PriceSource tells where a quote came from.
type PriceSource string

const (
	SourceStatic  PriceSource = "static"
	SourceDynamic PriceSource = "dynamic"
)

// Quote is a buy/sell limit price pair for one round.
type Quote struct {
	Buy    decimal.Decimal `json:"buy"`
	Sell   decimal.Decimal `json:"sell"`
	Source PriceSource     `json:"source"`

	// Trade-tape details, set for dynamic quotes only.
	ModalBuy       decimal.Decimal `json:"modal_buy,omitempty"`
	ModalSell      decimal.Decimal `json:"modal_sell,omitempty"`
	ModalBuyCount  int             `json:"modal_buy_count,omitempty"`
	ModalSellCount int             `json:"modal_sell_count,omitempty"`
}

// TradeRound is one buy-then-sell pair.
type TradeRound struct {
	Seq       int             `json:"seq"`
	BuyPrice  decimal.Decimal `json:"buy_price"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Buy       OrderResult     `json:"buy"`
	Sell      OrderResult     `json:"sell"`
}

// TradeRecord is one filled row of the order history.
type TradeRecord struct {
	Time         time.Time       `json:"time"`
	RawTime      string          `json:"raw_time"`
	Side         Side            `json:"side"`
	FilledVolume decimal.Decimal `json:"filled_volume"`
	Price        decimal.Decimal `json:"price"`
	TotalValue   decimal.Decimal `json:"total_value"`
	Status       string          `json:"status"`
}

// ScanInfo describes how an order-history scan ended.
type ScanInfo struct {
	Pages      int    `json:"pages"`
	Rows       int    `json:"rows"`
	Records    int    `json:"records"`
	StopReason string `json:"stop_reason"`
}

// DailyStats aggregates the filled trades of one trading day.
type DailyStats struct {
	Day string `json:"day"`

	TotalBuyVolume  decimal.Decimal `json:"total_buy_volume"`
	TotalSellVolume decimal.Decimal `json:"total_sell_volume"`
	TotalBuyValue   decimal.Decimal `json:"total_buy_value"`
	TotalSellValue  decimal.Decimal `json:"total_sell_value"`

	// Zero unless both BuyTrades and SellTrades are non-empty.
	WearLoss           decimal.Decimal `json:"wear_loss"`
	WearLossPercentage decimal.Decimal `json:"wear_loss_percentage"`

	TradeCount int           `json:"trade_count"`
	BuyTrades  []TradeRecord `json:"buy_trades"`
	SellTrades []TradeRecord `json:"sell_trades"`

	Scan ScanInfo `json:"scan"`
}

// HasWearLoss reports whether wear-loss figures were computed.
func (s *DailyStats) HasWearLoss() bool {
	return len(s.BuyTrades) > 0 && len(s.SellTrades) > 0
}

// RunState is the controller state machine position.
type RunState string

const (
	StateIdle               RunState = "idle"
	StateCheckingVolumeGate RunState = "checking_volume_gate"
	StateRunning            RunState = "running"
	StateStopping           RunState = "stopping"
	StateHalted             RunState = "halted"
)

// RunOutcome explains why a run halted.
type RunOutcome string

const (
	OutcomeCompleted RunOutcome = "completed"
	OutcomeStopped   RunOutcome = "stopped"
	OutcomeFailed    RunOutcome = "failed"
	OutcomeRejected  RunOutcome = "rejected"
)

// RunReport is the externally visible state of a controller run.
type RunReport struct {
	RunID           string      `json:"run_id,omitempty"`
	State           RunState    `json:"state"`
	Outcome         RunOutcome  `json:"outcome,omitempty"`
	CompletedRounds int         `json:"completed_rounds"`
	TargetRounds    int         `json:"target_rounds"`
	Message         string      `json:"message,omitempty"`
	Error           string      `json:"error,omitempty"`
	LastQuote       *Quote      `json:"last_quote,omitempty"`
	LastRound       *TradeRound `json:"last_round,omitempty"`
	VolumeM         float64     `json:"volume_24h_m,omitempty"`
	StartedAt       time.Time   `json:"started_at,omitempty"`
	FinishedAt      time.Time   `json:"finished_at,omitempty"`
}

// NoticeLevel grades user-visible notifications.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-visible alert about a terminal event.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}
