package types

import "fmt"

// PriceBound names the sanity check a dynamic quote failed.
type PriceBound string

const (
	BoundNoTape      PriceBound = "no_tape"
	BoundUnparseable PriceBound = "unparseable"
	BoundNonPositive PriceBound = "non_positive"
	BoundSpread      PriceBound = "spread"
	BoundDeviation   PriceBound = "deviation"
)

// PriceError is the structured result of a failed quote validation. Callers
// must fall back to static prices or abort; the rejected prices are never
// used for an order.
type PriceError struct {
	Bound  PriceBound `json:"bound"`
	Reason string     `json:"reason"`
}

func (e *PriceError) Error() string {
	return fmt.Sprintf("price check %s failed: %s", e.Bound, e.Reason)
}
