package interfaces

import (
	"context"

	"alpha-volume-bot/internal/types"
)

// Notifier delivers user-visible alerts. Delivery failures never affect
// trading.
type Notifier interface {
	Notify(ctx context.Context, n types.Notice) error
}
