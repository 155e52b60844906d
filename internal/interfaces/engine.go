package interfaces

import (
	"context"

	"alpha-volume-bot/internal/types"
)

// Engine runs trade cycles against the page.
type Engine interface {
	// Run executes one run to completion and returns its final report.
	Run(ctx context.Context) (types.RunReport, error)
	// Start launches a run in the background and returns its id.
	Start(ctx context.Context) (string, error)
	// Stop asks the current run to halt at the next round boundary.
	Stop()
	Status() types.RunReport
}
