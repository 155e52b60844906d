package engine

import (
	"alpha-volume-bot/internal/interfaces"
)

func New(d Deps, opts Options) interfaces.Engine {
	return newEngine(d, opts)
}

// NewEngine returns the concrete engine for callers that need Wait.
func NewEngine(d Deps, opts Options) *Engine {
	return newEngine(d, opts)
}
