package audit

import (
	"context"
	"time"

	"github.com/okian/ecoaudit/internal/adapters/meter"
	"github.com/okian/ecoaudit/internal/adapters/sysinfo"
	"github.com/okian/ecoaudit/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithMeter sets the energy meter.
func WithMeter(m meter.Meter) Option {
	return func(e *Engine) {
		if m != nil {
			e.meter = m
		}
	}
}

// WithFallback sets the source consulted when the meter has no reading.
func WithFallback(fb meter.Fallback) Option {
	return func(e *Engine) {
		e.fallback = fb
	}
}

// WithSeed sets the seed for the train/test split, the forest and synthetic inputs.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.seed = seed
	}
}

// WithTrees sets the forest size used by training audits.
func WithTrees(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.trees = n
		}
	}
}

// WithSyntheticRows sets the row count of the inference input.
func WithSyntheticRows(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.syntheticRows = n
		}
	}
}

// WithTestFraction sets the held-out share of training rows.
func WithTestFraction(f float64) Option {
	return func(e *Engine) {
		if f > 0 && f < 1 {
			e.testFraction = f
		}
	}
}

// WithDescriber sets how the system section is collected.
func WithDescriber(f func(context.Context) sysinfo.Descriptor) Option {
	return func(e *Engine) {
		if f != nil {
			e.describe = f
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
