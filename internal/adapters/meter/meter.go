// Package meter measures the energy of a block of work.
//
// A Meter opens Sessions; each Session is closed exactly once with Stop and yields a
// Sample. Energy is nil when the backend cannot read it; Resolve fills the gap.
package meter

import (
	"context"
	"time"
)

// Kind names a meter backend.
type Kind string

const (
	KindAuto     Kind = "auto"
	KindPowercap Kind = "powercap"
	KindEstimate Kind = "estimate"
	KindNone     Kind = "none"
)

const (
	joulesPerKWh      = 3.6e6
	microjoulesPerKWh = 3.6e12
	gramsPerKg        = 1000.0
)

// Sample is one session's measurement.
type Sample struct {
	// Energy in kWh, nil when unavailable.
	Energy *float64
	// Carbon in kg CO2e, nil when unavailable.
	Carbon   *float64
	Duration time.Duration
	// Backend is the name of the meter that produced the sample.
	Backend string
}

// Meter starts measurement sessions.
type Meter interface {
	Start(ctx context.Context) (Session, error)
	Name() string
}

// Session is an open measurement. Stop must be called once.
type Session interface {
	Stop(ctx context.Context) (Sample, error)
}

// Carbon converts kWh to kg CO2e for a grid intensity in g/kWh.
func Carbon(kwh, gramsPerKWh float64) float64 {
	return kwh * gramsPerKWh / gramsPerKg
}

func sampleFrom(kwh float64, intensity float64, d time.Duration, backend string) Sample {
	c := Carbon(kwh, intensity)
	return Sample{Energy: &kwh, Carbon: &c, Duration: d, Backend: backend}
}

type runIDKey struct{}

// WithRunID tags ctx with the audit run that sessions belong to.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id stored by WithRunID.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
