package meter

import "context"

// Source tells where a resolved energy value came from.
type Source string

const (
	SourceMeter Source = "meter"
	SourceLog   Source = "log"
	SourceZero  Source = "zero"
)

// Fallback supplies the most recently logged energy in kWh.
type Fallback interface {
	LastEnergy(ctx context.Context) (float64, error)
}

// Reading is a Sample with gaps filled.
type Reading struct {
	Energy float64
	Carbon float64
	Source Source
	// Err is why the log fallback was not used, when Source is SourceZero.
	Err error
}

// Resolve applies the chain meter -> fallback log -> 0 to energy.
// Missing carbon is always 0; it is never taken from the log.
func Resolve(ctx context.Context, s Sample, fb Fallback) Reading {
	var r Reading
	if s.Carbon != nil {
		r.Carbon = *s.Carbon
	}
	if s.Energy != nil {
		r.Energy, r.Source = *s.Energy, SourceMeter
		return r
	}
	if fb == nil {
		r.Source, r.Err = SourceZero, ErrNoFallbackSource
		return r
	}
	v, err := fb.LastEnergy(ctx)
	if err != nil {
		r.Source, r.Err = SourceZero, err
		return r
	}
	r.Energy, r.Source = v, SourceLog
	return r
}
