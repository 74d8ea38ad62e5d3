package meter

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const estimateName = "estimate"

// CPUTimeFunc returns cumulative user+system CPU seconds of the measured process.
type CPUTimeFunc func(ctx context.Context) (float64, error)

// Estimate attributes energy from process CPU time: seconds x TDP / logical CPUs.
type Estimate struct {
	tdpWatts  float64
	cpus      int
	intensity float64
	cpuTime   CPUTimeFunc
	now       func() time.Time
}

// EstimateOption configures an Estimate meter.
type EstimateOption func(*Estimate)

// WithCPUTime replaces the CPU time source.
func WithCPUTime(f CPUTimeFunc) EstimateOption {
	return func(e *Estimate) {
		if f != nil {
			e.cpuTime = f
		}
	}
}

// WithCPUs overrides the logical CPU count used to share the TDP.
func WithCPUs(n int) EstimateOption {
	return func(e *Estimate) {
		if n > 0 {
			e.cpus = n
		}
	}
}

// NewEstimate returns a CPU-time based meter.
func NewEstimate(tdpWatts, gramsPerKWh float64, opts ...EstimateOption) *Estimate {
	e := &Estimate{
		tdpWatts:  tdpWatts,
		cpus:      runtime.NumCPU(),
		intensity: gramsPerKWh,
		cpuTime:   processCPUTime,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Estimate) Name() string { return estimateName }

func (e *Estimate) Start(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &estimateSession{meter: e, started: e.now()}
	if v, err := e.cpuTime(ctx); err == nil {
		s.cpuStart, s.ok = v, true
	}
	return s, nil
}

type estimateSession struct {
	meter    *Estimate
	started  time.Time
	cpuStart float64
	ok       bool
	stopped  bool
}

func (s *estimateSession) Stop(ctx context.Context) (Sample, error) {
	if s.stopped {
		return Sample{}, ErrSessionStopped
	}
	s.stopped = true
	elapsed := s.meter.now().Sub(s.started)
	if !s.ok {
		return Sample{Duration: elapsed, Backend: estimateName}, nil
	}
	end, err := s.meter.cpuTime(ctx)
	if err != nil {
		return Sample{Duration: elapsed, Backend: estimateName}, nil
	}
	used := max(end-s.cpuStart, 0)
	joules := used * s.meter.tdpWatts / float64(s.meter.cpus)
	return sampleFrom(joules/joulesPerKWh, s.meter.intensity, elapsed, estimateName), nil
}

func processCPUTime(ctx context.Context) (float64, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	t, err := p.TimesWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return t.User + t.System, nil
}
