package meter

import (
	"context"
	"time"

	"github.com/okian/ecoaudit/internal/adapters/emissions"
	"github.com/okian/ecoaudit/internal/adapters/sysinfo"
	"github.com/okian/ecoaudit/pkg/logger"
)

// Appender persists measurement records.
type Appender interface {
	Append(ctx context.Context, r emissions.Record) error
}

// LogInfo is the static part of every logged record.
type LogInfo struct {
	ProjectName string
	CountryName string
	Hardware    sysinfo.Hardware
}

// LoggedOption configures WithLog.
type LoggedOption func(*logged)

// WithLogLogger sets the logger used to report append failures.
func WithLogLogger(l logger.Logger) LoggedOption {
	return func(m *logged) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithLogClock sets the clock used for record timestamps.
func WithLogClock(now func() time.Time) LoggedOption {
	return func(m *logged) {
		if now != nil {
			m.now = now
		}
	}
}

type logged struct {
	Meter
	out    Appender
	info   LogInfo
	logger logger.Logger
	now    func() time.Time
}

// WithLog wraps m so every session with known energy appends a record to out.
// Append failures are logged and do not fail the session.
func WithLog(m Meter, out Appender, info LogInfo, opts ...LoggedOption) Meter {
	l := &logged{
		Meter:  m,
		out:    out,
		info:   info,
		logger: logger.Get().Named("meter"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *logged) Start(ctx context.Context) (Session, error) {
	s, err := l.Meter.Start(ctx)
	if err != nil {
		return nil, err
	}
	return &loggedSession{Session: s, meter: l}, nil
}

type loggedSession struct {
	Session
	meter *logged
}

func (s *loggedSession) Stop(ctx context.Context) (Sample, error) {
	sample, err := s.Session.Stop(ctx)
	if err != nil || sample.Energy == nil {
		return sample, err
	}
	m := s.meter
	rec := emissions.Record{
		Timestamp:      m.now(),
		ProjectName:    m.info.ProjectName,
		RunID:          RunID(ctx),
		Duration:       sample.Duration,
		CPUEnergy:      *sample.Energy,
		EnergyConsumed: *sample.Energy,
		CPUModel:       m.info.Hardware.CPUModel,
		CPUCount:       m.info.Hardware.CPUCount,
		RAMTotalSize:   m.info.Hardware.RAMTotalGB,
		CountryName:    m.info.CountryName,
	}
	if sample.Carbon != nil {
		rec.Emissions = *sample.Carbon
	}
	if secs := sample.Duration.Seconds(); secs > 0 {
		rec.CPUPower = *sample.Energy * joulesPerKWh / secs
	}
	if err := m.out.Append(ctx, rec); err != nil {
		m.logger.Warn(ctx, "failed to append measurement record",
			logger.String("backend", sample.Backend), logger.Error(err))
	}
	return sample, nil
}
