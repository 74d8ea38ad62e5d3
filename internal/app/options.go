package service

import (
	"time"

	"github.com/okian/ecoaudit/internal/adapters/meter"
	"github.com/okian/ecoaudit/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMeterSettings selects the meter backend built on Start.
func WithMeterSettings(settings meter.Settings) Option {
	return func(s *Service) {
		s.meterSettings = settings
	}
}

// WithMeter uses m instead of building one from settings.
func WithMeter(m meter.Meter) Option {
	return func(s *Service) {
		if m != nil {
			s.meter = m
		}
	}
}

// WithEmissionsLog sets the measurement log path. Empty disables the log.
func WithEmissionsLog(path string) Option {
	return func(s *Service) {
		s.emissionsPath = path
	}
}

// WithSeed sets the seed for splits, forests and synthetic inputs.
func WithSeed(seed int64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithTreeCount sets the forest size.
func WithTreeCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.treeCount = n
		}
	}
}

// WithSyntheticRows sets the inference input height.
func WithSyntheticRows(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.syntheticRows = n
		}
	}
}

// WithDefaultEpochs sets the epoch count used when a request gives none.
func WithDefaultEpochs(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultEpochs = n
		}
	}
}

// WithTempDir sets where uploads are staged. Empty means the OS default.
func WithTempDir(dir string) Option {
	return func(s *Service) {
		s.tempDir = dir
	}
}

// WithResultsDir sets where SaveReport writes files.
func WithResultsDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.resultsDir = dir
		}
	}
}

// WithCountryName sets the country recorded in measurement log rows.
func WithCountryName(name string) Option {
	return func(s *Service) {
		s.countryName = name
	}
}

// WithClock sets the time source for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
