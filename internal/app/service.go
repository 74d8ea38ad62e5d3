// Package service orchestrates audits: staging uploads, classification, the
// audit engine, recommendations and report assembly.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/okian/ecoaudit/internal/adapters/emissions"
	"github.com/okian/ecoaudit/internal/adapters/meter"
	"github.com/okian/ecoaudit/internal/adapters/sysinfo"
	"github.com/okian/ecoaudit/internal/domain/artifact"
	"github.com/okian/ecoaudit/internal/domain/audit"
	"github.com/okian/ecoaudit/internal/domain/forest"
	"github.com/okian/ecoaudit/internal/domain/recommend"
	"github.com/okian/ecoaudit/internal/domain/report"
	"github.com/okian/ecoaudit/pkg/logger"
	"github.com/okian/ecoaudit/pkg/metrics"
)

// ProjectName is written to measurement log rows.
const ProjectName = "ecoaudit"

// Service implements the API dependencies for the audit system.
type Service struct {
	mu sync.RWMutex

	// Core components
	meter        meter.Meter
	emissionsLog *emissions.Log
	engine       *audit.Engine
	assembler    *report.Assembler

	// Configuration
	meterSettings meter.Settings
	emissionsPath string
	seed          int64
	treeCount     int
	syntheticRows int
	defaultEpochs int
	tempDir       string
	resultsDir    string
	countryName   string

	// State
	started     bool
	audits      int64
	failures    int64
	energyKWh   float64
	carbonKg    float64
	lastAuditAt time.Time

	logger logger.Logger
	now    func() time.Time
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		meterSettings: meter.Settings{Kind: meter.KindAuto},
		seed:          forest.DefaultSeed,
		treeCount:     forest.DefaultTrees,
		syntheticRows: audit.DefaultSyntheticRows,
		defaultEpochs: 1,
		resultsDir:    "results",
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the meter, measurement log, engine and assembler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	m := s.meter
	if m == nil {
		selected, err := meter.Select(s.meterSettings)
		if err != nil {
			return fmt.Errorf("select meter: %w", err)
		}
		m = selected
	}

	engineOpts := []audit.Option{
		audit.WithSeed(s.seed),
		audit.WithTrees(s.treeCount),
		audit.WithSyntheticRows(s.syntheticRows),
		audit.WithLogger(s.logger.Named("audit")),
	}
	assemblerOpts := []report.Option{report.WithLogger(s.logger.Named("report"))}

	if s.emissionsPath != "" {
		s.emissionsLog = emissions.New(s.emissionsPath)
		m = meter.WithLog(m, s.emissionsLog, meter.LogInfo{
			ProjectName: ProjectName,
			CountryName: s.countryName,
			Hardware:    sysinfo.DescribeHardware(ctx),
		}, meter.WithLogLogger(s.logger.Named("meter")))
		engineOpts = append(engineOpts, audit.WithFallback(s.emissionsLog))
		assemblerOpts = append(assemblerOpts, report.WithSource(s.emissionsLog))
	}
	s.meter = m
	s.engine = audit.New(append(engineOpts, audit.WithMeter(m))...)
	s.assembler = report.NewAssembler(assemblerOpts...)

	s.started = true
	s.logger.Info(ctx, "audit service started",
		logger.String("meter", m.Name()),
		logger.String("emissionsLog", s.emissionsPath),
		logger.Int("trees", s.treeCount),
		logger.Int("defaultEpochs", s.defaultEpochs),
	)
	return nil
}

// Stop marks the service stopped. Audits in flight finish normally.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "audit service stopped")
}

func (s *Service) getLogger() logger.Logger {
	if s.logger == nil {
		return logger.Get()
	}
	return s.logger
}

func (s *Service) components() (*audit.Engine, *report.Assembler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.engine, s.assembler, nil
}

// DefaultEpochs is the epoch count applied when a request gives 0.
func (s *Service) DefaultEpochs() int { return s.defaultEpochs }

func (s *Service) resolveEpochs(epochs int) (int, error) {
	switch {
	case epochs == 0:
		return s.defaultEpochs, nil
	case epochs < 0:
		return 0, fmt.Errorf("%w: got %d", audit.ErrInvalidEpochs, epochs)
	default:
		return epochs, nil
	}
}

// AuditUpload stages body under the upload's extension and audits it. The
// extension is checked before anything touches the disk and the staged copy
// is removed on every path. epochs 0 means the configured default.
func (s *Service) AuditUpload(ctx context.Context, filename string, body io.Reader, epochs int) (*report.Report, error) {
	ext, err := artifact.CheckExtension(filename)
	if err != nil {
		metrics.RecordUploadRejected("extension")
		return nil, err
	}
	epochs, err = s.resolveEpochs(epochs)
	if err != nil {
		metrics.RecordUploadRejected("epochs")
		return nil, err
	}
	if _, _, err := s.components(); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(s.tempDir, "ecoaudit-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.logger.Warn(ctx, "failed to remove staged upload", logger.String("path", path), logger.Error(rmErr))
		}
	}()

	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	return s.run(ctx, path, ext, epochs, "")
}

// AuditFile audits a local file and stamps the report with the current local time.
func (s *Service) AuditFile(ctx context.Context, path string, epochs int) (*report.Report, error) {
	ext, err := artifact.CheckExtension(path)
	if err != nil {
		return nil, err
	}
	epochs, err = s.resolveEpochs(epochs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	return s.run(ctx, path, ext, epochs, report.Timestamp(s.now()))
}

func (s *Service) run(ctx context.Context, path, ext string, epochs int, timestamp string) (*report.Report, error) {
	engine, assembler, err := s.components()
	if err != nil {
		return nil, err
	}

	a, err := artifact.Classify(ctx, path, ext)
	if err != nil {
		s.recordFailure(ctx, "unclassified", err)
		return nil, err
	}
	metrics.RecordClassification(string(a.Kind))
	s.logger.Debug(ctx, "artifact classified",
		logger.String("kind", string(a.Kind)),
		logger.String("type", a.TypeName))

	res, err := engine.Run(ctx, a, epochs)
	if err != nil {
		s.recordFailure(ctx, auditKind(a.Kind), err)
		return nil, err
	}

	rep := assembler.Assemble(res, recommend.Generate(res), timestamp)
	if e := assembler.Enrich(ctx, rep); !e.Available() {
		s.logger.Debug(ctx, "report without emissions preview", logger.String("reason", e.Reason))
	}

	metrics.RecordAudit(string(res.Kind), metrics.OutcomeSuccess, res.Duration.Seconds())
	metrics.RecordFootprint(string(res.Kind), res.TotalEnergy, res.TotalCarbon)
	s.mu.Lock()
	s.audits++
	s.energyKWh += res.TotalEnergy
	s.carbonKg += res.TotalCarbon
	s.lastAuditAt = s.now()
	s.mu.Unlock()
	return rep, nil
}

func (s *Service) recordFailure(ctx context.Context, kind string, err error) {
	metrics.RecordAudit(kind, metrics.OutcomeFailure, 0)
	s.mu.Lock()
	s.failures++
	s.mu.Unlock()
	s.logger.Warn(ctx, "audit failed", logger.String("kind", kind), logger.Error(err))
}

func auditKind(k artifact.Kind) string {
	switch k {
	case artifact.KindDataset:
		return string(audit.KindTraining)
	case artifact.KindModel:
		return string(audit.KindInference)
	default:
		return string(k)
	}
}

// SaveReport writes rep under the results directory, named by its timestamp.
func (s *Service) SaveReport(rep *report.Report) (string, error) {
	ts := rep.Experiment.Timestamp
	if ts == "" {
		ts = report.Timestamp(s.now())
		rep.Experiment.Timestamp = ts
	}
	return report.WriteFile(s.resultsDir, rep, ts)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"auditsCompleted": s.audits,
		"auditsFailed":    s.failures,
		"totalEnergyKWh":  s.energyKWh,
		"totalCarbonKg":   s.carbonKg,
		"defaultEpochs":   s.defaultEpochs,
		"treeCount":       s.treeCount,
	}
	if s.meter != nil {
		stats["meter"] = s.meter.Name()
	}
	if s.emissionsLog != nil {
		stats["emissionsLog"] = s.emissionsLog.Path()
	}
	if !s.lastAuditAt.IsZero() {
		stats["lastAuditAt"] = s.lastAuditAt.Format(time.RFC3339)
	}
	return stats
}
