// Package audit runs measured training or inference loops and aggregates their energy.
package audit

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/okian/ecoaudit/internal/adapters/meter"
	"github.com/okian/ecoaudit/internal/adapters/sysinfo"
	"github.com/okian/ecoaudit/internal/domain/artifact"
	"github.com/okian/ecoaudit/internal/domain/dataset"
	"github.com/okian/ecoaudit/internal/domain/forest"
	"github.com/okian/ecoaudit/internal/domain/model"
	"github.com/okian/ecoaudit/pkg/logger"
	"github.com/okian/ecoaudit/pkg/metrics"
)

// DefaultSyntheticRows is the inference input height.
const DefaultSyntheticRows = 1000

// Kind is the audit mode.
type Kind string

const (
	KindTraining  Kind = "dataset_training"
	KindInference Kind = "model_inference"
)

// Shape is the size of a training dataset after encoding.
type Shape struct {
	Samples  int
	Features int
}

// Result is the aggregate of one audit. It is not modified after Run returns.
type Result struct {
	RunID          string
	Kind           Kind
	Epochs         int
	EnergyPerEpoch []float64
	// TotalEnergy in kWh, TotalCarbon in kg CO2e.
	TotalEnergy float64
	TotalCarbon float64
	// Dataset is nil for inference audits.
	Dataset   *Shape
	ModelName string
	System    sysinfo.Descriptor
	Warnings  []string
	StartedAt time.Time
	Duration  time.Duration
}

// Features returns the dataset feature count, or 0 without a dataset.
func (r *Result) Features() int {
	if r.Dataset == nil {
		return 0
	}
	return r.Dataset.Features
}

// Samples returns the dataset row count, or 0 without a dataset.
func (r *Result) Samples() int {
	if r.Dataset == nil {
		return 0
	}
	return r.Dataset.Samples
}

// Engine drives the meter around repeated fits or predictions.
type Engine struct {
	meter         meter.Meter
	fallback      meter.Fallback
	seed          int64
	trees         int
	syntheticRows int
	testFraction  float64
	describe      func(context.Context) sysinfo.Descriptor
	logger        logger.Logger
	now           func() time.Time
}

// New returns an Engine. Without WithMeter no energy is measured and every
// epoch resolves through the fallback chain.
func New(opts ...Option) *Engine {
	e := &Engine{
		meter:         meter.None{},
		seed:          forest.DefaultSeed,
		trees:         forest.DefaultTrees,
		syntheticRows: DefaultSyntheticRows,
		testFraction:  dataset.DefaultTestFraction,
		describe:      sysinfo.Describe,
		logger:        logger.Get().Named("audit"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run audits a classified artifact.
func (e *Engine) Run(ctx context.Context, a *artifact.Artifact, epochs int) (*Result, error) {
	if a == nil {
		return nil, ErrNilArtifact
	}
	switch a.Kind {
	case artifact.KindDataset:
		return e.RunTraining(ctx, a.Table, epochs)
	case artifact.KindModel:
		return e.RunInference(ctx, model.Adapt(a.Model), epochs)
	case artifact.KindUnusable:
		return nil, &model.MissingDependencyError{Name: a.MissingDependency}
	default:
		return nil, fmt.Errorf("%w: %s", artifact.ErrUnknownArtifact, a.TypeName)
	}
}

// RunTraining fits one forest epochs times on the training split, measuring each fit.
func (e *Engine) RunTraining(ctx context.Context, t *dataset.Table, epochs int) (*Result, error) {
	if epochs < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidEpochs, epochs)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: no table", ErrInvalidDataset)
	}
	prep, err := t.Prepare()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	split, err := dataset.SplitRows(prep, e.testFraction, e.seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}

	clf := forest.New(forest.WithTrees(e.trees), forest.WithSeed(e.seed))
	res := e.begin(ctx, KindTraining, epochs)
	res.Dataset = &Shape{Samples: prep.Samples(), Features: prep.FeatureCount()}
	res.ModelName = forest.DisplayName
	e.logger.Info(ctx, "starting training audit",
		logger.String("run_id", res.RunID),
		logger.String("dataset", prep.String()),
		logger.Int("epochs", epochs))

	ctx = meter.WithRunID(ctx, res.RunID)
	for i := 0; i < epochs; i++ {
		if err := e.epoch(ctx, res, i, func() error {
			return clf.Fit(split.TrainX, split.TrainY)
		}); err != nil {
			return nil, err
		}
	}
	return e.finish(ctx, res), nil
}

// RunInference predicts on a seeded uniform input epochs times, measuring each call.
func (e *Engine) RunInference(ctx context.Context, m model.PredictiveModel, epochs int) (*Result, error) {
	if epochs < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidEpochs, epochs)
	}
	if m == nil {
		return nil, ErrNilModel
	}

	res := e.begin(ctx, KindInference, epochs)
	res.ModelName = m.Name()
	if w, ok := m.(interface{ Warnings() []string }); ok {
		res.Warnings = append(res.Warnings, w.Warnings()...)
	}
	features := m.FeatureCount()
	if features <= 0 {
		features = model.DefaultFeatureCount
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"model %s reported no feature count; using %d", res.ModelName, features))
	}
	for _, w := range res.Warnings {
		e.logger.Warn(ctx, w, logger.String("run_id", res.RunID))
	}

	x := synthetic(e.syntheticRows, features, e.seed)
	e.logger.Info(ctx, "starting inference audit",
		logger.String("run_id", res.RunID),
		logger.String("model", res.ModelName),
		logger.Int("features", features),
		logger.Int("epochs", epochs))

	ctx = meter.WithRunID(ctx, res.RunID)
	for i := 0; i < epochs; i++ {
		if err := e.epoch(ctx, res, i, func() error {
			_, err := m.Predict(x)
			return err
		}); err != nil {
			return nil, err
		}
	}
	return e.finish(ctx, res), nil
}

func (e *Engine) begin(ctx context.Context, kind Kind, epochs int) *Result {
	return &Result{
		RunID:          uuid.NewString(),
		Kind:           kind,
		Epochs:         epochs,
		EnergyPerEpoch: make([]float64, 0, epochs),
		System:         e.describe(ctx),
		StartedAt:      e.now(),
	}
}

func (e *Engine) finish(ctx context.Context, res *Result) *Result {
	res.Duration = e.now().Sub(res.StartedAt)
	e.logger.Info(ctx, "audit finished",
		logger.String("run_id", res.RunID),
		logger.String("kind", string(res.Kind)),
		logger.Float64("total_energy_kwh", res.TotalEnergy),
		logger.Float64("total_carbon_kg", res.TotalCarbon),
		logger.Duration("took", res.Duration))
	return res
}

// epoch runs one measured step. Cancellation is only observed here, between steps.
func (e *Engine) epoch(ctx context.Context, res *Result, i int, step func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("audit cancelled before epoch %d: %w", i+1, err)
	}
	sample, err := e.measure(ctx, step)
	if err != nil {
		return fmt.Errorf("epoch %d: %w", i+1, err)
	}

	reading := meter.Resolve(ctx, sample, e.fallback)
	if reading.Source != meter.SourceMeter {
		metrics.RecordMeterFallback(string(reading.Source))
		fields := []logger.Field{
			logger.Int("epoch", i+1),
			logger.String("backend", sample.Backend),
			logger.String("source", string(reading.Source)),
		}
		if reading.Err != nil {
			fields = append(fields, logger.Error(reading.Err))
		}
		e.logger.Warn(ctx, "meter reported no energy, using fallback", fields...)
	}

	res.EnergyPerEpoch = append(res.EnergyPerEpoch, reading.Energy)
	res.TotalEnergy += reading.Energy
	res.TotalCarbon += reading.Carbon
	e.logger.Debug(ctx, "epoch measured",
		logger.Int("epoch", i+1),
		logger.Float64("energy_kwh", reading.Energy),
		logger.Float64("carbon_kg", reading.Carbon),
		logger.Duration("took", sample.Duration))
	return nil
}

// measure wraps step in a meter session that is always stopped.
func (e *Engine) measure(ctx context.Context, step func() error) (sample meter.Sample, err error) {
	session, startErr := e.meter.Start(ctx)
	if startErr != nil {
		e.logger.Warn(ctx, "failed to start measurement session", logger.Error(startErr))
		return meter.Sample{}, runStep(step)
	}
	defer func() {
		s, stopErr := session.Stop(ctx)
		if stopErr != nil {
			e.logger.Warn(ctx, "failed to stop measurement session", logger.Error(stopErr))
			return
		}
		sample = s
	}()
	return meter.Sample{}, runStep(step)
}

func runStep(step func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrStepPanicked, r)
		}
	}()
	return step()
}

// synthetic returns a rows x cols matrix of seeded uniform values in [0, 1).
func synthetic(rows, cols int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.Float64()
	}
	return mat.NewDense(rows, cols, data)
}
