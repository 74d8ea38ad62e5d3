// Package report shapes audit results into the JSON document returned to clients.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/ecoaudit/internal/adapters/emissions"
	"github.com/okian/ecoaudit/internal/domain/audit"
	"github.com/okian/ecoaudit/pkg/logger"
)

const (
	// DefaultPreviewRows is how many measurement log rows Enrich attaches.
	DefaultPreviewRows = 3
	// TimestampLayout formats experiment timestamps and report file names.
	TimestampLayout = "20060102_150405"
	filePrefix      = "audit_"
	indent          = "    "
)

type Experiment struct {
	Type      string `json:"type"`
	Epochs    int    `json:"epochs"`
	Timestamp string `json:"timestamp"`
}

type Metrics struct {
	TotalEnergyKWh float64   `json:"total_energy_kwh"`
	TotalCarbonKg  float64   `json:"total_carbon_kg"`
	EnergyPerEpoch []float64 `json:"energy_per_epoch"`
}

type Dataset struct {
	Samples  int `json:"samples"`
	Features int `json:"features"`
}

type Model struct {
	Name string `json:"name"`
}

// System keeps the python_version wire name; it carries the Go runtime version.
type System struct {
	Platform      string `json:"platform"`
	PythonVersion string `json:"python_version"`
	CPUCount      int    `json:"cpu_count"`
}

// Report is the audit document.
type Report struct {
	Experiment          Experiment      `json:"experiment"`
	Metrics             Metrics         `json:"metrics"`
	Dataset             *Dataset        `json:"dataset"`
	Model               Model           `json:"model"`
	System              System          `json:"system"`
	Recommendations     []string        `json:"recommendations"`
	Warnings            []string        `json:"warnings,omitempty"`
	RawEmissionsPreview []emissions.Row `json:"raw_emissions_preview,omitempty"`
}

// TailSource returns the most recent measurement log rows.
type TailSource interface {
	Tail(ctx context.Context, n int) ([]emissions.Row, error)
}

// Enrichment is the outcome of attaching the log preview. Reason is empty on success.
type Enrichment struct {
	Rows   int
	Reason string
}

// Available reports whether a preview was attached.
func (e Enrichment) Available() bool { return e.Reason == "" }

// Option configures an Assembler.
type Option func(*Assembler)

// WithSource sets the measurement log used for previews.
func WithSource(src TailSource) Option {
	return func(a *Assembler) {
		a.source = src
	}
}

// WithPreviewRows sets how many rows Enrich attaches.
func WithPreviewRows(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.previewRows = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// Assembler builds reports.
type Assembler struct {
	source      TailSource
	previewRows int
	logger      logger.Logger
}

// NewAssembler returns an Assembler with no preview source unless WithSource is given.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		previewRows: DefaultPreviewRows,
		logger:      logger.Get().Named("report"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble maps a result and its recommendations onto the report schema.
func (a *Assembler) Assemble(r *audit.Result, recs []string, timestamp string) *Report {
	rep := &Report{
		Experiment: Experiment{
			Type:      string(r.Kind),
			Epochs:    r.Epochs,
			Timestamp: timestamp,
		},
		Metrics: Metrics{
			TotalEnergyKWh: r.TotalEnergy,
			TotalCarbonKg:  r.TotalCarbon,
			EnergyPerEpoch: append([]float64{}, r.EnergyPerEpoch...),
		},
		Model: Model{Name: r.ModelName},
		System: System{
			Platform:      r.System.Platform,
			PythonVersion: r.System.RuntimeVersion,
			CPUCount:      r.System.CPUCount,
		},
		Recommendations: append([]string{}, recs...),
	}
	if r.Dataset != nil {
		rep.Dataset = &Dataset{Samples: r.Dataset.Samples, Features: r.Dataset.Features}
	}
	if len(r.Warnings) > 0 {
		rep.Warnings = append([]string(nil), r.Warnings...)
	}
	return rep
}

// Enrich attaches the last rows of the measurement log. Failures only show up
// in the returned Enrichment; the report is left without a preview.
func (a *Assembler) Enrich(ctx context.Context, rep *Report) Enrichment {
	if a.source == nil {
		return Enrichment{Reason: "no measurement log configured"}
	}
	rows, err := a.source.Tail(ctx, a.previewRows)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, os.ErrNotExist) {
			reason = "measurement log not found"
		}
		a.logger.Debug(ctx, "emissions preview unavailable", logger.String("reason", reason))
		return Enrichment{Reason: reason}
	}
	rep.RawEmissionsPreview = rows
	return Enrichment{Rows: len(rows)}
}

// Timestamp formats t for experiment timestamps and file names.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// WriteFile persists rep as dir/audit_<ts>.json and returns the path.
func WriteFile(dir string, rep *Report, ts string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	data, err := json.MarshalIndent(rep, "", indent)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	path := filepath.Join(dir, filePrefix+ts+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
