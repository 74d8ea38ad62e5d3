// Package emissions reads and appends the CSV measurement log (emissions.csv).
package emissions

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Column names written by Append.
const (
	ColTimestamp      = "timestamp"
	ColProjectName    = "project_name"
	ColRunID          = "run_id"
	ColDuration       = "duration"
	ColEmissions      = "emissions"
	ColEmissionsRate  = "emissions_rate"
	ColCPUPower       = "cpu_power"
	ColCPUEnergy      = "cpu_energy"
	ColEnergyConsumed = "energy_consumed"
	ColCPUModel       = "cpu_model"
	ColCPUCount       = "cpu_count"
	ColRAMTotalSize   = "ram_total_size"
	ColCountryName    = "country_name"
)

// Columns is the header of a log created by Append.
var Columns = []string{
	ColTimestamp, ColProjectName, ColRunID, ColDuration, ColEmissions, ColEmissionsRate,
	ColCPUPower, ColCPUEnergy, ColEnergyConsumed, ColCPUModel, ColCPUCount, ColRAMTotalSize,
	ColCountryName,
}

// Record is one measured session.
type Record struct {
	Timestamp   time.Time
	ProjectName string
	RunID       string
	Duration    time.Duration
	// Emissions in kg CO2e.
	Emissions float64
	// CPUPower in watts.
	CPUPower float64
	// CPUEnergy and EnergyConsumed in kWh.
	CPUEnergy      float64
	EnergyConsumed float64
	CPUModel       string
	CPUCount       int
	// RAMTotalSize in GB.
	RAMTotalSize float64
	CountryName  string
}

func (r Record) values() map[string]string {
	secs := r.Duration.Seconds()
	rate := 0.0
	if secs > 0 {
		rate = r.Emissions / secs
	}
	return map[string]string{
		ColTimestamp:      r.Timestamp.Format(time.RFC3339),
		ColProjectName:    r.ProjectName,
		ColRunID:          r.RunID,
		ColDuration:       formatFloat(secs),
		ColEmissions:      formatFloat(r.Emissions),
		ColEmissionsRate:  formatFloat(rate),
		ColCPUPower:       formatFloat(r.CPUPower),
		ColCPUEnergy:      formatFloat(r.CPUEnergy),
		ColEnergyConsumed: formatFloat(r.EnergyConsumed),
		ColCPUModel:       r.CPUModel,
		ColCPUCount:       strconv.Itoa(r.CPUCount),
		ColRAMTotalSize:   formatFloat(r.RAMTotalSize),
		ColCountryName:    r.CountryName,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Row is a log row keyed by column; numbers are float64, empty cells are nil.
type Row map[string]any

// Log is a CSV measurement log on disk.
type Log struct {
	path string
	mu   sync.Mutex
}

// New returns a Log at path. The file is created on first Append.
func New(path string) *Log {
	return &Log{path: path}
}

// Path returns the log location.
func (l *Log) Path() string { return l.path }

// Append writes r, creating the file with a header when needed.
// An existing header is honored; unknown columns are left blank.
func (l *Log) Append(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	header, err := l.header()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open measurement log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if header == nil {
		header = Columns
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	vals := r.values()
	row := make([]string, len(header))
	for i, col := range header {
		row[i] = vals[col]
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	w.Flush()
	return w.Error()
}

// header returns the existing header, or nil when the file is missing or empty.
func (l *Log) header() ([]string, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open measurement log: %w", err)
	}
	defer f.Close()
	h, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return h, nil
}

func (l *Log) readAll() ([]string, [][]string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, nil, fmt.Errorf("open measurement log: %w", err)
	}
	defer f.Close()
	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read measurement log: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, ErrNoRecords
	}
	return records[0], records[1:], nil
}

// LastEnergy returns energy_consumed (kWh) from the most recent row.
func (l *Log) LastEnergy(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	header, rows, err := l.readAll()
	if err != nil {
		return 0, err
	}
	col := indexOf(header, ColEnergyConsumed)
	if col < 0 {
		return 0, fmt.Errorf("%w: %s", ErrMissingColumn, ColEnergyConsumed)
	}
	last := rows[len(rows)-1]
	if col >= len(last) {
		return 0, ErrNoValue
	}
	v, ok := number(last[col])
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoValue, last[col])
	}
	return v, nil
}

// Tail returns up to n most recent rows, oldest first.
func (l *Log) Tail(ctx context.Context, n int) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	header, rows, err := l.readAll()
	if err != nil {
		return nil, err
	}
	if n < len(rows) {
		rows = rows[len(rows)-n:]
	}
	out := make([]Row, 0, len(rows))
	for _, rec := range rows {
		row := make(Row, len(header))
		for i, col := range header {
			if i >= len(rec) {
				row[col] = nil
				continue
			}
			row[col] = typed(rec[i])
		}
		out = append(out, row)
	}
	return out, nil
}

func indexOf(header []string, col string) int {
	for i, h := range header {
		if strings.TrimSpace(h) == col {
			return i
		}
	}
	return -1
}

// number parses finite floats only.
func number(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func typed(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if v, ok := number(s); ok {
		return v
	}
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "nan" || lower == "inf" || lower == "-inf" || lower == "+inf" {
		return nil
	}
	return s
}
