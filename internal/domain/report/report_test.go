package report_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/ecoaudit/internal/adapters/emissions"
	"github.com/okian/ecoaudit/internal/adapters/sysinfo"
	"github.com/okian/ecoaudit/internal/domain/audit"
	"github.com/okian/ecoaudit/internal/domain/report"
	"github.com/okian/ecoaudit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type tailFunc func(ctx context.Context, n int) ([]emissions.Row, error)

func (f tailFunc) Tail(ctx context.Context, n int) ([]emissions.Row, error) { return f(ctx, n) }

func trainingResult() *audit.Result {
	return &audit.Result{
		Kind:           audit.KindTraining,
		Epochs:         2,
		EnergyPerEpoch: []float64{0.001, 0.002},
		TotalEnergy:    0.003,
		TotalCarbon:    0.0015,
		Dataset:        &audit.Shape{Samples: 100, Features: 3},
		ModelName:      "RandomForest",
		System:         sysinfo.Descriptor{Platform: "Linux-x", RuntimeVersion: "go1.25.4", CPUCount: 8},
	}
}

func decode(rep *report.Report) map[string]any {
	data, err := json.Marshal(rep)
	So(err, ShouldBeNil)
	var out map[string]any
	So(json.Unmarshal(data, &out), ShouldBeNil)
	return out
}

func TestAssemble(t *testing.T) {
	Convey("Given a training result", t, func() {
		So(logger.Init(), ShouldBeNil)
		a := report.NewAssembler()
		rep := a.Assemble(trainingResult(), []string{"r1", "r2"}, "")

		Convey("Then the wire schema is populated", func() {
			doc := decode(rep)
			So(doc["experiment"], ShouldResemble, map[string]any{"type": "dataset_training", "epochs": 2.0, "timestamp": ""})
			So(doc["metrics"], ShouldResemble, map[string]any{
				"total_energy_kwh": 0.003,
				"total_carbon_kg":  0.0015,
				"energy_per_epoch": []any{0.001, 0.002},
			})
			So(doc["dataset"], ShouldResemble, map[string]any{"samples": 100.0, "features": 3.0})
			So(doc["model"], ShouldResemble, map[string]any{"name": "RandomForest"})
			So(doc["system"], ShouldResemble, map[string]any{"platform": "Linux-x", "python_version": "go1.25.4", "cpu_count": 8.0})
			So(doc["recommendations"], ShouldResemble, []any{"r1", "r2"})
		})

		Convey("Then optional sections are omitted", func() {
			doc := decode(rep)
			So(doc, ShouldNotContainKey, "warnings")
			So(doc, ShouldNotContainKey, "raw_emissions_preview")
		})
	})

	Convey("Given an inference result with warnings", t, func() {
		So(logger.Init(), ShouldBeNil)
		r := &audit.Result{Kind: audit.KindInference, Epochs: 1, ModelName: "model.Linear", Warnings: []string{"w"}}
		doc := decode(report.NewAssembler().Assemble(r, nil, "20260101_120000"))

		Convey("Then dataset is null and lists are never null", func() {
			So(doc, ShouldContainKey, "dataset")
			So(doc["dataset"], ShouldBeNil)
			So(doc["metrics"].(map[string]any)["energy_per_epoch"], ShouldResemble, []any{})
			So(doc["recommendations"], ShouldResemble, []any{})
			So(doc["warnings"], ShouldResemble, []any{"w"})
		})
	})
}

func TestEnrich(t *testing.T) {
	ctx := context.Background()

	Convey("Given an assembled report", t, func() {
		So(logger.Init(), ShouldBeNil)
		rep := report.NewAssembler().Assemble(trainingResult(), nil, "")

		Convey("When no source is configured", func() {
			e := report.NewAssembler().Enrich(ctx, rep)
			So(e.Available(), ShouldBeFalse)
			So(rep.RawEmissionsPreview, ShouldBeNil)
		})

		Convey("When the log has more rows than the preview size", func() {
			path := filepath.Join(t.TempDir(), "emissions.csv")
			log := emissions.New(path)
			for i := 0; i < 5; i++ {
				So(log.Append(ctx, emissions.Record{RunID: fmt.Sprint(i), EnergyConsumed: float64(i)}), ShouldBeNil)
			}
			e := report.NewAssembler(report.WithSource(log)).Enrich(ctx, rep)

			Convey("Then only the last three rows are attached", func() {
				So(e.Available(), ShouldBeTrue)
				So(e.Rows, ShouldEqual, 3)
				So(rep.RawEmissionsPreview, ShouldHaveLength, 3)
				So(rep.RawEmissionsPreview[2]["energy_consumed"], ShouldEqual, 4.0)
			})
		})

		Convey("When the log file is missing", func() {
			log := emissions.New(filepath.Join(t.TempDir(), "absent.csv"))
			e := report.NewAssembler(report.WithSource(log)).Enrich(ctx, rep)

			Convey("Then the preview is omitted with a reason", func() {
				So(e.Available(), ShouldBeFalse)
				So(e.Reason, ShouldEqual, "measurement log not found")
				So(decode(rep), ShouldNotContainKey, "raw_emissions_preview")
			})
		})

		Convey("When the source fails", func() {
			src := tailFunc(func(context.Context, int) ([]emissions.Row, error) { return nil, errors.New("locked") })
			e := report.NewAssembler(report.WithSource(src), report.WithPreviewRows(1)).Enrich(ctx, rep)
			So(e.Reason, ShouldEqual, "locked")
		})
	})
}

func TestWriteFile(t *testing.T) {
	Convey("Given a report with a timestamp", t, func() {
		So(logger.Init(), ShouldBeNil)
		ts := report.Timestamp(time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local))
		So(ts, ShouldEqual, "20260304_050607")
		rep := report.NewAssembler().Assemble(trainingResult(), []string{"r"}, ts)
		dir := filepath.Join(t.TempDir(), "results")

		Convey("When it is written", func() {
			path, err := report.WriteFile(dir, rep, ts)
			So(err, ShouldBeNil)

			Convey("Then the file name carries the timestamp and the body is indented", func() {
				So(filepath.Base(path), ShouldEqual, "audit_20260304_050607.json")
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(strings.Contains(string(data), "\n    \"experiment\": {"), ShouldBeTrue)

				var back report.Report
				So(json.Unmarshal(data, &back), ShouldBeNil)
				So(back.Experiment.Timestamp, ShouldEqual, ts)
				So(back.Dataset, ShouldResemble, &report.Dataset{Samples: 100, Features: 3})
			})
		})
	})
}
