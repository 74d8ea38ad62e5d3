package emissions_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/ecoaudit/internal/adapters/emissions"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLogAppend(t *testing.T) {
	ctx := context.Background()

	Convey("Given a log in a fresh directory", t, func() {
		path := filepath.Join(t.TempDir(), "nested", "emissions.csv")
		log := emissions.New(path)

		Convey("When nothing has been written", func() {
			_, err := log.LastEnergy(ctx)
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
		})

		Convey("When two records are appended", func() {
			for _, e := range []float64{0.002, 0.004} {
				So(log.Append(ctx, emissions.Record{
					Timestamp:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
					ProjectName:    "ecoaudit",
					RunID:          "run-1",
					Duration:       2 * time.Second,
					Emissions:      e * 0.475,
					EnergyConsumed: e,
					CPUEnergy:      e,
					CPUCount:       8,
				}), ShouldBeNil)
			}

			Convey("Then the header is written once", func() {
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(strings.Count(string(data), "energy_consumed"), ShouldEqual, 1)
				So(strings.HasPrefix(string(data), strings.Join(emissions.Columns, ",")), ShouldBeTrue)
			})

			Convey("Then the last energy is the newest row", func() {
				v, err := log.LastEnergy(ctx)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, 0.004)
			})

			Convey("Then tail returns typed values", func() {
				rows, err := log.Tail(ctx, 3)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[1]["energy_consumed"], ShouldEqual, 0.004)
				So(rows[1]["project_name"], ShouldEqual, "ecoaudit")
				So(rows[1]["country_name"], ShouldBeNil)
				So(rows[1]["cpu_count"], ShouldEqual, 8.0)
				So(rows[0]["emissions_rate"], ShouldAlmostEqual, 0.002*0.475/2)
			})

			Convey("Then tail limits the row count", func() {
				rows, err := log.Tail(ctx, 1)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
				So(rows[0]["energy_consumed"], ShouldEqual, 0.004)
			})
		})

		Convey("When appends run concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = log.Append(ctx, emissions.Record{EnergyConsumed: 1})
				}()
			}
			wg.Wait()

			Convey("Then every row is intact", func() {
				rows, err := log.Tail(ctx, 100)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 20)
			})
		})
	})
}

func TestLogExternalFormat(t *testing.T) {
	ctx := context.Background()

	Convey("Given a log written by another tool with extra columns", t, func() {
		path := filepath.Join(t.TempDir(), "emissions.csv")
		content := "timestamp,extra,energy_consumed,gpu_energy\n" +
			"2024-01-01T00:00:00,a,0.5,\n" +
			"2024-01-01T00:01:00,b,0.75,nan\n"
		So(os.WriteFile(path, []byte(content), 0o644), ShouldBeNil)
		log := emissions.New(path)

		Convey("Then the last energy is read by column name", func() {
			v, err := log.LastEnergy(ctx)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0.75)
		})

		Convey("Then non-finite and empty cells become nil", func() {
			rows, err := log.Tail(ctx, 3)
			So(err, ShouldBeNil)
			So(rows[0]["gpu_energy"], ShouldBeNil)
			So(rows[1]["gpu_energy"], ShouldBeNil)
			So(rows[1]["extra"], ShouldEqual, "b")
		})

		Convey("When a record is appended the existing header is kept", func() {
			So(log.Append(ctx, emissions.Record{EnergyConsumed: 0.9}), ShouldBeNil)
			v, err := log.LastEnergy(ctx)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 0.9)
			rows, err := log.Tail(ctx, 1)
			So(err, ShouldBeNil)
			So(rows[0], ShouldContainKey, "gpu_energy")
			So(rows[0], ShouldNotContainKey, "run_id")
		})
	})

	Convey("Given a log without the energy column", t, func() {
		path := filepath.Join(t.TempDir(), "emissions.csv")
		So(os.WriteFile(path, []byte("timestamp,duration\nx,1\n"), 0o644), ShouldBeNil)

		_, err := emissions.New(path).LastEnergy(ctx)
		So(errors.Is(err, emissions.ErrMissingColumn), ShouldBeTrue)
	})

	Convey("Given a log with only a header", t, func() {
		path := filepath.Join(t.TempDir(), "emissions.csv")
		So(os.WriteFile(path, []byte("energy_consumed\n"), 0o644), ShouldBeNil)

		_, err := emissions.New(path).Tail(ctx, 3)
		So(errors.Is(err, emissions.ErrNoRecords), ShouldBeTrue)
	})
}
