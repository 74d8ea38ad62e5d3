package meter_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/okian/ecoaudit/internal/adapters/emissions"
	"github.com/okian/ecoaudit/internal/adapters/meter"
	"github.com/okian/ecoaudit/internal/adapters/sysinfo"
	"github.com/okian/ecoaudit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func writeZone(root, name string, energy, maxRange uint64) string {
	dir := filepath.Join(root, name)
	So(os.MkdirAll(dir, 0o755), ShouldBeNil)
	So(os.WriteFile(filepath.Join(dir, "energy_uj"), []byte(strconv.FormatUint(energy, 10)+"\n"), 0o644), ShouldBeNil)
	So(os.WriteFile(filepath.Join(dir, "max_energy_range_uj"), []byte(strconv.FormatUint(maxRange, 10)), 0o644), ShouldBeNil)
	return dir
}

func setEnergy(dir string, energy uint64) {
	So(os.WriteFile(filepath.Join(dir, "energy_uj"), []byte(strconv.FormatUint(energy, 10)), 0o644), ShouldBeNil)
}

func TestPowercap(t *testing.T) {
	ctx := context.Background()

	Convey("Given a powercap tree with one package and a subzone", t, func() {
		root := t.TempDir()
		pkg := writeZone(root, "intel-rapl:0", 1_000_000, 10_000_000)
		sub := writeZone(root, "intel-rapl:0:0", 500, 10_000_000)
		m := meter.NewPowercap(root, 500)
		So(m.Available(), ShouldBeTrue)

		Convey("When the counter advances by 3.6e9 uJ", func() {
			s, err := m.Start(ctx)
			So(err, ShouldBeNil)
			setEnergy(pkg, 1_000_000+3_600_000_000)
			setEnergy(sub, 99_999_999)

			sample, err := s.Stop(ctx)
			So(err, ShouldBeNil)

			Convey("Then only the package zone counts and energy is in kWh", func() {
				So(sample.Energy, ShouldNotBeNil)
				So(*sample.Energy, ShouldAlmostEqual, 0.001)
				So(*sample.Carbon, ShouldAlmostEqual, 0.0005)
				So(sample.Backend, ShouldEqual, "powercap")
			})

			Convey("Then stopping twice fails", func() {
				_, err := s.Stop(ctx)
				So(errors.Is(err, meter.ErrSessionStopped), ShouldBeTrue)
			})
		})

		Convey("When the counter wraps", func() {
			setEnergy(pkg, 9_000_000)
			s, err := m.Start(ctx)
			So(err, ShouldBeNil)
			setEnergy(pkg, 1_000_000)

			sample, err := s.Stop(ctx)
			So(err, ShouldBeNil)
			So(*sample.Energy, ShouldAlmostEqual, 2_000_000/3.6e12)
		})

		Convey("When the counter disappears mid-session", func() {
			s, err := m.Start(ctx)
			So(err, ShouldBeNil)
			So(os.Remove(filepath.Join(pkg, "energy_uj")), ShouldBeNil)

			sample, err := s.Stop(ctx)
			So(err, ShouldBeNil)
			So(sample.Energy, ShouldBeNil)
		})
	})

	Convey("Given an empty powercap root", t, func() {
		m := meter.NewPowercap(t.TempDir(), 475)
		So(m.Available(), ShouldBeFalse)

		s, err := m.Start(ctx)
		So(err, ShouldBeNil)
		sample, err := s.Stop(ctx)
		So(err, ShouldBeNil)
		So(sample.Energy, ShouldBeNil)
		So(sample.Carbon, ShouldBeNil)
	})
}

func TestEstimate(t *testing.T) {
	ctx := context.Background()

	Convey("Given an estimate meter with a scripted cpu clock", t, func() {
		readings := []float64{10, 46}
		calls := 0
		clock := func(context.Context) (float64, error) {
			v := readings[calls]
			calls++
			return v, nil
		}
		m := meter.NewEstimate(100, 1000, meter.WithCPUTime(clock), meter.WithCPUs(4))

		Convey("Then 36 cpu seconds at 25 W per cpu is 900 J", func() {
			s, err := m.Start(ctx)
			So(err, ShouldBeNil)
			sample, err := s.Stop(ctx)
			So(err, ShouldBeNil)
			So(*sample.Energy, ShouldAlmostEqual, 900/3.6e6)
			So(*sample.Carbon, ShouldAlmostEqual, 900/3.6e6)
		})
	})

	Convey("Given a cpu clock that fails", t, func() {
		m := meter.NewEstimate(65, 475, meter.WithCPUTime(func(context.Context) (float64, error) {
			return 0, errors.New("no procfs")
		}))
		s, err := m.Start(ctx)
		So(err, ShouldBeNil)
		sample, err := s.Stop(ctx)
		So(err, ShouldBeNil)
		So(sample.Energy, ShouldBeNil)
	})

	Convey("Given the real process clock", t, func() {
		m := meter.NewEstimate(65, 475)
		s, err := m.Start(ctx)
		So(err, ShouldBeNil)
		sample, err := s.Stop(ctx)
		So(err, ShouldBeNil)
		if sample.Energy != nil {
			So(*sample.Energy, ShouldBeGreaterThanOrEqualTo, 0)
		}
	})
}

func TestSelect(t *testing.T) {
	Convey("Given meter settings", t, func() {
		Convey("When none is requested", func() {
			m, err := meter.Select(meter.Settings{Kind: meter.KindNone})
			So(err, ShouldBeNil)
			So(m.Name(), ShouldEqual, "none")
		})

		Convey("When auto finds no powercap counters", func() {
			m, err := meter.Select(meter.Settings{Kind: meter.KindAuto, PowercapRoot: t.TempDir(), CPUTDPWatts: 65})
			So(err, ShouldBeNil)
			So(m.Name(), ShouldEqual, "estimate")
		})

		Convey("When auto finds powercap counters", func() {
			root := t.TempDir()
			writeZone(root, "intel-rapl:0", 1, 100)
			m, err := meter.Select(meter.Settings{Kind: meter.KindAuto, PowercapRoot: root})
			So(err, ShouldBeNil)
			So(m.Name(), ShouldEqual, "powercap")
		})

		Convey("When the kind is unknown", func() {
			_, err := meter.Select(meter.Settings{Kind: "gpu"})
			So(errors.Is(err, meter.ErrUnknownKind), ShouldBeTrue)
		})
	})
}

type staticFallback struct {
	v   float64
	err error
}

func (f staticFallback) LastEnergy(context.Context) (float64, error) { return f.v, f.err }

func TestResolve(t *testing.T) {
	ctx := context.Background()
	energy, carbon := 0.02, 0.01

	Convey("Given samples with and without readings", t, func() {
		Convey("When the meter measured energy it wins", func() {
			r := meter.Resolve(ctx, meter.Sample{Energy: &energy, Carbon: &carbon}, staticFallback{v: 9})
			So(r.Source, ShouldEqual, meter.SourceMeter)
			So(r.Energy, ShouldEqual, 0.02)
			So(r.Carbon, ShouldEqual, 0.01)
		})

		Convey("When energy is missing the log is used and carbon is zero", func() {
			r := meter.Resolve(ctx, meter.Sample{}, staticFallback{v: 0.3})
			So(r.Source, ShouldEqual, meter.SourceLog)
			So(r.Energy, ShouldEqual, 0.3)
			So(r.Carbon, ShouldEqual, 0)
		})

		Convey("When the log fails energy is zero", func() {
			r := meter.Resolve(ctx, meter.Sample{}, staticFallback{err: emissions.ErrNoRecords})
			So(r.Source, ShouldEqual, meter.SourceZero)
			So(r.Energy, ShouldEqual, 0)
			So(errors.Is(r.Err, emissions.ErrNoRecords), ShouldBeTrue)
		})

		Convey("When there is no fallback source", func() {
			r := meter.Resolve(ctx, meter.Sample{}, nil)
			So(r.Source, ShouldEqual, meter.SourceZero)
			So(errors.Is(r.Err, meter.ErrNoFallbackSource), ShouldBeTrue)
		})
	})
}

func TestWithLog(t *testing.T) {
	ctx := context.Background()

	Convey("Given a powercap meter decorated with a measurement log", t, func() {
		So(logger.Init(), ShouldBeNil)
		root := t.TempDir()
		pkg := writeZone(root, "intel-rapl:0", 0, 1<<40)
		log := emissions.New(filepath.Join(t.TempDir(), "emissions.csv"))
		m := meter.WithLog(meter.NewPowercap(root, 475), log, meter.LogInfo{
			ProjectName: "ecoaudit",
			Hardware:    sysinfo.Hardware{CPUModel: "Test CPU", CPUCount: 4},
		})
		So(m.Name(), ShouldEqual, "powercap")

		Convey("When a session measures energy", func() {
			s, err := m.Start(meter.WithRunID(ctx, "run-42"))
			So(err, ShouldBeNil)
			setEnergy(pkg, 7_200_000_000)
			_, err = s.Stop(meter.WithRunID(ctx, "run-42"))
			So(err, ShouldBeNil)

			Convey("Then a record is appended with the run id", func() {
				v, err := log.LastEnergy(ctx)
				So(err, ShouldBeNil)
				So(v, ShouldAlmostEqual, 0.002)
				rows, err := log.Tail(ctx, 1)
				So(err, ShouldBeNil)
				So(rows[0]["run_id"], ShouldEqual, "run-42")
				So(rows[0]["cpu_model"], ShouldEqual, "Test CPU")
			})
		})

		Convey("When a session has no energy reading", func() {
			So(os.Remove(filepath.Join(pkg, "energy_uj")), ShouldBeNil)
			s, err := m.Start(ctx)
			So(err, ShouldBeNil)
			_, err = s.Stop(ctx)
			So(err, ShouldBeNil)

			Convey("Then nothing is appended", func() {
				_, err := log.LastEnergy(ctx)
				So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
			})
		})
	})
}
