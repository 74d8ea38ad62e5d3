package meter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const powercapName = "powercap"

// Powercap reads Linux RAPL counters from the powercap sysfs tree.
// Only top-level package zones (intel-rapl:N) are summed; subzones are
// contained in their parent.
type Powercap struct {
	root      string
	intensity float64
	now       func() time.Time
}

// NewPowercap returns a meter reading zones under root, e.g. /sys/class/powercap.
func NewPowercap(root string, gramsPerKWh float64) *Powercap {
	return &Powercap{root: root, intensity: gramsPerKWh, now: time.Now}
}

func (p *Powercap) Name() string { return powercapName }

type zone struct {
	dir      string
	start    uint64
	maxRange uint64
}

func (p *Powercap) zones() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(p.root, "intel-rapl:*"))
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, m := range matches {
		if strings.Count(filepath.Base(m), ":") == 1 {
			dirs = append(dirs, m)
		}
	}
	return dirs, nil
}

// Available reports whether at least one zone counter is readable.
func (p *Powercap) Available() bool {
	dirs, err := p.zones()
	if err != nil {
		return false
	}
	for _, d := range dirs {
		if _, err := readCounter(filepath.Join(d, "energy_uj")); err == nil {
			return true
		}
	}
	return false
}

// Start snapshots every readable zone. With no readable zone the session
// reports unknown energy instead of failing.
func (p *Powercap) Start(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirs, err := p.zones()
	if err != nil {
		return nil, fmt.Errorf("list powercap zones: %w", err)
	}
	s := &powercapSession{meter: p, started: p.now()}
	for _, d := range dirs {
		v, err := readCounter(filepath.Join(d, "energy_uj"))
		if err != nil {
			continue
		}
		maxRange, err := readCounter(filepath.Join(d, "max_energy_range_uj"))
		if err != nil {
			maxRange = 0
		}
		s.zones = append(s.zones, zone{dir: d, start: v, maxRange: maxRange})
	}
	return s, nil
}

type powercapSession struct {
	meter   *Powercap
	started time.Time
	zones   []zone
	stopped bool
}

func (s *powercapSession) Stop(ctx context.Context) (Sample, error) {
	if s.stopped {
		return Sample{}, ErrSessionStopped
	}
	s.stopped = true
	elapsed := s.meter.now().Sub(s.started)
	if len(s.zones) == 0 {
		return Sample{Duration: elapsed, Backend: powercapName}, nil
	}

	var total uint64
	for _, z := range s.zones {
		end, err := readCounter(filepath.Join(z.dir, "energy_uj"))
		if err != nil {
			return Sample{Duration: elapsed, Backend: powercapName}, nil
		}
		total += delta(z.start, end, z.maxRange)
	}
	kwh := float64(total) / microjoulesPerKWh
	return sampleFrom(kwh, s.meter.intensity, elapsed, powercapName), nil
}

// delta handles a single counter wrap at maxRange.
func delta(start, end, maxRange uint64) uint64 {
	if end >= start {
		return end - start
	}
	if maxRange == 0 || start > maxRange {
		return end
	}
	return maxRange - start + end
}

func readCounter(path string) (uint64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
}
