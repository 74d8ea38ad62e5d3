package meter

import "fmt"

// Settings selects and parameterizes a backend.
type Settings struct {
	Kind         Kind
	PowercapRoot string
	CPUTDPWatts  float64
	// CarbonIntensity in g CO2e per kWh.
	CarbonIntensity float64
}

// Select builds the meter named by s.Kind. Auto prefers readable powercap counters.
func Select(s Settings) (Meter, error) {
	switch s.Kind {
	case KindPowercap:
		return NewPowercap(s.PowercapRoot, s.CarbonIntensity), nil
	case KindEstimate:
		return NewEstimate(s.CPUTDPWatts, s.CarbonIntensity), nil
	case KindNone:
		return None{}, nil
	case KindAuto, "":
		if p := NewPowercap(s.PowercapRoot, s.CarbonIntensity); p.Available() {
			return p, nil
		}
		return NewEstimate(s.CPUTDPWatts, s.CarbonIntensity), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
	}
}
