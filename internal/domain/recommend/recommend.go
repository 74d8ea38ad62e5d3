// Package recommend derives efficiency advice from an audit result.
package recommend

import "github.com/okian/ecoaudit/internal/domain/audit"

// Thresholds.
const (
	LowEnergyKWh      = 0.01
	ModerateEnergyKWh = 0.1
	HighCarbonKg      = 0.5
	HighEpochs        = 10
	LargeDataset      = 200_000
	HighDimensions    = 1_000
	ManyCPUs          = 16
	forestModelName   = "RandomForest"
)

// Messages, in the order Generate emits them.
const (
	MsgEfficient      = "Energy consumption is very low: configuration is efficient."
	MsgModerateEnergy = "Moderate energy usage: early stopping can reduce cost."
	MsgHighEnergy     = "High energy usage: reduce model complexity or dataset size."
	MsgHighCarbon     = "High carbon footprint: use renewable-powered infrastructure."
	MsgHighEpochs     = "High epoch count: consider early stopping."
	MsgPlateau        = "Energy plateau detected: early stopping recommended."
	MsgLargeDataset   = "Large dataset: apply sampling or distributed training."
	MsgHighDimensions = "High feature dimensionality: apply PCA or feature selection."
	MsgForest         = "Reduce number of trees or tree depth to reduce energy."
	MsgParallel       = "Parallel training recommended for efficiency."
	MsgCompression    = "Use pruning, quantization, and mixed precision to reduce compute."
	MsgScheduling     = "Schedule training during low-carbon electricity hours."
)

// Generate applies the rules in fixed order. It reads r only.
func Generate(r *audit.Result) []string {
	var recs []string

	switch {
	case r.TotalEnergy < LowEnergyKWh:
		recs = append(recs, MsgEfficient)
	case r.TotalEnergy < ModerateEnergyKWh:
		recs = append(recs, MsgModerateEnergy)
	default:
		recs = append(recs, MsgHighEnergy)
	}

	if r.TotalCarbon > HighCarbonKg {
		recs = append(recs, MsgHighCarbon)
	}
	if r.Epochs > HighEpochs {
		recs = append(recs, MsgHighEpochs)
	}
	if plateau(r.EnergyPerEpoch) {
		recs = append(recs, MsgPlateau)
	}
	if r.Samples() > LargeDataset {
		recs = append(recs, MsgLargeDataset)
	}
	if r.Features() > HighDimensions {
		recs = append(recs, MsgHighDimensions)
	}
	if r.ModelName == forestModelName {
		recs = append(recs, MsgForest)
	}
	if r.System.CPUCount >= ManyCPUs {
		recs = append(recs, MsgParallel)
	}

	return append(recs, MsgCompression, MsgScheduling)
}

// plateau is true when the last epoch used at least as much as the one before.
func plateau(series []float64) bool {
	n := len(series)
	return n > 2 && series[n-1] >= series[n-2]
}
