package audit

import "errors"

var (
	ErrInvalidEpochs  = errors.New("epochs must be at least 1")
	ErrInvalidDataset = errors.New("dataset cannot be trained on")
	ErrStepPanicked   = errors.New("measured step panicked")
	ErrNilArtifact    = errors.New("nil artifact")
	ErrNilModel       = errors.New("nil model")
)
