package forest

import "errors"

var (
	ErrNotFitted       = errors.New("forest is not fitted")
	ErrEmptyInput      = errors.New("no training rows")
	ErrLabelMismatch   = errors.New("label count does not match rows")
	ErrFeatureMismatch = errors.New("input feature count does not match fitted forest")
	ErrNegativeLabel   = errors.New("class labels must be non-negative")
	ErrMalformed       = errors.New("forest structure is invalid")
)
