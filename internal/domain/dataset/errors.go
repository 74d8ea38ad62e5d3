package dataset

import "errors"

// Sentinel kinds for dataset errors.
var (
	ErrEmpty        = errors.New("dataset has no rows")
	ErrTooFewCols   = errors.New("dataset needs at least one feature column and a target column")
	ErrNoFeatures   = errors.New("dataset has no usable feature columns after encoding")
	ErrTooFewRows   = errors.New("dataset has too few rows to split")
	ErrRaggedRow    = errors.New("row length does not match header")
	ErrBadFraction  = errors.New("test fraction must be in (0, 1)")
	ErrDuplicateCol = errors.New("duplicate column name")
	ErrNonFinite    = errors.New("numeric feature is infinite")
)
