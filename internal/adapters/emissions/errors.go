package emissions

import "errors"

var (
	ErrNoRecords     = errors.New("measurement log has no records")
	ErrMissingColumn = errors.New("measurement log lacks column")
	ErrNoValue       = errors.New("measurement log value is empty")
)
