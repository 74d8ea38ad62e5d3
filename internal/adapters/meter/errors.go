package meter

import "errors"

var (
	ErrUnknownKind      = errors.New("unknown meter kind")
	ErrNoPowercapZones  = errors.New("no readable powercap zones")
	ErrSessionStopped   = errors.New("measurement session already stopped")
	ErrNoFallbackSource = errors.New("no fallback source configured")
)
