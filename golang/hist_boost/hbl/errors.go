package hbl

import "github.com/pkg/errors"

// Error kinds returned by the engine. Callers match them with errors.Is; the
// returned errors carry extra context wrapped around one of these values.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrOutOfRange    = errors.New("index out of range")
	ErrMissingLabel  = errors.New("missing label")
	ErrNotReady      = errors.New("booster is not ready")
	ErrEmptyInput    = errors.New("empty input")
)
