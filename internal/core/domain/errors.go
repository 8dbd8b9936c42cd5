package domain

import "errors"

var (
	ErrInvalidPhase     = errors.New("invalid phase index")
	ErrInvalidReading   = errors.New("invalid meter reading")
	ErrMeterBusy        = errors.New("meter data set is busy")
	ErrResetUnsupported = errors.New("reset not supported for category")
	ErrUnknownCategory  = errors.New("unknown meter category")
)
