package core

import (
	"errors"
)

var (
	ErrEngineNotReady = errors.New("engine setup has not completed")
	ErrUnknown        = errors.New("unknown")
)
