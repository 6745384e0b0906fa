package domain

import "errors"

// Common domain errors.
var (
	ErrNoPipeline      = errors.New("no pipeline registered")
	ErrNoImage         = errors.New("no image loaded")
	ErrStepNotFound    = errors.New("step not found")
	ErrUnknownParam    = errors.New("unknown parameter")
	ErrInvalidParam    = errors.New("invalid parameter value")
	ErrNotConnected    = errors.New("persistent channel not connected")
	ErrCommandRejected = errors.New("command rejected by server")
)
