package config

import "errors"

// Config errors (spec §7): raised at load, terminate with a clear diagnostic
// naming the offending key. All are wrapped with "%w" plus a
// "phase=... path=..." prefix identifying where in the document they arose.
var (
	ErrInvalidPipeline   = errors.New("invalid pipeline")
	ErrUnknownReference  = errors.New("unknown reference")
	ErrDuplicateProducer = errors.New("duplicate producer")
	ErrDuplicateStep     = errors.New("duplicate step name")
	ErrMultiPassShape    = errors.New("invalid multi-pass shape")
	ErrCycleDetected     = errors.New("cycle detected")
	ErrLegacyVariables   = errors.New("variables: is no longer supported; migrate to data:")
)
