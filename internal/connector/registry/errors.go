package registry

import "errors"

var (
	// ErrInvalidType is returned when the type name is empty.
	ErrInvalidType = errors.New("connector type name is required")

	// ErrInvalidID is returned when the connector id is empty.
	ErrInvalidID = errors.New("connector id is required")

	// ErrUnknownType is returned when the type name is not in the registry
	// or its module reference cannot be loaded.
	ErrUnknownType = errors.New("unknown connector type")
)
