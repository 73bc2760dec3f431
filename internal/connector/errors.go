package connector

import "errors"

var (
	// ErrNotImplemented is returned by the default lifecycle hooks when a
	// concrete connector type has not supplied its own.
	ErrNotImplemented = errors.New("lifecycle hook not implemented")

	// ErrInvalidConfig is returned by Init when the config is not a mapping,
	// or by the polling variant when pollFrequency is missing or non-positive.
	ErrInvalidConfig = errors.New("invalid connector config")

	// ErrInvalidPayload is returned by AddData when the payload is not a
	// mapping.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidCategory is returned when a category is neither cloud nor
	// device.
	ErrInvalidCategory = errors.New("invalid connector category")
)
