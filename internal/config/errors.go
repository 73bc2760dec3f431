package config

import "errors"

var (
	// ErrConfigRead wraps I/O failures while reading the config file.
	ErrConfigRead = errors.New("failed to read config file")

	// ErrConfigParse wraps JSON decode failures.
	ErrConfigParse = errors.New("failed to parse config file")

	// ErrConfigShape is returned when one of the three required top-level
	// mappings is missing or not a mapping. The wrapping error names the
	// offending section.
	ErrConfigShape = errors.New("invalid config shape")

	// ErrWriteFailed wraps failures to persist the config document.
	ErrWriteFailed = errors.New("failed to write config file")
)
