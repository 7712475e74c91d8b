package types

import "errors"

var (
	// ErrNoInput is returned when a conversion is started without input files.
	ErrNoInput = errors.New("no input files")

	// ErrMalformedInput is returned when a file cannot be read as a table.
	ErrMalformedInput = errors.New("malformed input")

	// ErrMissingIdentity is returned when a row has no usable identity.
	ErrMissingIdentity = errors.New("missing identity")

	// ErrUnsupportedFormat is returned for an unrecognized output format token.
	ErrUnsupportedFormat = errors.New("unsupported format")
)
