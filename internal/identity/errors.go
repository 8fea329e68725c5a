package identity

import "errors"

var (
	// ErrNoMatch is returned when no candidate port matches the target.
	ErrNoMatch = errors.New("no matching port found")

	// ErrAmbiguousMatch is returned when more than one candidate port matches
	// a target that carries no serial number.
	ErrAmbiguousMatch = errors.New("ambiguous match: more than one port matches")

	// ErrInvalidUSBRule is returned for malformed VID:PID[:Serial] strings.
	ErrInvalidUSBRule = errors.New("invalid USB identifier, expected VID:PID[:SERIAL]")

	// ErrInvalidAddress is returned for device addresses that cannot be parsed.
	ErrInvalidAddress = errors.New("invalid device address")
)
