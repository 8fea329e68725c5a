package session

import "errors"

var (
	// ErrNotConnected is returned by writes while the session is not Connected.
	ErrNotConnected = errors.New("not connected")

	// ErrGaveUp is reported when a lost device did not come back within the
	// give-up period.
	ErrGaveUp = errors.New("gave up waiting for device")

	// ErrSuperseded is returned by Connect when a later Connect or Disconnect
	// overtook it.
	ErrSuperseded = errors.New("connection attempt superseded")

	// ErrClosed is returned once the manager has been closed.
	ErrClosed = errors.New("session closed")
)
