package serial

import "errors"

// Predefined error types for robust error handling
var (
	ErrDeviceNotFound   = errors.New("serial device not found")
	ErrPermissionDenied = errors.New("permission denied accessing serial device")
	ErrDeviceInUse      = errors.New("serial device already in use")
	ErrNotATerminal     = errors.New("device is not a serial port")
	ErrInvalidBaudRate  = errors.New("invalid baud rate")
	ErrInvalidConfig    = errors.New("invalid serial configuration")
	ErrPortClosed       = errors.New("serial port is closed")

	// ErrDeviceGone is returned by Read when the device has hung up,
	// typically because a USB adapter was unplugged.
	ErrDeviceGone = errors.New("serial device disconnected")

	// USB-related errors
	ErrUSBInfoNotAvailable = errors.New("USB device information not available")
)
