// Package identity fingerprints serial ports and decides whether a freshly
// enumerated port is the same physical device as one seen earlier.
//
// Device paths are not part of a device's identity: a USB adapter that is
// unplugged from /dev/ttyUSB0 may come back as /dev/ttyUSB1 and is still the
// same device.
package identity

import "fmt"

// USBInfo is the USB fingerprint of a port. An empty Serial means the device
// reports no serial number.
type USBInfo struct {
	VID    uint16
	PID    uint16
	Serial string
}

func (u USBInfo) String() string {
	if u.Serial == "" {
		return fmt.Sprintf("%04X:%04X", u.VID, u.PID)
	}
	return fmt.Sprintf("%04X:%04X:%s", u.VID, u.PID, u.Serial)
}

// PortIdentity describes a port at the time it was enumerated or opened.
// USB is nil for ports that are not backed by a USB device.
type PortIdentity struct {
	Path     string
	USB      *USBInfo
	BaudRate int

	// Description is informational only and never used for matching.
	Description string
}

// IsUSB reports whether the port carries a USB fingerprint.
func (p PortIdentity) IsUSB() bool {
	return p.USB != nil
}

func (p PortIdentity) String() string {
	if p.USB == nil {
		return p.Path
	}
	return fmt.Sprintf("%s (%s)", p.Path, p.USB)
}

// SameDevice reports whether a and b describe the same physical device.
// VID and PID must be equal, and the serial numbers must be equal when both
// sides report one. Paths are ignored. Ports without a USB fingerprint are
// never the same device by this measure.
func SameDevice(a, b PortIdentity) bool {
	if a.USB == nil || b.USB == nil {
		return false
	}
	if a.USB.VID != b.USB.VID || a.USB.PID != b.USB.PID {
		return false
	}
	if a.USB.Serial != "" && b.USB.Serial != "" {
		return a.USB.Serial == b.USB.Serial
	}
	return true
}

// exactSame reports whether a and b are the same enumeration entry.
func exactSame(a, b PortIdentity) bool {
	if a.Path != b.Path {
		return false
	}
	if a.USB == nil || b.USB == nil {
		return a.USB == nil && b.USB == nil
	}
	return *a.USB == *b.USB
}
