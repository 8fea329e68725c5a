package session

import (
	serial "github.com/allbin/serialterm"
	"github.com/allbin/serialterm/internal/identity"
)

// SystemEnumerator lists the serial ports of this machine.
type SystemEnumerator struct{}

// Ports implements Enumerator.
func (SystemEnumerator) Ports() ([]identity.PortIdentity, error) {
	infos, err := serial.ListPortInfo()
	if err != nil {
		return nil, err
	}
	ports := make([]identity.PortIdentity, 0, len(infos))
	for i := range infos {
		ports = append(ports, PortIdentity(&infos[i]))
	}
	return ports, nil
}

// PortIdentity converts port metadata into an identity. Ports with missing
// or unparsable USB IDs get no USB fingerprint.
func PortIdentity(info *serial.PortInfo) identity.PortIdentity {
	p := identity.PortIdentity{Path: info.Path, Description: info.Description}
	if vid, pid, err := info.USBIDs(); err == nil {
		p.USB = &identity.USBInfo{VID: vid, PID: pid, Serial: info.SerialNumber}
	}
	return p
}

// SystemOpener opens real serial ports. Options apply to every port it
// opens; the baud rate comes from the identity.
type SystemOpener struct {
	Options []serial.Option
}

// Open implements Opener.
func (o SystemOpener) Open(p identity.PortIdentity) (Conn, error) {
	opts := append([]serial.Option{}, o.Options...)
	if p.BaudRate > 0 {
		opts = append(opts, serial.WithBaudRate(p.BaudRate))
	}
	port, err := serial.Open(p.Path, opts...)
	if err != nil {
		return nil, err
	}
	return port, nil
}
