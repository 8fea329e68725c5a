package identity

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is a device selection as given on the command line: either a
// path or a USB rule, optionally with a baud rate. A zero BaudRate means the
// configured default.
type Address struct {
	Path     string
	USB      *USBRule
	BaudRate int
}

func (a Address) String() string {
	s := a.Path
	if a.USB != nil {
		s = a.USB.String()
	}
	if a.BaudRate > 0 {
		s += " @ " + strconv.Itoa(a.BaudRate)
	}
	return s
}

// Target returns the identity a connection attempt starts from.
func (a Address) Target() PortIdentity {
	t := PortIdentity{Path: a.Path, BaudRate: a.BaudRate}
	if a.USB != nil {
		u := USBInfo(*a.USB)
		t.USB = &u
	}
	return t
}

// ParseAddress parses the positional arguments of the connect commands:
//
//	<path> [baud]
//	<VID:PID> [baud]
//	<VID:PID:SERIAL> [baud]
//
// An argument containing a colon is a USB rule unless it looks like a
// filesystem path (/dev/serial/by-path names contain colons).
func ParseAddress(args []string) (Address, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return Address{}, fmt.Errorf("%w: missing port", ErrInvalidAddress)
	}
	if len(args) > 2 {
		return Address{}, fmt.Errorf("%w: too many arguments", ErrInvalidAddress)
	}

	var addr Address
	if strings.Contains(args[0], ":") && !strings.HasPrefix(args[0], "/") && !strings.HasPrefix(args[0], ".") {
		rule, err := ParseUSBRule(args[0])
		if err != nil {
			return Address{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
		}
		addr.USB = &rule
	} else {
		addr.Path = args[0]
	}

	if len(args) == 2 {
		baud, err := strconv.Atoi(args[1])
		if err != nil || baud <= 0 {
			return Address{}, fmt.Errorf("%w: baud rate %q", ErrInvalidAddress, args[1])
		}
		addr.BaudRate = baud
	}
	return addr, nil
}

// Resolve turns an address into a single connection target. A path address
// is looked up among candidates only to pick up its USB fingerprint; it is
// usable even when the port is not listed or is ignored. A USB address must
// match exactly one non-ignored candidate.
func Resolve(addr Address, candidates []PortIdentity, ignore IgnoreList) (PortIdentity, error) {
	if addr.USB == nil {
		for _, c := range candidates {
			if c.Path == addr.Path {
				c.BaudRate = addr.BaudRate
				return c, nil
			}
		}
		return addr.Target(), nil
	}

	rule := *addr.USB
	var hits []PortIdentity
	for _, c := range ignore.Filter(candidates) {
		if rule.Matches(c.USB) {
			hits = append(hits, c)
		}
	}

	switch len(hits) {
	case 0:
		return PortIdentity{}, fmt.Errorf("%w for %s", ErrNoMatch, rule)
	case 1:
		hit := hits[0]
		hit.BaudRate = addr.BaudRate
		return hit, nil
	default:
		paths := make([]string, len(hits))
		for i, h := range hits {
			paths[i] = h.Path
		}
		return PortIdentity{}, fmt.Errorf("%w: %s matches %s", ErrAmbiguousMatch, rule, strings.Join(paths, ", "))
	}
}
