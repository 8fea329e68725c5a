package identity

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// USBRule matches ports by VID:PID and, optionally, serial number.
type USBRule struct {
	VID    uint16
	PID    uint16
	Serial string
}

// ParseUSBRule parses "VID:PID" or "VID:PID:SERIAL". VID and PID are
// hexadecimal and case-insensitive. The serial is taken verbatim and may
// itself contain colons.
func ParseUSBRule(s string) (USBRule, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 3)
	if len(parts) < 2 {
		return USBRule{}, fmt.Errorf("%w: %q", ErrInvalidUSBRule, s)
	}

	vid, err := parseHex16(parts[0])
	if err != nil {
		return USBRule{}, fmt.Errorf("%w: %q: vendor id: %v", ErrInvalidUSBRule, s, err)
	}
	pid, err := parseHex16(parts[1])
	if err != nil {
		return USBRule{}, fmt.Errorf("%w: %q: product id: %v", ErrInvalidUSBRule, s, err)
	}

	rule := USBRule{VID: vid, PID: pid}
	if len(parts) == 3 {
		if parts[2] == "" {
			return USBRule{}, fmt.Errorf("%w: %q: empty serial", ErrInvalidUSBRule, s)
		}
		rule.Serial = parts[2]
	}
	return rule, nil
}

func parseHex16(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" || len(s) > 4 {
		return 0, fmt.Errorf("want 1 to 4 hex digits, got %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// Matches reports whether the rule applies to u. A rule without a serial
// matches any serial; a rule with a serial never matches a device that
// reports none.
func (r USBRule) Matches(u *USBInfo) bool {
	if u == nil || u.VID != r.VID || u.PID != r.PID {
		return false
	}
	if r.Serial == "" {
		return true
	}
	return u.Serial == r.Serial
}

func (r USBRule) String() string {
	return USBInfo(r).String()
}

// IgnoreList removes ports from listings and from matching.
type IgnoreList struct {
	USB   []USBRule
	Names []string
	// ShowTTYS keeps the legacy /dev/ttyS* ports, which are hidden by default.
	ShowTTYS bool
}

// ParseIgnoreList builds an IgnoreList from configuration strings. Malformed
// USB entries are left out and reported together in the returned error; the
// list is usable either way.
func ParseIgnoreList(usb, names []string, showTTYS bool) (IgnoreList, error) {
	l := IgnoreList{ShowTTYS: showTTYS}
	var errs []error
	for _, s := range usb {
		rule, err := ParseUSBRule(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		l.USB = append(l.USB, rule)
	}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			l.Names = append(l.Names, n)
		}
	}
	return l, errors.Join(errs...)
}

// Ignored reports whether p should be hidden.
func (l IgnoreList) Ignored(p PortIdentity) bool {
	base := filepath.Base(p.Path)
	if !l.ShowTTYS && strings.HasPrefix(base, "ttyS") {
		return true
	}
	for _, n := range l.Names {
		if n == p.Path || n == base {
			return true
		}
	}
	for _, r := range l.USB {
		if r.Matches(p.USB) {
			return true
		}
	}
	return false
}

// Filter returns the ports in ports that are not ignored.
func (l IgnoreList) Filter(ports []PortIdentity) []PortIdentity {
	out := make([]PortIdentity, 0, len(ports))
	for _, p := range ports {
		if !l.Ignored(p) {
			out = append(out, p)
		}
	}
	return out
}
