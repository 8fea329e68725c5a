package identity

import (
	"fmt"
	"strings"
)

// Strictness selects how eagerly a lost device is re-acquired.
type Strictness int

const (
	// Strict matches by path, by VID:PID:Serial, or by a unique VID:PID.
	Strict Strictness = iota
	// Loose additionally accepts the first new port with the same VID:PID,
	// and as a last resort a port at the same path.
	Loose
	// Disabled turns automatic reconnection off.
	Disabled
)

func (s Strictness) String() string {
	switch s {
	case Strict:
		return "strict"
	case Loose:
		return "loose"
	case Disabled:
		return "disabled"
	default:
		return fmt.Sprintf("Strictness(%d)", int(s))
	}
}

// Set implements pflag.Value.
func (s *Strictness) Set(v string) error {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict", "":
		*s = Strict
	case "loose":
		*s = Loose
	case "disabled", "off", "none":
		*s = Disabled
	default:
		return fmt.Errorf("unknown reconnect mode %q (want strict, loose or disabled)", v)
	}
	return nil
}

// Type implements pflag.Value.
func (s *Strictness) Type() string {
	return "reconnect"
}

// MatchKind records which rule selected a port.
type MatchKind int

const (
	NoMatch MatchKind = iota
	// PerfectMatch is a port at the same path with a compatible fingerprint.
	PerfectMatch
	// SerialMatch is a port with the same VID, PID and serial number.
	SerialMatch
	// USBMatch is the only port with the same VID and PID.
	USBMatch
	// LooseMatch is the first new port with the same VID and PID.
	LooseMatch
	// LastDitch is a port at the same path with a different fingerprint.
	LastDitch
)

func (k MatchKind) String() string {
	switch k {
	case PerfectMatch:
		return "perfect match"
	case SerialMatch:
		return "serial match"
	case USBMatch:
		return "usb match"
	case LooseMatch:
		return "loose usb match"
	case LastDitch:
		return "last-ditch path match"
	default:
		return "no match"
	}
}

// Matcher decides which freshly enumerated port is the target device.
// It performs no I/O.
type Matcher struct {
	Ignore     IgnoreList
	Strictness Strictness
}

// Match returns the single port in candidates that is the target device.
// Ignored ports are never returned.
func Match(target PortIdentity, candidates []PortIdentity, ignore IgnoreList) (PortIdentity, error) {
	m := Matcher{Ignore: ignore}
	p, _, err := m.Match(target, candidates, nil)
	return p, err
}

// Match applies the matching rules in priority order. Ports listed in
// baseline were already present before the target went away and are only
// eligible by path.
func (m Matcher) Match(target PortIdentity, candidates, baseline []PortIdentity) (PortIdentity, MatchKind, error) {
	cands := m.Ignore.Filter(candidates)

	if target.Path != "" {
		for _, c := range cands {
			if c.Path != target.Path {
				continue
			}
			if target.USB == nil || c.USB == nil || SameDevice(target, c) {
				return c, PerfectMatch, nil
			}
		}
	}

	if target.USB == nil {
		return m.lastDitch(target, cands, ErrNoMatch)
	}

	fresh := make([]PortIdentity, 0, len(cands))
	for _, c := range cands {
		if !inBaseline(c, baseline) {
			fresh = append(fresh, c)
		}
	}

	want := *target.USB
	failure := ErrNoMatch

	if want.Serial != "" {
		var hits []PortIdentity
		for _, c := range fresh {
			if c.USB != nil && c.USB.VID == want.VID && c.USB.PID == want.PID && c.USB.Serial == want.Serial {
				hits = append(hits, c)
			}
		}
		switch {
		case len(hits) == 1:
			return hits[0], SerialMatch, nil
		case len(hits) > 1:
			return PortIdentity{}, NoMatch, fmt.Errorf("%w: %d ports report %s", ErrAmbiguousMatch, len(hits), want)
		}
	}

	var hits []PortIdentity
	for _, c := range fresh {
		if c.USB == nil || c.USB.VID != want.VID || c.USB.PID != want.PID {
			continue
		}
		if want.Serial == "" || c.USB.Serial == "" {
			hits = append(hits, c)
		}
	}
	switch {
	case len(hits) == 1:
		return hits[0], USBMatch, nil
	case len(hits) > 1:
		failure = fmt.Errorf("%w: %d ports with %04X:%04X", ErrAmbiguousMatch, len(hits), want.VID, want.PID)
	}

	if m.Strictness != Loose {
		return PortIdentity{}, NoMatch, failure
	}

	for _, c := range fresh {
		if c.USB != nil && c.USB.VID == want.VID && c.USB.PID == want.PID {
			return c, LooseMatch, nil
		}
	}
	return m.lastDitch(target, cands, failure)
}

func (m Matcher) lastDitch(target PortIdentity, cands []PortIdentity, failure error) (PortIdentity, MatchKind, error) {
	if m.Strictness == Loose && target.Path != "" {
		for _, c := range cands {
			if c.Path == target.Path {
				return c, LastDitch, nil
			}
		}
	}
	return PortIdentity{}, NoMatch, failure
}

func inBaseline(c PortIdentity, baseline []PortIdentity) bool {
	for _, b := range baseline {
		if exactSame(b, c) {
			return true
		}
	}
	return false
}
