package decoder

import (
	"fmt"
	"strings"
)

// Mode selects how inbound bytes are split into text and defmt frames.
type Mode int

const (
	// Disabled treats every byte as text.
	Disabled Mode = iota
	// Raw passes 0x00 terminated frames through undecoded. The first bad
	// frame switches the session to text for good.
	Raw
	// UnframedRzcobs treats the whole stream as 0x00 terminated rzCOBS frames.
	UnframedRzcobs
	// FramedRzcobs looks for 0xFF 0x00 <rzCOBS frame> 0x00 envelopes between
	// plain text, as written by esp-println.
	FramedRzcobs
)

var modeNames = [...]string{
	Disabled:       "disabled",
	Raw:            "raw",
	UnframedRzcobs: "unframed-rzcobs",
	FramedRzcobs:   "framed-rzcobs",
}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Decodes reports whether the mode produces frames.
func (m Mode) Decodes() bool {
	return m != Disabled
}

// Next cycles through the modes in declaration order.
func (m Mode) Next() Mode {
	return (m + 1) % Mode(len(modeNames))
}

// ParseMode parses a mode name. A few shorthands are accepted.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disabled", "off", "none", "":
		return Disabled, nil
	case "raw":
		return Raw, nil
	case "unframed-rzcobs", "unframed", "rzcobs":
		return UnframedRzcobs, nil
	case "framed-rzcobs", "framed", "esp", "esp-println":
		return FramedRzcobs, nil
	}
	return Disabled, fmt.Errorf("unknown defmt mode %q (want disabled, raw, unframed-rzcobs or framed-rzcobs)", s)
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	v, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Type implements pflag.Value.
func (m *Mode) Type() string {
	return "defmt-mode"
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	return m.Set(string(text))
}
