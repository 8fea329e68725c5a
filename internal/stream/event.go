// Package stream defines the events a session emits, in arrival order, to
// the terminal view, the capture sink and any other consumer.
package stream

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/style"
)

// Event is one of TextRun, FrameDecoded, FrameError or ConnectionStatus.
type Event interface {
	event()
}

// TextRun is plain text with ANSI sequences removed. Spans cover every byte
// of Text.
type TextRun struct {
	Text  []byte
	Spans []style.Span
}

// FrameDecoded is a defmt frame payload.
type FrameDecoded struct {
	Payload []byte
	// Raw is the frame as it appeared on the wire, without delimiters.
	Raw []byte
}

// FrameError reports a frame that could not be decoded.
type FrameError struct {
	Description string
	Raw         []byte
}

// ConnectionStatus reports a connection state transition.
type ConnectionStatus struct {
	Status Status
}

func (TextRun) event()          {}
func (FrameDecoded) event()     {}
func (FrameError) event()       {}
func (ConnectionStatus) event() {}

func (e FrameDecoded) String() string {
	return fmt.Sprintf("frame (%d bytes): %s", len(e.Payload), hex.EncodeToString(e.Payload))
}

func (e FrameError) String() string {
	return fmt.Sprintf("frame error: %s (%d raw bytes)", e.Description, len(e.Raw))
}

// State is the connection state of a session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Status is an immutable snapshot of a session's connection.
type Status struct {
	State State
	// Port is the current target. It is kept while Reconnecting so the
	// device can be matched again.
	Port identity.PortIdentity
	// PendingSince is when the connection was lost; set while Reconnecting.
	PendingSince time.Time
	// Match reports how the port was re-acquired after a reconnect.
	Match identity.MatchKind
	// Err is the error that caused the transition, if any.
	Err error
}

func (s Status) String() string {
	switch s.State {
	case Connected:
		if s.Match != identity.NoMatch {
			return fmt.Sprintf("connected to %s (reconnected, %s)", s.Port, s.Match)
		}
		return fmt.Sprintf("connected to %s", s.Port)
	case Reconnecting:
		msg := fmt.Sprintf("reconnecting to %s", s.Port)
		if s.Err != nil {
			msg += ": " + s.Err.Error()
		}
		return msg
	case Connecting:
		return fmt.Sprintf("connecting to %s", s.Port)
	default:
		if s.Err != nil {
			return "disconnected: " + s.Err.Error()
		}
		return "disconnected"
	}
}
