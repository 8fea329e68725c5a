// Package decoder turns the inbound byte stream of a session into text runs
// and defmt frames.
//
// A Decoder is not safe for concurrent use. A session drives it from its
// single reader goroutine, and all decoding state lives in an explicit State
// value that survives across Feed calls.
package decoder

import (
	"bytes"
	"fmt"

	"github.com/allbin/serialterm/internal/colorrule"
	"github.com/allbin/serialterm/internal/rzcobs"
	"github.com/allbin/serialterm/internal/stream"
	"github.com/allbin/serialterm/internal/style"
)

const (
	frameMarker = 0xFF
	terminator  = 0x00
)

// State is everything a Decoder remembers between Feed calls. It is replaced
// as a whole when the mode changes.
type State struct {
	Mode Mode

	// Halted is set for good once Raw mode sees a bad frame.
	Halted bool
	// WithinFrame is set between a 0xFF 0x00 marker and the frame terminator.
	WithinFrame bool
	// PendingMarker is set when the last byte seen outside a frame was 0xFF.
	PendingMarker bool
	// ReleasedMarker is set when Flush gave up on a held 0xFF. A 0x00 right
	// after it still opens a frame.
	ReleasedMarker bool

	skipZeros bool
	prevFF    bool
	raw       []byte
	overflow  bool
	frame     rzcobs.Decoder
	sgr       style.Parser
}

// Buffered returns the number of frame bytes waiting for a terminator.
func (s State) Buffered() int {
	return len(s.raw) + s.frame.Pending()
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxFrameSize bounds the bytes buffered for a single frame.
func WithMaxFrameSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxFrame = n
		}
	}
}

// WithFrameCheck installs a validator run on every frame payload before it
// is emitted. A failing check turns the frame into a FrameError, which in Raw
// mode halts decoding.
func WithFrameCheck(check func(payload []byte) error) Option {
	return func(d *Decoder) {
		d.check = check
	}
}

// Decoder converts bytes to stream events.
type Decoder struct {
	state    State
	rules    *colorrule.Engine
	maxFrame int
	check    func([]byte) error

	text   []byte
	events []stream.Event
}

// New returns a Decoder in the given mode. rules may be nil.
func New(mode Mode, rules *colorrule.Engine, opts ...Option) *Decoder {
	d := &Decoder{
		rules:    rules,
		maxFrame: rzcobs.DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.reset(mode)
	return d
}

// SetFrameCheck replaces the frame validator. A nil check removes it.
func (d *Decoder) SetFrameCheck(check func(payload []byte) error) {
	d.check = check
}

// Mode returns the active mode.
func (d *Decoder) Mode() Mode {
	return d.state.Mode
}

// State returns a copy of the decoder state.
func (d *Decoder) State() State {
	return d.state
}

// SetMode switches modes. Any partially received frame, held marker byte and
// ANSI style carry-over is discarded, and Halted is cleared.
func (d *Decoder) SetMode(mode Mode) {
	d.reset(mode)
}

func (d *Decoder) reset(mode Mode) {
	d.state = State{Mode: mode}
	d.state.frame.MaxFrameSize = d.maxFrame
	d.text = d.text[:0]
}

// Feed consumes the next chunk of the stream and returns the resulting
// events in order. Partial frames and escape sequences carry over to the
// next call.
func (d *Decoder) Feed(in []byte) []stream.Event {
	d.events = nil

	switch {
	case d.state.Mode == Disabled, d.state.Halted:
		d.text = append(d.text, in...)
	case d.state.Mode == Raw:
		d.feedRaw(in)
	case d.state.Mode == UnframedRzcobs:
		d.feedUnframed(in)
	case d.state.Mode == FramedRzcobs:
		d.feedFramed(in)
	}

	d.flushText()
	return d.events
}

// Flush emits a 0xFF held back while waiting for a possible frame marker.
// The marker is still recognised if its 0x00 arrives later. Partially
// received frames stay buffered.
func (d *Decoder) Flush() []stream.Event {
	d.events = nil
	if d.state.PendingMarker {
		d.state.PendingMarker = false
		d.state.ReleasedMarker = true
		d.text = append(d.text, frameMarker)
	}
	d.flushText()
	return d.events
}

func (d *Decoder) feedRaw(in []byte) {
	st := &d.state
	for i, b := range in {
		if b != terminator {
			if len(st.raw) < d.maxFrame {
				st.raw = append(st.raw, b)
				continue
			}
			st.raw = append(st.raw, b)
			d.halt(fmt.Sprintf("frame exceeds %d bytes", d.maxFrame), in[i+1:])
			return
		}

		if len(st.raw) == 0 {
			d.halt("empty frame", in[i+1:])
			return
		}
		payload := st.raw
		st.raw = nil
		if d.check != nil {
			if err := d.check(payload); err != nil {
				st.raw = payload
				d.halt(err.Error(), in[i+1:])
				return
			}
		}
		d.emit(stream.FrameDecoded{Payload: payload, Raw: payload})
	}
}

// halt reports the buffered frame as bad and switches to text for the rest
// of the session, starting with rest.
func (d *Decoder) halt(desc string, rest []byte) {
	st := &d.state
	d.emit(stream.FrameError{Description: desc + "; defmt decoding stopped", Raw: st.raw})
	st.raw = nil
	st.Halted = true
	d.text = append(d.text, rest...)
}

func (d *Decoder) feedUnframed(in []byte) {
	for _, b := range in {
		f, done := d.state.frame.Push(b)
		if !done {
			continue
		}
		if f.Err == nil && len(f.Raw) == 0 {
			// Back-to-back terminators.
			continue
		}
		d.emitFrame(f)
	}
}

func (d *Decoder) feedFramed(in []byte) {
	st := &d.state
	for _, b := range in {
		if !st.WithinFrame {
			if st.ReleasedMarker {
				st.ReleasedMarker = false
				if b == terminator {
					d.startFrame()
					continue
				}
			}
			if st.PendingMarker {
				st.PendingMarker = false
				if b == terminator {
					d.startFrame()
					continue
				}
				d.text = append(d.text, frameMarker)
			}
			if b == frameMarker {
				st.PendingMarker = true
				continue
			}
			d.text = append(d.text, b)
			continue
		}

		if st.skipZeros {
			if b == terminator {
				continue
			}
			st.skipZeros = false
		}

		endsWithFF := st.prevFF
		st.prevFF = b == frameMarker

		f, done := st.frame.Push(b)
		if !done {
			continue
		}
		st.WithinFrame = false

		if f.Err != nil && endsWithFF {
			// The terminator completed a new 0xFF 0x00 marker rather than
			// the frame: the previous frame was cut short.
			raw := f.Raw
			if len(raw) > 0 && raw[len(raw)-1] == frameMarker {
				raw = raw[:len(raw)-1]
			}
			d.emit(stream.FrameError{Description: "frame interrupted by a new frame marker", Raw: raw})
			d.startFrame()
			continue
		}
		d.emitFrame(f)
	}
}

func (d *Decoder) startFrame() {
	d.flushText()
	st := &d.state
	st.WithinFrame = true
	st.skipZeros = true
	st.prevFF = false
	st.frame.Reset()
}

func (d *Decoder) emitFrame(f rzcobs.Frame) {
	if f.Err != nil {
		d.emit(stream.FrameError{Description: f.Err.Error(), Raw: f.Raw})
		return
	}
	if d.check != nil {
		if err := d.check(f.Payload); err != nil {
			d.emit(stream.FrameError{Description: err.Error(), Raw: f.Raw})
			return
		}
	}
	d.emit(stream.FrameDecoded{Payload: f.Payload, Raw: f.Raw})
}

// emit appends ev after any text collected so far.
func (d *Decoder) emit(ev stream.Event) {
	d.flushText()
	d.events = append(d.events, ev)
}

// flushText runs the collected text through the ANSI parser and the color
// rules and emits it split into lines.
func (d *Decoder) flushText() {
	if len(d.text) == 0 {
		return
	}
	text, ansi := d.state.sgr.Feed(d.text)
	d.text = d.text[:0]
	if len(text) == 0 {
		return
	}

	per := style.Expand(ansi, len(text))
	for len(text) > 0 {
		n := bytes.IndexByte(text, '\n') + 1
		if n == 0 {
			n = len(text)
		}
		line := text[:n:n]
		spans := d.rules.Apply(line, style.Spans(per[:n]))
		d.events = append(d.events, stream.TextRun{Text: line, Spans: spans})
		text, per = text[n:], per[n:]
	}
}
