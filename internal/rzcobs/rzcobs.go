// Package rzcobs implements the reverse zero-compressing COBS framing used by
// defmt. Encoded frames never contain 0x00, so a 0x00 byte delimits frames on
// the wire.
//
// The format cannot express every payload length exactly: decoding a frame may
// yield up to six trailing 0x00 bytes that were not part of the encoded
// payload. defmt ignores trailing zeros, and so does everything built on top of
// this package.
package rzcobs

import (
	"errors"
	"fmt"
)

// DefaultMaxFrameSize bounds how many encoded bytes a Decoder buffers before
// it gives up on the current frame.
const DefaultMaxFrameSize = 16 * 1024

var (
	// ErrMalformed is returned when a control byte refers to data that is not
	// in the frame, or when the frame contains a 0x00 byte.
	ErrMalformed = errors.New("rzcobs: malformed frame")

	// ErrFrameTooLong is returned by Decoder when a frame exceeds its size limit.
	ErrFrameTooLong = errors.New("rzcobs: frame too long")
)

// Decode decodes a single frame. The terminating 0x00 must not be included.
func Decode(frame []byte) ([]byte, error) {
	out := make([]byte, 0, len(frame)+len(frame)/7+7)
	i := len(frame) - 1

	next := func() (byte, bool) {
		if i < 0 {
			return 0, false
		}
		b := frame[i]
		i--
		return b, true
	}

	for i >= 0 {
		pos := i
		x := frame[i]
		i--

		switch {
		case x == 0:
			return nil, fmt.Errorf("%w: zero byte at offset %d", ErrMalformed, pos)

		case x < 0x80:
			for bit := 6; bit >= 0; bit-- {
				if x&(1<<bit) != 0 {
					out = append(out, 0)
					continue
				}
				b, ok := next()
				if !ok {
					return nil, fmt.Errorf("%w: truncated group at offset %d", ErrMalformed, pos)
				}
				out = append(out, b)
			}

		case x < 0xFF:
			n := int(x&0x7F) + 7
			out = append(out, 0)
			for range n {
				b, ok := next()
				if !ok {
					return nil, fmt.Errorf("%w: truncated run at offset %d", ErrMalformed, pos)
				}
				out = append(out, b)
			}

		default:
			for range 134 {
				b, ok := next()
				if !ok {
					return nil, fmt.Errorf("%w: truncated run at offset %d", ErrMalformed, pos)
				}
				out = append(out, b)
			}
		}
	}

	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out, nil
}

// Encode encodes payload as a single frame without the trailing 0x00
// terminator.
func Encode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+len(payload)/7+2)

	var (
		run   int
		zeros byte
	)
	for _, b := range payload {
		switch {
		case run < 7:
			if b == 0 {
				zeros |= 1 << run
			} else {
				out = append(out, b)
			}
			run++
			if run == 7 && zeros != 0 {
				out = append(out, zeros)
				run, zeros = 0, 0
			}

		case b == 0:
			out = append(out, byte(run-7)|0x80)
			run, zeros = 0, 0

		default:
			out = append(out, b)
			run++
			if run == 134 {
				out = append(out, 0xFF)
				run, zeros = 0, 0
			}
		}
	}

	switch {
	case run == 0:
	case run < 7:
		out = append(out, (zeros|0xFF<<run)&0x7F)
	default:
		out = append(out, byte(run-7)|0x80)
	}
	return out
}

// Frame is the outcome of one 0x00-terminated unit seen by a Decoder.
type Frame struct {
	// Payload is the decoded content. It is nil when Err is set.
	Payload []byte
	// Raw holds the encoded bytes as received, without the terminator.
	// For oversized frames only the first MaxFrameSize bytes are kept.
	Raw []byte
	Err error
}

// Decoder accumulates bytes until a 0x00 terminator and decodes the frame.
// The zero value is ready to use with DefaultMaxFrameSize.
type Decoder struct {
	MaxFrameSize int

	buf      []byte
	overflow bool
}

// Push feeds one byte. It reports true when b completed a frame.
func (d *Decoder) Push(b byte) (Frame, bool) {
	if b != 0 {
		if len(d.buf) < d.limit() {
			d.buf = append(d.buf, b)
		} else {
			d.overflow = true
		}
		return Frame{}, false
	}

	raw := make([]byte, len(d.buf))
	copy(raw, d.buf)
	overflow := d.overflow
	d.Reset()

	if overflow {
		return Frame{Raw: raw, Err: fmt.Errorf("%w: more than %d bytes", ErrFrameTooLong, d.limit())}, true
	}
	payload, err := Decode(raw)
	if err != nil {
		return Frame{Raw: raw, Err: err}, true
	}
	return Frame{Payload: payload, Raw: raw}, true
}

// Pending returns the number of buffered bytes of the current frame.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Reset discards the partially received frame.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.overflow = false
}

func (d *Decoder) limit() int {
	if d.MaxFrameSize > 0 {
		return d.MaxFrameSize
	}
	return DefaultMaxFrameSize
}
