// Package sink persists the event stream of a session.
package sink

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/allbin/serialterm/internal/stream"
	"github.com/allbin/serialterm/internal/style"
)

// Format selects the capture file layout.
type Format int

const (
	// Text writes the visible text, with frames and status changes on lines
	// of their own.
	Text Format = iota
	// JSON writes one JSON object per event.
	JSON
)

func (f Format) String() string {
	if f == JSON {
		return "json"
	}
	return "text"
}

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return Text, nil
	case "json", "jsonl":
		return JSON, nil
	}
	return Text, fmt.Errorf("unknown capture format %q (want text or json)", s)
}

// OpenFile opens path for appending, creating it if needed.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	return f, nil
}

// Capture writes events to w. It is not safe for concurrent use.
type Capture struct {
	w      *bufio.Writer
	format Format
	now    func() time.Time

	midLine bool
	text    int64
	frames  int
	errors  int
}

func New(w io.Writer, format Format) *Capture {
	return &Capture{w: bufio.NewWriter(w), format: format, now: time.Now}
}

// Run writes events until the channel closes or ctx is done, then flushes.
func (c *Capture) Run(ctx context.Context, events <-chan stream.Event) error {
	defer c.Flush()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := c.Write(ev); err != nil {
				return err
			}
			if len(events) == 0 {
				if err := c.Flush(); err != nil {
					return err
				}
			}
		}
	}
}

// Write records one event.
func (c *Capture) Write(ev stream.Event) error {
	switch e := ev.(type) {
	case stream.TextRun:
		c.text += int64(len(e.Text))
	case stream.FrameDecoded:
		c.frames++
	case stream.FrameError:
		c.errors++
	}
	if c.format == JSON {
		return c.writeJSON(ev)
	}
	return c.writeText(ev)
}

// Flush writes buffered output.
func (c *Capture) Flush() error {
	return c.w.Flush()
}

// Stats returns the text bytes, frames and frame errors written so far.
func (c *Capture) Stats() (text int64, frames, errors int) {
	return c.text, c.frames, c.errors
}

func (c *Capture) writeText(ev stream.Event) error {
	var err error
	switch e := ev.(type) {
	case stream.TextRun:
		vis := style.Visible(e.Text, e.Spans)
		if len(vis) == 0 {
			return nil
		}
		_, err = c.w.Write(vis)
		c.midLine = vis[len(vis)-1] != '\n'
	case stream.FrameDecoded:
		err = c.line("[defmt] %s", hex.EncodeToString(e.Payload))
	case stream.FrameError:
		err = c.line("[defmt error] %s: %s", e.Description, hex.EncodeToString(e.Raw))
	case stream.ConnectionStatus:
		err = c.line("[%s] -- %s --", c.now().Format("15:04:05.000"), e.Status)
	}
	return err
}

// line writes a record on a line of its own.
func (c *Capture) line(format string, args ...any) error {
	if c.midLine {
		if err := c.w.WriteByte('\n'); err != nil {
			return err
		}
		c.midLine = false
	}
	_, err := fmt.Fprintf(c.w, format+"\n", args...)
	return err
}

type record struct {
	Time        time.Time `json:"time"`
	Type        string    `json:"type"`
	Text        string    `json:"text,omitempty"`
	Payload     string    `json:"payload,omitempty"`
	Raw         string    `json:"raw,omitempty"`
	Description string    `json:"description,omitempty"`
	State       string    `json:"state,omitempty"`
	Port        string    `json:"port,omitempty"`
	Error       string    `json:"error,omitempty"`
}

func (c *Capture) writeJSON(ev stream.Event) error {
	r := record{Time: c.now()}
	switch e := ev.(type) {
	case stream.TextRun:
		vis := style.Visible(e.Text, e.Spans)
		if len(vis) == 0 {
			return nil
		}
		// Text is lossy for bytes that are not UTF-8; Raw is exact.
		r.Type, r.Text, r.Raw = "text", string(vis), hex.EncodeToString(vis)
	case stream.FrameDecoded:
		r.Type, r.Payload, r.Raw = "frame", hex.EncodeToString(e.Payload), hex.EncodeToString(e.Raw)
	case stream.FrameError:
		r.Type, r.Description, r.Raw = "frame_error", e.Description, hex.EncodeToString(e.Raw)
	case stream.ConnectionStatus:
		r.Type, r.State, r.Port = "status", e.Status.State.String(), e.Status.Port.Path
		if e.Status.Err != nil {
			r.Error = e.Status.Err.Error()
		}
	default:
		return nil
	}
	return json.NewEncoder(c.w).Encode(r)
}
