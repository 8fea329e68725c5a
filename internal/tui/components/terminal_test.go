package components

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allbin/serialterm/internal/stream"
	"github.com/allbin/serialterm/internal/style"
)

func text(s string, st style.Style) EventMsg {
	return EventMsg{
		Timestamp: time.Now(),
		Event: stream.TextRun{
			Text:  []byte(s),
			Spans: []style.Span{{Start: 0, End: len(s), Style: st}},
		},
	}
}

func newTestTerminal() *Terminal {
	term := NewTerminal(80, 10)
	term.ToggleTimestamps()
	return term
}

func TestTerminalJoinsPartialLines(t *testing.T) {
	term := newTestTerminal()
	term.AddEvent(text("hel", style.Style{}))
	term.AddEvent(text("lo\n", style.Style{}))
	term.AddEvent(text("next", style.Style{}))

	assert.Equal(t, []string{"hello", "next"}, term.Lines())
}

func TestTerminalSkipsHiddenLines(t *testing.T) {
	term := newTestTerminal()
	term.AddEvent(text("visible\n", style.Style{}))
	term.AddEvent(text("secret\n", style.Style{Attrs: style.Hide}))
	term.AddEvent(text("token=abc\n", style.Style{Attrs: style.Censor}))

	assert.Equal(t, []string{"visible", "*********"}, term.Lines())
}

func TestTerminalFrameClosesOpenLine(t *testing.T) {
	term := newTestTerminal()
	term.AddEvent(text("abc", style.Style{}))
	term.AddEvent(EventMsg{Timestamp: time.Now(), Event: stream.FrameDecoded{Payload: []byte{0x01, 0x41}}})
	term.AddEvent(text("def\n", style.Style{}))

	lines := term.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "abc", lines[0])
	assert.Contains(t, lines[1], "defmt")
	assert.Contains(t, lines[1], "HEX: 01 41")
	assert.Contains(t, lines[1], "ASCII: .A")
	assert.Equal(t, "def", lines[2])
}

func TestTerminalStatusAndErrors(t *testing.T) {
	term := newTestTerminal()
	term.AddEvent(EventMsg{Timestamp: time.Now(), Event: stream.FrameError{Description: "malformed frame", Raw: []byte{1, 2}}})
	term.AddEvent(EventMsg{Timestamp: time.Now(), Event: stream.ConnectionStatus{Status: stream.Status{State: stream.Disconnected}}})
	term.AddTransmit(TransmitMsg{Timestamp: time.Now(), Data: []byte("AT"), Status: TXFailed, Err: errors.New("not connected")})

	lines := term.Lines()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "malformed frame (2 bytes)")
	assert.Contains(t, lines[1], "disconnected")
	assert.Contains(t, lines[2], "TX ✗")
	assert.Contains(t, lines[2], "not connected")
}

func TestTerminalScrollback(t *testing.T) {
	term := newTestTerminal()
	term.scrollback = 3
	for _, s := range []string{"1\n", "2\n", "3\n", "4\n", "5\n"} {
		term.AddEvent(text(s, style.Style{}))
	}
	assert.Equal(t, []string{"3", "4", "5"}, term.Lines())
}

func TestTerminalFollow(t *testing.T) {
	term := newTestTerminal()
	assert.True(t, term.Follow())
	term.GotoTop()
	assert.False(t, term.Follow())
	term.GotoBottom()
	assert.True(t, term.Follow())

	term.Clear()
	assert.Empty(t, term.Lines())
}
