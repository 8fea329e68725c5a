package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/stream"
	"github.com/allbin/serialterm/internal/style"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 12, 30, 45, 123e6, time.UTC)
}

func text(s string) stream.TextRun {
	return stream.TextRun{Text: []byte(s), Spans: []style.Span{{Start: 0, End: len(s)}}}
}

func TestTextCapture(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, Text)
	c.now = fixedClock

	events := []stream.Event{
		stream.ConnectionStatus{Status: stream.Status{State: stream.Connected, Port: identity.PortIdentity{Path: "/dev/ttyUSB0"}}},
		text("boot"),
		stream.FrameDecoded{Payload: []byte{0x01, 0xAB}},
		text("done\n"),
		stream.FrameError{Description: "malformed rzcobs frame", Raw: []byte{0x80}},
	}
	for _, ev := range events {
		require.NoError(t, c.Write(ev))
	}
	require.NoError(t, c.Flush())

	want := "[12:30:45.123] -- connected to /dev/ttyUSB0 --\n" +
		"boot\n" +
		"[defmt] 01ab\n" +
		"done\n" +
		"[defmt error] malformed rzcobs frame: 80\n"
	assert.Equal(t, want, buf.String())

	n, frames, errs := c.Stats()
	assert.Equal(t, int64(9), n)
	assert.Equal(t, 1, frames)
	assert.Equal(t, 1, errs)
}

func TestCaptureCensors(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, Text)

	run := stream.TextRun{Text: []byte("key=abc\n"), Spans: []style.Span{
		{Start: 0, End: 4},
		{Start: 4, End: 7, Style: style.Style{Attrs: style.Censor}},
		{Start: 7, End: 8},
	}}
	require.NoError(t, c.Write(run))
	require.NoError(t, c.Flush())
	assert.Equal(t, "key=***\n", buf.String())
}

func TestJSONCapture(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, JSON)
	c.now = fixedClock

	require.NoError(t, c.Write(text("hi\n")))
	require.NoError(t, c.Write(stream.FrameDecoded{Payload: []byte{0xFF}, Raw: []byte{0x01, 0xFF}}))
	require.NoError(t, c.Write(stream.ConnectionStatus{Status: stream.Status{
		State: stream.Reconnecting,
		Port:  identity.PortIdentity{Path: "/dev/ttyACM0"},
		Err:   errors.New("read: device gone"),
	}}))
	require.NoError(t, c.Write(text("\xfe\xffok")))
	require.NoError(t, c.Flush())

	var recs []record
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var r record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		recs = append(recs, r)
	}
	require.Len(t, recs, 4)
	assert.Equal(t, "text", recs[0].Type)
	assert.Equal(t, "hi\n", recs[0].Text)
	assert.Equal(t, "68690a", recs[0].Raw)
	assert.Equal(t, "ff", recs[1].Payload)
	assert.Equal(t, "01ff", recs[1].Raw)
	assert.Equal(t, "reconnecting", recs[2].State)
	assert.Equal(t, "read: device gone", recs[2].Error)
	assert.Equal(t, "feff6f6b", recs[3].Raw)
}

func TestRunDrainsChannel(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, Text)

	ch := make(chan stream.Event, 3)
	ch <- text("a")
	ch <- text("b\n")
	close(ch)

	require.NoError(t, c.Run(context.Background(), ch))
	assert.Equal(t, "ab\n", buf.String())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, JSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
