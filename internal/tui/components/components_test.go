package components

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/style"
)

func TestParseLineEnding(t *testing.T) {
	tests := []struct {
		in   string
		want LineEnding
		raw  string
	}{
		{"", LineEndingLF, "\n"},
		{"LF", LineEndingLF, "\n"},
		{"crlf", LineEndingCRLF, "\r\n"},
		{"cr", LineEndingCR, "\r"},
		{"none", LineEndingNone, ""},
	}
	for _, tt := range tests {
		got, err := ParseLineEnding(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.raw, string(got.Bytes()), tt.in)
	}

	_, err := ParseLineEnding("nl")
	assert.Error(t, err)
}

func TestInputHistory(t *testing.T) {
	in := NewInput()
	in.Remember("first")
	in.Remember("second")
	in.Remember("second")
	in.Remember("   ")

	in.SetValue("draft")
	in.HistoryPrev()
	assert.Equal(t, "second", in.Value())
	in.HistoryPrev()
	assert.Equal(t, "first", in.Value())
	in.HistoryPrev()
	assert.Equal(t, "first", in.Value(), "stays at the oldest line")
	in.HistoryNext()
	assert.Equal(t, "second", in.Value())
	in.HistoryNext()
	assert.Equal(t, "draft", in.Value())
	in.HistoryNext()
	assert.Equal(t, "draft", in.Value())
}

func TestInputHistoryBounded(t *testing.T) {
	in := NewInput()
	for i := range historySize + 5 {
		in.Remember(fmt.Sprintf("cmd %d", i))
	}
	assert.Len(t, in.history.lines, historySize)
	assert.Equal(t, "cmd 5", in.history.lines[0])
}

func TestInputToggleSendingMode(t *testing.T) {
	in := NewInput()
	assert.Equal(t, SendingModeASCII, in.SendingMode())
	in.ToggleSendingMode()
	assert.Equal(t, SendingModeHex, in.SendingMode())
	assert.Equal(t, "HEX", in.SendingMode().String())
	in.ToggleSendingMode()
	assert.Equal(t, SendingModeASCII, in.SendingMode())
}

func TestRenderTextDropsLineEnd(t *testing.T) {
	s := "ok\r\n"
	assert.Equal(t, "ok", RenderText([]byte(s), []style.Span{{Start: 0, End: len(s)}}))
}

var pickerPorts = []identity.PortIdentity{
	{Path: "/dev/ttyUSB0", USB: &identity.USBInfo{VID: 0x0403, PID: 0x6001}},
	{Path: "/dev/ttyACM0", Description: "ESP32-S3"},
}

func TestPortPickerSelects(t *testing.T) {
	p := NewPortPicker(pickerPorts)
	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	require.NotNil(t, p.Selected())
	assert.Equal(t, "/dev/ttyACM0", p.Selected().Path)
}

func TestPortPickerCancel(t *testing.T) {
	p := NewPortPicker(pickerPorts)
	p.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, p.Selected())
}

func TestPortPickerEmpty(t *testing.T) {
	p := NewPortPicker(nil)
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, p.Selected())
	assert.Contains(t, p.View(), "No serial ports found")
}
