/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	serial "github.com/allbin/serialterm"
	"github.com/allbin/serialterm/internal/config"
	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/session"
	"github.com/allbin/serialterm/internal/sink"
	"github.com/allbin/serialterm/internal/stream"
	"github.com/allbin/serialterm/internal/tui/components"
	"github.com/allbin/serialterm/internal/tui/keys"
	"github.com/allbin/serialterm/internal/tui/models"
	"github.com/allbin/serialterm/internal/tui/styles"
)

const writeTimeout = 5 * time.Second

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect [port | VID:PID[:SERIAL]] [baud]",
	Short: "Open an interactive terminal on a serial device",
	Long: `Open an interactive terminal on a serial device.

The device is given by path or by USB identity. Without arguments a picker
lists the ports that are not ignored. When the device disappears the session
waits for it to come back, on the same path or a new one, and carries on.

Keys (normal mode):
  i      insert mode, type and press Enter to send
  d / r  disconnect / connect again
  m      cycle defmt decoding mode
  R / D  toggle RTS / DTR
  h a t  toggle hex, ASCII and timestamps for frames and sent data
  ?      full help

Example usage:
  serialterm connect /dev/ttyUSB0
  serialterm connect /dev/ttyACM0 921600 --defmt-mode framed-rzcobs
  serialterm connect 303a:1001 --reconnect loose
  serialterm connect 0403:6001:A50285BI --capture session.log`,
	Args: cobra.MaximumNArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), sessionFlagKeys)
	},
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)

	addSessionFlags(connectCmd.Flags())
	connectCmd.Flags().StringP("line-ending", "l", "lf", "Line ending appended in ASCII mode: lf, crlf, cr, none")
	connectCmd.Flags().StringP("capture", "c", "", "Also write the session to this file")
	connectCmd.Flags().String("capture-format", "", "Capture format: text, json (default from config)")
}

// connectModel represents the Bubble Tea model for the connect command
type connectModel struct {
	*models.SerialModel
	terminal   *components.Terminal
	statusBar  *components.StatusBar
	input      *components.Input
	help       help.Model
	keys       keys.ConnectKeys
	lineEnding components.LineEnding
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func runConnect(cmd *cobra.Command, args []string) error {
	lineEnding, err := components.ParseLineEnding(mustString(cmd, "line-ending"))
	if err != nil {
		return err
	}

	cfg, notices := loadConfig(nil)
	mgr, opts, more := newSession(cfg)
	notices = append(notices, more...)

	addr, err := resolveAddress(args, opts.Ignore)
	if err != nil {
		_ = mgr.Close()
		return err
	}

	capture, closeCapture, err := openCapture(cfg, mustString(cmd, "capture"), mustString(cmd, "capture-format"))
	if err != nil {
		_ = mgr.Close()
		return err
	}
	defer closeCapture()

	m := newConnectModel(mgr, addr, cfg, lineEnding)
	for _, n := range notices {
		m.terminal.AddFormattedMessage(styles.ErrorStyle.Render("config: " + n))
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	logger := logs.Logger("connect")
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range mgr.Events() {
			if capture != nil {
				if err := capture.Write(ev); err != nil {
					logger.Error("capture write failed", "error", err)
				} else if len(mgr.Events()) == 0 {
					_ = capture.Flush()
				}
			}
			p.Send(components.EventMsg{Timestamp: time.Now(), Event: ev})
		}
	}()

	go func() {
		if err := mgr.Connect(m.GetContext(), addr); err != nil {
			logger.Warn("connect failed", "address", addr, "error", err)
		}
	}()

	_, err = p.Run()
	m.Cleanup()
	<-drained
	return err
}

// openCapture opens the optional capture file. The returned close function
// is always safe to call.
func openCapture(cfg config.Config, path, format string) (*sink.Capture, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	if format == "" {
		format = cfg.Capture.Format
	}
	f, err := sink.ParseFormat(format)
	if err != nil {
		return nil, nil, err
	}
	file, err := sink.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	c := sink.New(file, f)
	return c, func() {
		_ = c.Flush()
		_ = file.Close()
	}, nil
}

func newConnectModel(mgr *session.Manager, addr identity.Address, cfg config.Config, lineEnding components.LineEnding) *connectModel {
	statusBar := components.NewStatusBar(addr.String())
	statusBar.SetStatus(mgr.Status())
	statusBar.SetDefmtMode(mgr.Mode())

	info := &components.ConnectionInfo{
		BaudRate: addr.BaudRate,
		DataBits: cfg.Serial.DataBits,
		StopBits: cfg.Serial.StopBits,
	}
	if info.BaudRate <= 0 {
		info.BaudRate = cfg.Serial.BaudRate
	}
	if p, err := serial.ParseParity(cfg.Serial.Parity); err == nil {
		info.Parity = p
	}
	if fc, err := serial.ParseFlowControl(cfg.Serial.FlowControl); err == nil {
		info.FlowControl = fc
	}
	statusBar.SetConnectionInfo(info)

	return &connectModel{
		SerialModel: models.NewSerialModel(mgr, addr),
		terminal:    components.NewTerminal(0, 0),
		statusBar:   statusBar,
		input:       components.NewInput(),
		help:        help.New(),
		keys:        keys.NewConnectKeys(),
		lineEnding:  lineEnding,
	}
}

func mustString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return s
}

func (m *connectModel) Init() tea.Cmd {
	return tick()
}

// parseHexInput converts hex strings to bytes. Supports both:
// - Space-separated: "48 65 6C 6C 6F"
// - Continuous: "48656C6C6F"
func parseHexInput(hexStr string) ([]byte, error) {
	cleanHex := strings.ReplaceAll(strings.TrimSpace(hexStr), " ", "")
	if len(cleanHex) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	for _, char := range cleanHex {
		if !((char >= '0' && char <= '9') || (char >= 'A' && char <= 'F') || (char >= 'a' && char <= 'f')) {
			return nil, fmt.Errorf("invalid hex character '%c'", char)
		}
	}

	if len(cleanHex)%2 != 0 {
		return nil, fmt.Errorf("hex string must have even number of digits (got %d)", len(cleanHex))
	}

	bytes := make([]byte, 0, len(cleanHex)/2)
	for i := 0; i < len(cleanHex); i += 2 {
		hexByte := cleanHex[i : i+2]
		b, err := strconv.ParseUint(hexByte, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte '%s': %v", hexByte, err)
		}
		bytes = append(bytes, byte(b))
	}
	return bytes, nil
}

// encodeInput returns the bytes to send for the input line and the bytes
// to show for it.
func encodeInput(text string, mode components.SendingMode, ending components.LineEnding) (send, show []byte, err error) {
	if mode == components.SendingModeHex {
		data, err := parseHexInput(text)
		return data, data, err
	}
	show = []byte(text)
	send = append(append([]byte{}, show...), ending.Bytes()...)
	return send, show, nil
}

// send writes data in the background and reports the outcome.
func (m *connectModel) send(data, show []byte) tea.Cmd {
	s := m.Session()
	ctx := m.GetContext()
	return func() tea.Msg {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()

		msg := components.TransmitMsg{Data: show, Status: components.TXWritten}
		if _, err := s.Write(wctx, data); err != nil {
			msg.Status, msg.Err = components.TXFailed, err
		}
		msg.Timestamp = time.Now()
		return msg
	}
}

func (m *connectModel) reconnect() tea.Cmd {
	s, addr, ctx := m.Session(), m.Address(), m.GetContext()
	return func() tea.Msg {
		// The outcome arrives as a status event.
		_ = s.Connect(ctx, addr)
		return nil
	}
}

func (m *connectModel) notice(format string, args ...any) {
	line := styles.TimestampStyle.Render(fmt.Sprintf("[%s] ", time.Now().Format("15:04:05.000"))) +
		fmt.Sprintf(format, args...)
	m.terminal.AddFormattedMessage(line)
}

func (m *connectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Input area (with border), status bar and the content top border.
		inputHeight := 3
		statusBarHeight := 1
		borderHeight := 1
		verticalMarginHeight := inputHeight + statusBarHeight + borderHeight

		m.terminal.SetSize(msg.Width, max(msg.Height-verticalMarginHeight, 1))
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.SetReady(true)

	case tickMsg:
		m.statusBar.SetStatus(m.Status())
		return m, tick()

	case components.EventMsg:
		if ev, ok := msg.Event.(stream.ConnectionStatus); ok {
			m.statusBar.SetStatus(ev.Status)
		}
		m.terminal.AddEvent(msg)

	case components.TransmitMsg:
		m.terminal.AddTransmit(msg)

	case tea.KeyMsg:
		if m.IsInInsertMode() {
			switch {
			case key.Matches(msg, m.keys.Escape):
				m.SetInputMode(models.InputModeNormal)
				m.input.Blur()
				return m, nil
			case key.Matches(msg, m.keys.Enter):
				text := m.input.Value()
				if text == "" {
					return m, nil
				}
				data, show, err := encodeInput(text, m.input.SendingMode(), m.lineEnding)
				if err != nil {
					m.terminal.AddFormattedMessage(styles.ErrorStyle.Render("Invalid hex input: " + err.Error()))
					return m, nil
				}
				m.input.Remember(text)
				m.input.SetValue("")
				return m, m.send(data, show)
			case msg.Type == tea.KeyUp:
				m.input.HistoryPrev()
				return m, nil
			case msg.Type == tea.KeyDown:
				m.input.HistoryNext()
				return m, nil
			case key.Matches(msg, m.keys.ToggleSendMode):
				m.input.ToggleSendingMode()
				return m, nil
			}
		} else {
			switch {
			case key.Matches(msg, m.keys.Quit):
				m.Cleanup()
				return m, tea.Quit

			case key.Matches(msg, m.keys.InsertMode):
				m.SetInputMode(models.InputModeInsert)
				m.input.Focus()
				return m, nil

			case key.Matches(msg, m.keys.Clear):
				m.terminal.Clear()

			case key.Matches(msg, m.keys.Help):
				m.help.ShowAll = !m.help.ShowAll

			case key.Matches(msg, m.keys.ToggleHex):
				m.terminal.ToggleHex()

			case key.Matches(msg, m.keys.ToggleASCII):
				m.terminal.ToggleASCII()

			case key.Matches(msg, m.keys.ToggleTimestamps):
				m.terminal.ToggleTimestamps()

			case key.Matches(msg, m.keys.ToggleSendMode):
				m.input.ToggleSendingMode()

			case key.Matches(msg, m.keys.Up):
				m.terminal.ScrollUp(1)

			case key.Matches(msg, m.keys.Down):
				m.terminal.ScrollDown(1)

			case key.Matches(msg, m.keys.GotoTop):
				m.terminal.GotoTop()

			case key.Matches(msg, m.keys.GotoBottom):
				m.terminal.GotoBottom()

			case key.Matches(msg, m.keys.Disconnect):
				m.Session().Disconnect()

			case key.Matches(msg, m.keys.Reconnect):
				return m, m.reconnect()

			case key.Matches(msg, m.keys.CycleDefmt):
				next := m.Session().Mode().Next()
				m.Session().SetDefmtMode(next)
				m.statusBar.SetDefmtMode(next)
				m.notice("defmt mode: %s", next)

			case key.Matches(msg, m.keys.ToggleRTS):
				state, err := m.ToggleRTS()
				m.lineNotice("RTS", state, err)

			case key.Matches(msg, m.keys.ToggleDTR):
				state, err := m.ToggleDTR()
				m.lineNotice("DTR", state, err)
			}
		}
	}

	var cmd tea.Cmd
	if m.IsInInsertMode() {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	switch msg.(type) {
	case tea.WindowSizeMsg, tea.MouseMsg:
		_, cmd = m.terminal.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *connectModel) lineNotice(name string, state bool, err error) {
	if err != nil {
		m.terminal.AddFormattedMessage(styles.ErrorStyle.Render(fmt.Sprintf("%s: %v", name, err)))
		return
	}
	level := "low"
	if state {
		level = "high"
	}
	m.notice("%s %s", name, level)
}

func (m *connectModel) View() string {
	content := "Initializing..."
	if m.IsReady() {
		content = m.terminal.View()
	}

	inputMode := m.GetInputMode().String()
	input := m.input.View(m.IsInInsertMode())

	sendingMode := m.input.SendingMode().String()
	if m.input.SendingMode() == components.SendingModeASCII {
		sendingMode += "+" + m.lineEnding.String()
	}
	statusBar := m.statusBar.ComprehensiveStatusBar(inputMode, sendingMode, time.Now().Format("15:04:05"))

	parts := []string{styles.ContentBorderStyle.Render(content), input, statusBar}
	if m.help.ShowAll {
		parts = append(parts, m.help.View(m.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
