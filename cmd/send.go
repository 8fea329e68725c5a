/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/allbin/serialterm/internal/config"
	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/session"
	"github.com/allbin/serialterm/internal/tui/components"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [data] <port | VID:PID[:SERIAL]>",
	Short: "Send data to a serial port",
	Long: `Send data to a serial port with configurable options.

This command sends data to the specified serial port. Data can be provided as:
- Command line argument: send "Hello World" /dev/ttyUSB0
- From stdin (pipe): echo "test data" | serialterm send /dev/ttyUSB0
- Interactive mode: serialterm send /dev/ttyUSB0 (prompts for input)

The port may also be given by USB identity, as with connect.

Example usage:
  serialterm send "Hello World" /dev/ttyUSB0
  serialterm send "AT+GMR" 303a:1001 --line-ending crlf
  echo "test" | serialterm send /dev/ttyUSB0
  serialterm send /dev/ttyUSB0  # Interactive mode`,
	Args: cobra.RangeArgs(1, 2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), sendFlagKeys)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var data string
		var target string

		if len(args) == 1 {
			target = args[0]
			stat, err := os.Stdin.Stat()
			if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
				data = promptForData()
			} else {
				stdinData, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading from stdin: %w", err)
				}
				data = strings.TrimRight(string(stdinData), "\r\n")
			}
		} else {
			data = args[0]
			target = args[1]
		}

		addr, err := identity.ParseAddress([]string{target})
		if err != nil {
			return err
		}

		endingName, _ := cmd.Flags().GetString("line-ending")
		hexMode, _ := cmd.Flags().GetBool("hex")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ending, err := components.ParseLineEnding(endingName)
		if err != nil {
			return err
		}

		payload := []byte(data)
		if hexMode {
			payload, err = parseHexString(data)
			if err != nil {
				return fmt.Errorf("invalid hex data: %w", err)
			}
		} else {
			payload = append(payload, ending.Bytes()...)
		}

		cfg, notices := loadConfig(os.Stderr)
		warn(notices)
		return sendData(cfg, addr, payload, timeout)
	},
}

var sendFlagKeys = map[string]string{
	"baud":         "serial.baud",
	"flow-control": "serial.flow_control",
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().IntP("baud", "b", session.DefaultBaudRate, "Baud rate")
	sendCmd.Flags().StringP("flow-control", "f", "none", "Flow control: none, cts, rtscts")
	sendCmd.Flags().StringP("line-ending", "l", "none", "Line ending appended to text data: lf, crlf, cr, none")
	sendCmd.Flags().BoolP("hex", "x", false, "Interpret data as hexadecimal (e.g., '48656c6c6f' for 'Hello')")
	sendCmd.Flags().DurationP("timeout", "t", 5*time.Second, "Timeout for sending data")
}

func promptForData() string {
	// Styled prompt
	promptStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99"))

	fmt.Print(promptStyle.Render("Enter data to send: "))

	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		return scanner.Text()
	}
	return ""
}

// parseHexString accepts the formats of parseHexInput plus 0x prefixes.
func parseHexString(hexStr string) ([]byte, error) {
	hexStr = strings.ReplaceAll(hexStr, "0x", "")
	hexStr = strings.ReplaceAll(hexStr, "0X", "")
	return parseHexInput(hexStr)
}

func sendData(cfg config.Config, addr identity.Address, data []byte, timeout time.Duration) error {
	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		Bold(true)

	successStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("40")).
		Bold(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	mgr, _, notices := newSession(cfg)
	warn(notices)
	defer mgr.Close()
	go func() {
		for range mgr.Events() {
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Printf("%s Opening %s...\n", infoStyle.Render("⚡"), addr)
	if err := mgr.Connect(ctx, addr); err != nil {
		return fmt.Errorf("%s %v", errorStyle.Render("✗"), err)
	}
	fmt.Printf("%s Connected to %s\n", successStyle.Render("✓"), mgr.Status().Port)

	fmt.Printf("%s Sending %d bytes...\n", infoStyle.Render("📤"), len(data))
	n, err := mgr.Write(ctx, data)
	if err != nil {
		return fmt.Errorf("%s failed to send data: %v", errorStyle.Render("✗"), err)
	}
	fmt.Printf("%s Successfully sent %d bytes\n", successStyle.Render("✓"), n)
	fmt.Printf("%s Data: %s\n", infoStyle.Render("📋"), preview(data))
	return nil
}

// preview shows at most 50 bytes of data with non-printable bytes replaced.
func preview(data []byte) string {
	s := string(data)
	if len(s) > 50 {
		s = s[:50] + "..."
	}
	return strings.Map(func(r rune) rune {
		if r < 32 || r > 126 {
			return '·'
		}
		return r
	}, s)
}
