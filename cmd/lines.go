/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	serial "github.com/allbin/serialterm"
	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/session"
)

// linesCmd represents the lines command
var linesCmd = &cobra.Command{
	Use:   "lines <port | VID:PID[:SERIAL]>",
	Short: "Show or set modem control lines",
	Long: `Display the modem control signals of a port and optionally set RTS and DTR.

Many development boards wire RTS and DTR to their reset and boot pins, so
setting them can hold a device in reset or release it.

Examples:
  serialterm lines /dev/ttyUSB0
  serialterm lines /dev/ttyUSB0 --rts low --dtr high
  serialterm lines 303a:1001 --dtr off

Valid states: high, low, on, off, true, false, 1, 0

Signal meanings:
  CTS - Clear To Send (input)
  DSR - Data Set Ready (input)
  RI  - Ring Indicator (input)
  DCD - Data Carrier Detect (input)
  RTS - Request To Send (output)
  DTR - Data Terminal Ready (output)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rtsArg, _ := cmd.Flags().GetString("rts")
		dtrArg, _ := cmd.Flags().GetString("dtr")

		cfg, notices := loadConfig(os.Stderr)
		warn(notices)

		addr, err := identity.ParseAddress(args)
		if err != nil {
			return err
		}
		ignore, _ := cfg.IgnoreList()
		ports, err := session.SystemEnumerator{}.Ports()
		if err != nil {
			return fmt.Errorf("list ports: %w", err)
		}
		target, err := identity.Resolve(addr, ports, ignore)
		if err != nil {
			return err
		}

		var opts []serial.Option
		if rtsArg != "" {
			state, err := parseSignalState(rtsArg)
			if err != nil {
				return err
			}
			opts = append(opts, serial.WithInitialRTS(state))
		}
		if dtrArg != "" {
			state, err := parseSignalState(dtrArg)
			if err != nil {
				return err
			}
			opts = append(opts, serial.WithInitialDTR(state))
		}

		port, err := serial.Open(target.Path, opts...)
		if err != nil {
			return fmt.Errorf("opening port: %w", err)
		}
		defer port.Close()

		signals, err := port.GetModemSignals()
		if err != nil {
			return fmt.Errorf("reading modem signals: %w", err)
		}
		printSignals(os.Stdout, target.Path, signals)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linesCmd)

	linesCmd.Flags().String("rts", "", "Set RTS (Request To Send)")
	linesCmd.Flags().String("dtr", "", "Set DTR (Data Terminal Ready)")
}

func parseSignalState(state string) (bool, error) {
	switch strings.ToLower(state) {
	case "high", "on", "true", "1":
		return true, nil
	case "low", "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid state: %s (valid: high, low, on, off, true, false, 1, 0)", state)
	}
}

func formatSignalState(state bool) string {
	if state {
		return "HIGH"
	}
	return "LOW"
}

func printSignals(w io.Writer, path string, signals serial.ModemSignals) {
	fmt.Fprintf(w, "Modem Signals for %s:\n\n", path)
	fmt.Fprintf(w, "  CTS (Clear To Send):       %s\n", formatSignalState(signals.CTS))
	fmt.Fprintf(w, "  DSR (Data Set Ready):      %s\n", formatSignalState(signals.DSR))
	fmt.Fprintf(w, "  RI  (Ring Indicator):      %s\n", formatSignalState(signals.RI))
	fmt.Fprintf(w, "  DCD (Data Carrier Detect): %s\n", formatSignalState(signals.DCD))
	fmt.Fprintf(w, "  RTS (Request To Send):     %s\n", formatSignalState(signals.RTS))
	fmt.Fprintf(w, "  DTR (Data Terminal Ready): %s\n", formatSignalState(signals.DTR))
}
