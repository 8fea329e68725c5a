/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/allbin/serialterm/internal/sink"
	"github.com/allbin/serialterm/internal/stream"
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture [port | VID:PID[:SERIAL]] [baud]",
	Short: "Capture a serial session to a file",
	Long: `Capture the output of a serial device to a file.

Text is written with ANSI sequences removed and color rules applied as
censoring only. Decoded defmt frames and frame errors are written as hex
records, connection changes as timestamped markers. The json format writes
one record per event.

The capture follows the device across unplug and replug and runs until
interrupted (Ctrl+C), or until the device is gone for good. The output file
is opened in append mode.

Example usage:
  serialterm capture /dev/ttyUSB0 -o data.log
  serialterm capture 303a:1001 --defmt-mode framed-rzcobs --format json
  serialterm capture /dev/ttyACM0 115200 --console`,
	Args: cobra.MaximumNArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd.Flags(), sessionFlagKeys); err != nil {
			return err
		}
		return bindFlags(cmd.Flags(), captureFlagKeys)
	},
	RunE: runCapture,
}

var captureFlagKeys = map[string]string{
	"format": "capture.format",
	"dir":    "capture.dir",
}

func init() {
	rootCmd.AddCommand(captureCmd)

	addSessionFlags(captureCmd.Flags())
	captureCmd.Flags().StringP("output", "o", "", "Output file (default: a timestamped file in the capture directory)")
	captureCmd.Flags().String("format", "text", "Output format: text, json")
	captureCmd.Flags().String("dir", ".", "Capture directory")
	captureCmd.Flags().BoolP("console", "c", false, "Display incoming data on console while capturing")
}

// capturePath returns the output file for a capture started at now.
func capturePath(output, dir string, format sink.Format, now time.Time) string {
	if output != "" {
		return output
	}
	ext := ".log"
	if format == sink.JSON {
		ext = ".jsonl"
	}
	return filepath.Join(dir, "capture-"+now.Format("20060102-150405")+ext)
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, notices := loadConfig(os.Stderr)
	warn(notices)

	format, err := sink.ParseFormat(cfg.Capture.Format)
	if err != nil {
		return err
	}

	mgr, opts, notices := newSession(cfg)
	warn(notices)
	defer mgr.Close()

	addr, err := resolveAddress(args, opts.Ignore)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	showConsole, _ := cmd.Flags().GetBool("console")
	outputPath := capturePath(output, cfg.Capture.Dir, format, time.Now())

	file, err := sink.OpenFile(outputPath)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer file.Close()
	capture := sink.New(file, format)

	var console *sink.Capture
	if showConsole {
		console = sink.New(os.Stdout, sink.Text)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Capturing %s to %s (%s)\n", addr, outputPath, format)
	fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop\n\n")

	// The capture drains the session; closing the session ends it.
	var ended error
	forward := make(chan stream.Event, cap(mgr.Events()))
	go func() {
		defer close(forward)
		for ev := range mgr.Events() {
			if console != nil {
				if err := console.Write(ev); err == nil {
					_ = console.Flush()
				}
			}
			if st, ok := ev.(stream.ConnectionStatus); ok {
				if console == nil {
					fmt.Fprintf(os.Stderr, "%s\n", st.Status)
				}
				if st.Status.State == stream.Disconnected {
					ended = st.Status.Err
					go mgr.Close()
				}
			}
			forward <- ev
		}
	}()
	go func() {
		<-ctx.Done()
		_ = mgr.Close()
	}()

	go func() {
		_ = mgr.Connect(ctx, addr)
	}()

	startTime := time.Now()
	if err := capture.Run(context.Background(), forward); err != nil {
		_ = mgr.Close()
		for range forward {
		}
		return fmt.Errorf("write error: %w", err)
	}

	text, frames, frameErrors := capture.Stats()
	fmt.Fprintf(os.Stderr, "\nCapture complete: %d text bytes, %d frames, %d frame errors in %v\n",
		text, frames, frameErrors, time.Since(startTime).Round(time.Millisecond))
	return ended
}
