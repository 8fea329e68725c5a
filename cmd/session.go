/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/allbin/serialterm/internal/config"
	"github.com/allbin/serialterm/internal/decoder"
	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/session"
	"github.com/allbin/serialterm/internal/tui/components"
)

// errCancelled is returned when the user backs out of the port picker.
var errCancelled = errors.New("cancelled")

// sessionFlagKeys maps the flags shared by the session commands to their
// configuration keys.
var sessionFlagKeys = map[string]string{
	"baud":         "serial.baud",
	"flow-control": "serial.flow_control",
	"defmt-mode":   "defmt.mode",
	"reconnect":    "reconnect.mode",
	"color-rules":  "colors.rules_file",
}

func addSessionFlags(fs *pflag.FlagSet) {
	fs.IntP("baud", "b", session.DefaultBaudRate, "Baud rate when the address does not name one")
	fs.StringP("flow-control", "f", "none", "Flow control: none, cts, rtscts")
	mode := decoder.Disabled
	fs.VarP(&mode, "defmt-mode", "m", "defmt decoding: disabled, raw, unframed-rzcobs, framed-rzcobs")
	strictness := identity.Strict
	fs.Var(&strictness, "reconnect", "Reconnect matching: strict, loose, disabled")
	fs.String("color-rules", "", "Color rules file")
}

// newSession builds a session manager from the configuration. Settings
// that could not be applied are returned as notices.
func newSession(cfg config.Config) (*session.Manager, session.Options, []string) {
	var notices []string

	opts, err := cfg.SessionOptions()
	if err != nil {
		notices = append(notices, err.Error())
	}
	serialOpts, err := cfg.SerialOptions()
	if err != nil {
		notices = append(notices, err.Error())
	}

	m := session.New(opts, session.SystemOpener{Options: serialOpts}, session.SystemEnumerator{}, nil)
	return m, opts, notices
}

// resolveAddress parses the positional arguments. Without arguments the
// user picks one of the ports that are not ignored.
func resolveAddress(args []string, ignore identity.IgnoreList) (identity.Address, error) {
	if len(args) > 0 {
		return identity.ParseAddress(args)
	}

	ports, err := session.SystemEnumerator{}.Ports()
	if err != nil {
		return identity.Address{}, fmt.Errorf("list ports: %w", err)
	}
	ports = ignore.Filter(ports)
	if len(ports) == 0 {
		return identity.Address{}, fmt.Errorf("no serial ports found")
	}

	chosen, err := components.PickPort(ports)
	if err != nil {
		return identity.Address{}, err
	}
	if chosen == nil {
		return identity.Address{}, errCancelled
	}
	return identity.Address{Path: chosen.Path}, nil
}
