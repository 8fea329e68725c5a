/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/allbin/serialterm/internal/config"
	"github.com/allbin/serialterm/internal/logging"
)

var (
	cfgFile string

	v    = viper.New()
	logs = logging.NewManager()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "serialterm",
	Short: "Interactive serial terminal with defmt decoding",
	Long: `serialterm is a terminal for serial devices.

It follows a device across unplug and replug, highlights output with
configurable color rules and decodes defmt frames sent as raw or rzCOBS
encoded data, optionally mixed with plain text as esp-println does.

Configuration is read from ` + config.DefaultFile() + `
and from SERIALTERM_* environment variables (SERIALTERM_SERIAL_BAUD=9600).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	err := rootCmd.Execute()
	_ = logs.Close()
	if err != nil {
		if !errors.Is(err, errCancelled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default "+config.DefaultFile()+")")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
}

func initConfig() {
	config.Setup(v, cfgFile)
	if err := config.Read(v); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

// bindFlags binds the named flags of fs to configuration keys. Commands
// share keys, so binding happens when a command runs rather than in init.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// loadConfig returns the configuration snapshot and sets up logging. Log
// records go to console (nil for the log file only) and to the log file
// when enabled. Problems are returned as notices; the configuration is
// usable either way.
func loadConfig(console io.Writer) (config.Config, []string) {
	var notices []string

	cfg, err := config.Load(v)
	if err != nil {
		notices = append(notices, err.Error())
	}
	if err := logs.Configure(cfg.Log, console); err != nil {
		notices = append(notices, fmt.Sprintf("logging: %v", err))
		_ = logs.Configure(config.LogConfig{}, console)
	}
	return cfg, notices
}

func warn(notices []string) {
	for _, n := range notices {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", n)
	}
}
