// Package config loads the serialterm configuration through viper and turns
// it into the immutable snapshots the other packages consume.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	serial "github.com/allbin/serialterm"
	"github.com/allbin/serialterm/internal/colorrule"
	"github.com/allbin/serialterm/internal/decoder"
	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/session"
)

const (
	appName   = "serialterm"
	envPrefix = "SERIALTERM"
)

// Config is the complete configuration. It is a value; changing the file
// requires loading a new one.
type Config struct {
	Serial    SerialConfig    `mapstructure:"serial"`
	Defmt     DefmtConfig     `mapstructure:"defmt"`
	Colors    ColorsConfig    `mapstructure:"colors"`
	Ignore    IgnoreConfig    `mapstructure:"ignore"`
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
	Log       LogConfig       `mapstructure:"log"`
	Capture   CaptureConfig   `mapstructure:"capture"`
}

type SerialConfig struct {
	BaudRate    int    `mapstructure:"baud"`
	DataBits    int    `mapstructure:"data_bits"`
	StopBits    int    `mapstructure:"stop_bits"`
	Parity      string `mapstructure:"parity"`
	FlowControl string `mapstructure:"flow_control"`
	Exclusive   bool   `mapstructure:"exclusive"`
}

type DefmtConfig struct {
	Mode         string `mapstructure:"mode"`
	MaxFrameSize int    `mapstructure:"max_frame_size"`
}

type ColorsConfig struct {
	// RulesFile is a TOML file of [[regex]] and [[literal]] rules.
	RulesFile string `mapstructure:"rules_file"`
}

type IgnoreConfig struct {
	// USB entries are VID:PID or VID:PID:SERIAL in hex.
	USB      []string `mapstructure:"usb"`
	Names    []string `mapstructure:"names"`
	ShowTTYS bool     `mapstructure:"show_ttys"`
}

type ReconnectConfig struct {
	// Mode is strict, loose or disabled.
	Mode        string        `mapstructure:"mode"`
	Interval    time.Duration `mapstructure:"interval"`
	GiveUpAfter time.Duration `mapstructure:"give_up_after"`
}

type LogConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type CaptureConfig struct {
	// Dir receives capture files when no explicit path is given.
	Dir string `mapstructure:"dir"`
	// Format is text or json.
	Format string `mapstructure:"format"`
}

// Dir returns the configuration directory, $XDG_CONFIG_HOME/serialterm on
// Linux.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, appName)
}

// DefaultFile is the configuration file read when --config is not given.
func DefaultFile() string {
	return filepath.Join(Dir(), "config.toml")
}

func stateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", appName)
	}
	return "."
}

// SetDefaults registers every key with its default value. Keys unknown to
// viper are not picked up from the environment, so every key must be here.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("serial.baud", session.DefaultBaudRate)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.flow_control", "none")
	v.SetDefault("serial.exclusive", true)

	v.SetDefault("defmt.mode", decoder.Disabled.String())
	v.SetDefault("defmt.max_frame_size", 0)

	v.SetDefault("colors.rules_file", filepath.Join(Dir(), "color_rules.toml"))

	v.SetDefault("ignore.usb", []string{})
	v.SetDefault("ignore.names", []string{})
	v.SetDefault("ignore.show_ttys", false)

	v.SetDefault("reconnect.mode", identity.Strict.String())
	v.SetDefault("reconnect.interval", session.DefaultReconnectInterval)
	v.SetDefault("reconnect.give_up_after", time.Duration(0))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.enabled", true)
	v.SetDefault("log.file.path", filepath.Join(stateDir(), appName+".log"))
	v.SetDefault("log.file.max_size_mb", 10)
	v.SetDefault("log.file.max_backups", 3)
	v.SetDefault("log.file.max_age_days", 28)
	v.SetDefault("log.file.compress", false)

	v.SetDefault("capture.dir", ".")
	v.SetDefault("capture.format", "text")
}

// Setup prepares v to read file (or the default file when empty) and
// SERIALTERM_ environment variables such as SERIALTERM_SERIAL_BAUD.
func Setup(v *viper.Viper, file string) {
	SetDefaults(v)
	if file == "" {
		file = DefaultFile()
	}
	v.SetConfigFile(file)
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Read reads the configuration file into v. A missing file is not an error.
func Read(v *viper.Viper) error {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err == nil || errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
}

// Load returns the configuration snapshot held by v.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// DefmtMode returns the configured initial decoding mode.
func (c Config) DefmtMode() (decoder.Mode, error) {
	return decoder.ParseMode(c.Defmt.Mode)
}

// ReconnectMode returns the configured reconnect strictness.
func (c Config) ReconnectMode() (identity.Strictness, error) {
	var s identity.Strictness
	err := s.Set(c.Reconnect.Mode)
	return s, err
}

// IgnoreList returns the ignore rules. Malformed entries are left out and
// reported; the list is usable either way.
func (c Config) IgnoreList() (identity.IgnoreList, error) {
	l, err := identity.ParseIgnoreList(c.Ignore.USB, c.Ignore.Names, c.Ignore.ShowTTYS)
	if err != nil {
		return l, fmt.Errorf("ignore list: %w", err)
	}
	return l, nil
}

// ColorRules loads and compiles the color rule file. Broken rules are left
// out and reported; the engine is usable either way.
func (c Config) ColorRules() (*colorrule.Engine, error) {
	if c.Colors.RulesFile == "" {
		return nil, nil
	}
	rules, loadErr := colorrule.LoadFile(c.Colors.RulesFile)
	engine, errs := colorrule.Compile(rules)
	return engine, errors.Join(append([]error{loadErr}, errs...)...)
}

// SerialOptions returns the port options for the serial section. Invalid
// settings are left out and reported.
func (c Config) SerialOptions() ([]serial.Option, error) {
	var errs []error
	candidates := []serial.Option{
		serial.WithDataBits(c.Serial.DataBits),
		serial.WithStopBits(c.Serial.StopBits),
		serial.WithExclusive(c.Serial.Exclusive),
	}
	if p, err := serial.ParseParity(c.Serial.Parity); err != nil {
		errs = append(errs, err)
	} else {
		candidates = append(candidates, serial.WithParity(p))
	}
	if fc, err := serial.ParseFlowControl(c.Serial.FlowControl); err != nil {
		errs = append(errs, err)
	} else {
		candidates = append(candidates, serial.WithFlowControl(fc))
	}

	scratch := serial.DefaultConfig()
	opts := make([]serial.Option, 0, len(candidates))
	for _, opt := range candidates {
		if err := opt(&scratch); err != nil {
			errs = append(errs, err)
			continue
		}
		opts = append(opts, opt)
	}
	return opts, errors.Join(errs...)
}

// SessionOptions builds the per-session snapshot. Invalid settings fall
// back to their defaults and are reported together; the returned options
// are always usable.
func (c Config) SessionOptions() (session.Options, error) {
	var errs []error

	mode, err := c.DefmtMode()
	if err != nil {
		errs = append(errs, err)
	}
	strictness, err := c.ReconnectMode()
	if err != nil {
		errs = append(errs, err)
	}
	ignore, err := c.IgnoreList()
	if err != nil {
		errs = append(errs, err)
	}
	rules, err := c.ColorRules()
	if err != nil {
		errs = append(errs, err)
	}

	return session.Options{
		BaudRate:          c.Serial.BaudRate,
		Mode:              mode,
		Rules:             rules,
		Ignore:            ignore,
		Reconnect:         strictness,
		ReconnectInterval: c.Reconnect.Interval,
		GiveUpAfter:       c.Reconnect.GiveUpAfter,
		MaxFrameSize:      c.Defmt.MaxFrameSize,
	}, errors.Join(errs...)
}
