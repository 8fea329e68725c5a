// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/allbin/serialterm/internal/config"
)

// Manager owns the logger configuration and the rotating log file.
type Manager struct {
	mu     sync.RWMutex
	logger *slog.Logger
	file   *lumberjack.Logger
}

func NewManager() *Manager {
	m := &Manager{}
	m.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return m
}

// Configure replaces the logger. console receives log lines in addition to
// the log file; pass nil while a full screen UI owns the terminal.
func (m *Manager) Configure(cfg config.LogConfig, console io.Writer) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file != nil {
		_ = m.file.Close()
		m.file = nil
	}

	var writers []io.Writer
	if console != nil {
		writers = append(writers, console)
	}
	if cfg.File.Enabled {
		w, err := createFileWriter(cfg.File)
		if err != nil {
			return fmt.Errorf("failed to create file output: %w", err)
		}
		m.file = w
		writers = append(writers, w)
	}

	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = io.MultiWriter(writers...)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text", "":
		handler = slog.NewTextHandler(out, opts)
	default:
		return fmt.Errorf("unsupported log format: %s (must be json or text)", cfg.Format)
	}

	m.logger = slog.New(handler)
	slog.SetDefault(m.logger)
	return nil
}

// Logger returns the logger tagged with a component name.
func (m *Manager) Logger(component string) *slog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logger.With("component", component)
}

// Close closes the log file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}

func parseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level: %s", levelStr)
	}
}

func createFileWriter(fc config.FileConfig) (*lumberjack.Logger, error) {
	if fc.Path == "" {
		return nil, fmt.Errorf("file output requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(fc.Path), 0o755); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.MaxSizeMB,
		MaxBackups: fc.MaxBackups,
		MaxAge:     fc.MaxAgeDays,
		Compress:   fc.Compress,
	}, nil
}
