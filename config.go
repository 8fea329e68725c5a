package serial

import (
	"fmt"
	"strings"
	"time"
)

// WriteMode represents the write synchronization mode
type WriteMode int

const (
	WriteModeBuffered WriteMode = iota // Default: kernel buffers writes
	WriteModeSynced                    // O_SYNC: writes block until hardware transmission
)

// maxReadTimeout is the largest VTIME value, 255 tenths of a second.
const maxReadTimeout = 255 * 100 * time.Millisecond

// Config holds the configuration for a serial port
type Config struct {
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      Parity
	FlowControl FlowControl

	// ReadTimeout bounds how long a Read waits for the first byte (VTIME).
	// Zero makes reads non-blocking.
	ReadTimeout time.Duration
	WriteMode   WriteMode

	// InitialRTS and InitialDTR, when set, are applied right after open.
	InitialRTS *bool
	InitialDTR *bool

	// Exclusive sets TIOCEXCL so other processes cannot open the port.
	Exclusive bool
}

// Option is a functional option for configuring a serial port
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		BaudRate:    115200,
		DataBits:    8,
		StopBits:    1,
		Parity:      ParityNone,
		FlowControl: FlowControlNone,
		ReadTimeout: 100 * time.Millisecond,
		WriteMode:   WriteModeBuffered,
		Exclusive:   true,
	}
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(c *Config) error {
		if _, err := getBaudRate(rate); err != nil {
			return fmt.Errorf("%w: %d", err, rate)
		}
		c.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(c *Config) error {
		if bits < 5 || bits > 8 {
			return fmt.Errorf("%w: %d data bits", ErrInvalidConfig, bits)
		}
		c.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits (1 or 2)
func WithStopBits(bits int) Option {
	return func(c *Config) error {
		if bits != 1 && bits != 2 {
			return fmt.Errorf("%w: %d stop bits", ErrInvalidConfig, bits)
		}
		c.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(c *Config) error {
		if parity < ParityNone || parity > ParitySpace {
			return fmt.Errorf("%w: parity %d", ErrInvalidConfig, parity)
		}
		c.Parity = parity
		return nil
	}
}

// WithFlowControl sets the flow control mode
func WithFlowControl(fc FlowControl) Option {
	return func(c *Config) error {
		if fc < FlowControlNone || fc > FlowControlXONXOFF {
			return fmt.Errorf("%w: flow control %d", ErrInvalidConfig, fc)
		}
		c.FlowControl = fc
		return nil
	}
}

// WithReadTimeout sets how long a read waits for data. The termios timer has
// a resolution of 100ms and a maximum of 25.5s.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout < 0 || timeout > maxReadTimeout || timeout%(100*time.Millisecond) != 0 {
			return fmt.Errorf("%w: read timeout %v", ErrInvalidConfig, timeout)
		}
		c.ReadTimeout = timeout
		return nil
	}
}

// WithWriteMode sets the write synchronization mode
func WithWriteMode(mode WriteMode) Option {
	return func(c *Config) error {
		c.WriteMode = mode
		return nil
	}
}

// WithSyncWrite enables synchronous writes (O_SYNC) for guaranteed transmission
func WithSyncWrite() Option {
	return WithWriteMode(WriteModeSynced)
}

// WithInitialRTS sets the RTS line right after the port is opened
func WithInitialRTS(state bool) Option {
	return func(c *Config) error {
		c.InitialRTS = &state
		return nil
	}
}

// WithInitialDTR sets the DTR line right after the port is opened
func WithInitialDTR(state bool) Option {
	return func(c *Config) error {
		c.InitialDTR = &state
		return nil
	}
}

// WithExclusive controls whether the port is opened for exclusive use
func WithExclusive(exclusive bool) Option {
	return func(c *Config) error {
		c.Exclusive = exclusive
		return nil
	}
}

// ParseParity parses "none", "odd", "even", "mark" or "space".
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "n":
		return ParityNone, nil
	case "odd", "o":
		return ParityOdd, nil
	case "even", "e":
		return ParityEven, nil
	case "mark", "m":
		return ParityMark, nil
	case "space", "s":
		return ParitySpace, nil
	}
	return ParityNone, fmt.Errorf("%w: parity %q", ErrInvalidConfig, s)
}

// ParseFlowControl parses "none", "hardware" (rts/cts) or "software" (xon/xoff).
func ParseFlowControl(s string) (FlowControl, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FlowControlNone, nil
	case "hardware", "rtscts", "rts/cts":
		return FlowControlRTSCTS, nil
	case "software", "xonxoff", "xon/xoff":
		return FlowControlXONXOFF, nil
	}
	return FlowControlNone, fmt.Errorf("%w: flow control %q", ErrInvalidConfig, s)
}
