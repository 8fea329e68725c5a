package serial

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Port represents a serial port connection interface
type Port interface {
	Close() error
	Read(buf []byte) (int, error)
	Write(data []byte) (int, error)
	WriteContext(ctx context.Context, data []byte) (int, error)
	ReadContext(ctx context.Context, buf []byte) (int, error)
	Drain() error
	FlushInput() error
	FlushOutput() error

	// Path returns the device path the port was opened with.
	Path() string

	// Modem line control
	GetModemSignals() (ModemSignals, error)
	SetRTS(state bool) error
	SetDTR(state bool) error
}

// port is the concrete implementation of the Port interface
type port struct {
	mu     sync.RWMutex
	fd     int
	path   string
	config Config
	closed bool
}

// Ensure port implements Port interface at compile time
var _ Port = (*port)(nil)

// FlowControl represents the flow control mode
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlRTSCTS
	FlowControlXONXOFF
)

func (f FlowControl) String() string {
	switch f {
	case FlowControlRTSCTS:
		return "hardware"
	case FlowControlXONXOFF:
		return "software"
	default:
		return "none"
	}
}

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	case ParityMark:
		return "mark"
	case ParitySpace:
		return "space"
	default:
		return "none"
	}
}

// ModemSignals represents modem control signal states
type ModemSignals struct {
	CTS bool // Clear To Send
	DSR bool // Data Set Ready
	RI  bool // Ring Indicator
	DCD bool // Data Carrier Detect
	RTS bool // Request To Send
	DTR bool // Data Terminal Ready
}

func modemSignalsFromStatus(status int) ModemSignals {
	return ModemSignals{
		CTS: status&unix.TIOCM_CTS != 0,
		DSR: status&unix.TIOCM_DSR != 0,
		RI:  status&unix.TIOCM_RI != 0,
		DCD: status&unix.TIOCM_CAR != 0,
		RTS: status&unix.TIOCM_RTS != 0,
		DTR: status&unix.TIOCM_DTR != 0,
	}
}

// getBaudRate converts an integer baud rate to the unix constant
func getBaudRate(rate int) (uint32, error) {
	switch rate {
	case 50:
		return unix.B50, nil
	case 75:
		return unix.B75, nil
	case 110:
		return unix.B110, nil
	case 134:
		return unix.B134, nil
	case 150:
		return unix.B150, nil
	case 200:
		return unix.B200, nil
	case 300:
		return unix.B300, nil
	case 600:
		return unix.B600, nil
	case 1200:
		return unix.B1200, nil
	case 1800:
		return unix.B1800, nil
	case 2400:
		return unix.B2400, nil
	case 4800:
		return unix.B4800, nil
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 500000:
		return unix.B500000, nil
	case 576000:
		return unix.B576000, nil
	case 921600:
		return unix.B921600, nil
	case 1000000:
		return unix.B1000000, nil
	case 1152000:
		return unix.B1152000, nil
	case 1500000:
		return unix.B1500000, nil
	case 2000000:
		return unix.B2000000, nil
	case 2500000:
		return unix.B2500000, nil
	case 3000000:
		return unix.B3000000, nil
	case 3500000:
		return unix.B3500000, nil
	case 4000000:
		return unix.B4000000, nil
	default:
		return 0, ErrInvalidBaudRate
	}
}

// getModemStatus retrieves modem control signals using unix package
func getModemStatus(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCMGET)
}

// setModemLine raises or lowers one TIOCM line
func setModemLine(fd int, line int, state bool) error {
	if state {
		return unix.IoctlSetPointerInt(fd, unix.TIOCMBIS, line)
	}
	return unix.IoctlSetPointerInt(fd, unix.TIOCMBIC, line)
}

// classifyOpenError maps errno values from open(2) to package errors
func classifyOpenError(device string, err error) error {
	switch {
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return fmt.Errorf("open %s: %w", device, ErrDeviceNotFound)
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return fmt.Errorf("open %s: %w", device, ErrPermissionDenied)
	case errors.Is(err, unix.EBUSY):
		return fmt.Errorf("open %s: %w", device, ErrDeviceInUse)
	case errors.Is(err, unix.ENOTTY):
		return fmt.Errorf("open %s: %w", device, ErrNotATerminal)
	default:
		return fmt.Errorf("open %s: %w", device, err)
	}
}

// classifyIOError maps errno values from read(2)/write(2) to package errors
func classifyIOError(err error) error {
	switch {
	case errors.Is(err, unix.EIO), errors.Is(err, unix.ENXIO), errors.Is(err, unix.ENODEV):
		return fmt.Errorf("%w: %w", ErrDeviceGone, err)
	case errors.Is(err, unix.EBADF):
		return ErrPortClosed
	default:
		return err
	}
}

// Open opens a serial port with the given device path and options
func Open(device string, opts ...Option) (Port, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&config); err != nil {
			return nil, err
		}
	}

	flags := unix.O_RDWR | unix.O_NOCTTY | unix.O_CLOEXEC
	if config.WriteMode == WriteModeSynced {
		flags |= unix.O_SYNC
	}

	fd, err := unix.Open(device, flags, 0)
	if err != nil {
		return nil, classifyOpenError(device, err)
	}

	if config.Exclusive {
		if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
			unix.Close(fd)
			return nil, classifyOpenError(device, err)
		}
	}

	if err := configurePort(fd, config); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("configure %s: %w", device, err)
	}

	if config.InitialRTS != nil {
		if err := setModemLine(fd, unix.TIOCM_RTS, *config.InitialRTS); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to set initial RTS: %w", err)
		}
	}
	if config.InitialDTR != nil {
		if err := setModemLine(fd, unix.TIOCM_DTR, *config.InitialDTR); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to set initial DTR: %w", err)
		}
	}

	return &port{
		fd:     fd,
		path:   device,
		config: config,
	}, nil
}

// configurePort puts the line into raw mode with the configured framing
func configurePort(fd int, config Config) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		if errors.Is(err, unix.ENOTTY) {
			return ErrNotATerminal
		}
		return fmt.Errorf("failed to get termios: %w", err)
	}

	termios.Cflag = unix.CREAD | unix.CLOCAL
	termios.Iflag = 0
	termios.Oflag = 0
	termios.Lflag = 0

	// Reads return after the first byte or once VTIME expires.
	termios.Cc[unix.VMIN] = 0
	termios.Cc[unix.VTIME] = uint8(config.ReadTimeout.Milliseconds() / 100)

	baudRate, err := getBaudRate(config.BaudRate)
	if err != nil {
		return err
	}
	termios.Cflag = (termios.Cflag &^ unix.CBAUD) | baudRate
	termios.Ispeed = baudRate
	termios.Ospeed = baudRate

	switch config.DataBits {
	case 5:
		termios.Cflag |= unix.CS5
	case 6:
		termios.Cflag |= unix.CS6
	case 7:
		termios.Cflag |= unix.CS7
	default:
		termios.Cflag |= unix.CS8
	}

	if config.StopBits == 2 {
		termios.Cflag |= unix.CSTOPB
	}

	switch config.Parity {
	case ParityOdd:
		termios.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		termios.Cflag |= unix.PARENB
	case ParityMark:
		termios.Cflag |= unix.PARENB | unix.PARODD | unix.CMSPAR
	case ParitySpace:
		termios.Cflag |= unix.PARENB | unix.CMSPAR
	}

	switch config.FlowControl {
	case FlowControlRTSCTS:
		termios.Cflag |= unix.CRTSCTS
	case FlowControlXONXOFF:
		termios.Iflag |= unix.IXON | unix.IXOFF
	}

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}
	return nil
}

// Path returns the device path
func (p *port) Path() string {
	return p.path
}

// Close closes the serial port. It waits for an in-flight Read, which
// returns within the configured read timeout.
func (p *port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	p.closed = true
	return unix.Close(p.fd)
}

// Read reads data from the serial port. It returns (0, nil) when the read
// timeout expires without data and ErrDeviceGone once the device hangs up.
func (p *port) Read(buf []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	for {
		n, err := unix.Read(p.fd, buf)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, classifyIOError(err)
		}
		if n == 0 && len(buf) > 0 && p.hungUp() {
			return 0, ErrDeviceGone
		}
		return n, nil
	}
}

// hungUp reports whether the tty signalled a hangup. A hung up tty returns
// zero-length reads forever, which look like timeouts otherwise.
func (p *port) hungUp() bool {
	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	if err != nil || n == 0 {
		return false
	}
	return fds[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0
}

// Write writes all of data to the serial port
func (p *port) Write(data []byte) (int, error) {
	return p.WriteContext(context.Background(), data)
}

// WriteContext writes data, checking ctx between partial writes
func (p *port) WriteContext(ctx context.Context, data []byte) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrPortClosed
	}

	written := 0
	for written < len(data) {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := unix.Write(p.fd, data[written:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return written, classifyIOError(err)
		}
		written += n
	}
	return written, nil
}

// ReadContext reads until data arrives, the device fails or ctx is done.
// Each underlying read is bounded by the read timeout, so cancellation is
// noticed within one timeout period.
func (p *port) ReadContext(ctx context.Context, buf []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := p.Read(buf)
		if n > 0 || err != nil {
			return n, err
		}
		if p.config.ReadTimeout == 0 {
			// Non-blocking reads would spin; let the caller poll.
			return 0, nil
		}
	}
}

// GetModemSignals returns current state of all modem control signals
func (p *port) GetModemSignals() (ModemSignals, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ModemSignals{}, ErrPortClosed
	}

	status, err := getModemStatus(p.fd)
	if err != nil {
		return ModemSignals{}, err
	}
	return modemSignalsFromStatus(status), nil
}

// SetRTS sets the RTS line
func (p *port) SetRTS(state bool) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}
	return setModemLine(p.fd, unix.TIOCM_RTS, state)
}

// SetDTR sets the DTR line
func (p *port) SetDTR(state bool) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}
	return setModemLine(p.fd, unix.TIOCM_DTR, state)
}

// Drain waits until all output written to the port has been transmitted
func (p *port) Drain() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}
	return unix.IoctlSetInt(p.fd, unix.TCSBRK, 1)
}

// FlushInput discards any unread input data
func (p *port) FlushInput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}
	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCIFLUSH)
}

// FlushOutput discards any unwritten output data
func (p *port) FlushOutput() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPortClosed
	}
	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCOFLUSH)
}
