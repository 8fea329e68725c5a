// Package session owns the connection to one serial device: opening it,
// reading and decoding its byte stream, writing to it, and finding it again
// after it disappears.
//
// A Manager is the single owner of the connection state. Other components
// observe it through Status snapshots and the Events channel and request
// transitions through Connect and Disconnect.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/allbin/serialterm/internal/colorrule"
	"github.com/allbin/serialterm/internal/decoder"
	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/stream"
)

const (
	DefaultReconnectInterval = time.Second
	DefaultBaudRate          = 115200
	defaultReadBufferSize    = 4096
)

// Conn is an open port. Read must return within a bounded time, either with
// data, with (0, nil) after a timeout, or with an error once the port fails
// or is closed.
type Conn interface {
	io.ReadWriteCloser
}

// contextWriter is implemented by ports that can abandon a write.
type contextWriter interface {
	WriteContext(ctx context.Context, p []byte) (int, error)
}

// modemLines is implemented by ports with RTS and DTR control.
type modemLines interface {
	SetRTS(state bool) error
	SetDTR(state bool) error
}

// Opener opens the port described by an identity at its BaudRate.
type Opener interface {
	Open(p identity.PortIdentity) (Conn, error)
}

// Enumerator lists the ports currently present.
type Enumerator interface {
	Ports() ([]identity.PortIdentity, error)
}

// Options is the per-session configuration snapshot.
type Options struct {
	// BaudRate is used when the address does not name one.
	BaudRate int
	Mode     decoder.Mode
	Rules    *colorrule.Engine
	Ignore   identity.IgnoreList

	// Reconnect selects how a lost device is matched again. Disabled turns
	// reconnection off and a lost device ends the session.
	Reconnect         identity.Strictness
	ReconnectInterval time.Duration
	// GiveUpAfter ends reconnection attempts after this long. Zero retries
	// until Disconnect.
	GiveUpAfter time.Duration

	MaxFrameSize   int
	ReadBufferSize int
}

func (o Options) withDefaults() Options {
	if o.BaudRate <= 0 {
		o.BaudRate = DefaultBaudRate
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = DefaultReconnectInterval
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = defaultReadBufferSize
	}
	return o
}

type lineState struct {
	rts, dtr *bool
}

// Manager drives one connection through Disconnected, Connecting, Connected
// and Reconnecting. All methods are safe for concurrent use.
type Manager struct {
	opts   Options
	opener Opener
	enum   Enumerator
	logger *slog.Logger

	queue  *queue
	events chan stream.Event

	writeMu sync.Mutex

	mu      sync.Mutex
	status  stream.Status
	gen     uint64
	conn    Conn
	cancel  context.CancelFunc
	dec     *decoder.Decoder
	lines   lineState
	symbols any
	closed  bool
}

// New returns a Disconnected manager. The caller must drain Events until it
// is closed by Close.
func New(opts Options, opener Opener, enum Enumerator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	var decOpts []decoder.Option
	if opts.MaxFrameSize > 0 {
		decOpts = append(decOpts, decoder.WithMaxFrameSize(opts.MaxFrameSize))
	}

	m := &Manager{
		opts:   opts,
		opener: opener,
		enum:   enum,
		logger: logger.With("component", "session"),
		queue:  newQueue(),
		events: make(chan stream.Event, 256),
		status: stream.Status{State: stream.Disconnected},
		dec:    decoder.New(opts.Mode, opts.Rules, decOpts...),
	}
	go m.queue.run(m.events)
	return m
}

// Events returns the ordered event stream of the session.
func (m *Manager) Events() <-chan stream.Event {
	return m.events
}

// Status returns the current connection snapshot.
func (m *Manager) Status() stream.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connect resolves addr against the enumerated ports and opens the result.
// Any current connection or pending reconnect is dropped first and reported
// as Disconnected before the new attempt starts. Open
// failures leave the session Disconnected and are not retried.
func (m *Manager) Connect(ctx context.Context, addr identity.Address) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	old := m.stopLocked()
	gen := m.gen
	if m.status.State != stream.Disconnected {
		m.setStatusLocked(stream.Status{State: stream.Disconnected, Port: m.status.Port})
	}
	m.setStatusLocked(stream.Status{State: stream.Connecting, Port: addr.Target()})
	m.mu.Unlock()
	closeConn(old)

	ports, err := m.enum.Ports()
	if err != nil {
		err = fmt.Errorf("enumerate ports: %w", err)
		m.fail(gen, addr.Target(), err)
		return err
	}
	target, err := identity.Resolve(addr, ports, m.opts.Ignore)
	if err != nil {
		m.fail(gen, addr.Target(), err)
		return err
	}
	if target.BaudRate <= 0 {
		target.BaudRate = m.opts.BaudRate
	}
	if err := ctx.Err(); err != nil {
		m.fail(gen, target, err)
		return err
	}

	m.logger.Info("opening port", "port", target.Path, "baud", target.BaudRate)
	conn, err := m.opener.Open(target)
	if err != nil {
		err = fmt.Errorf("open %s: %w", target.Path, err)
		m.fail(gen, target, err)
		return err
	}

	if !m.attach(gen, conn, target, identity.NoMatch) {
		closeConn(conn)
		return ErrSuperseded
	}
	return nil
}

// Disconnect closes the port and cancels any reconnect in progress. It
// always succeeds.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	old := m.stopLocked()
	if m.status.State != stream.Disconnected {
		m.setStatusLocked(stream.Status{State: stream.Disconnected, Port: m.status.Port})
	}
	m.mu.Unlock()
	closeConn(old)
}

// Close disconnects and closes the Events channel once the queued events
// have been delivered.
func (m *Manager) Close() error {
	m.Disconnect()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.queue.close()
	return nil
}

// Write sends p to the device. It fails with ErrNotConnected unless the
// session is Connected. A transport error moves the session to Reconnecting.
func (m *Manager) Write(ctx context.Context, p []byte) (int, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	conn, gen, state := m.conn, m.gen, m.status.State
	m.mu.Unlock()
	if state != stream.Connected || conn == nil {
		return 0, ErrNotConnected
	}

	var (
		n   int
		err error
	)
	if cw, ok := conn.(contextWriter); ok {
		n, err = cw.WriteContext(ctx, p)
	} else {
		n, err = conn.Write(p)
	}
	if err != nil {
		if ctx.Err() != nil {
			return n, err
		}
		m.lost(gen, fmt.Errorf("write: %w", err))
		return n, fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	return n, nil
}

// SetRTS sets the RTS line and keeps it set across reconnects.
func (m *Manager) SetRTS(state bool) error {
	return m.setLine(func(l *lineState) { l.rts = &state }, func(c modemLines) error { return c.SetRTS(state) })
}

// SetDTR sets the DTR line and keeps it set across reconnects.
func (m *Manager) SetDTR(state bool) error {
	return m.setLine(func(l *lineState) { l.dtr = &state }, func(c modemLines) error { return c.SetDTR(state) })
}

func (m *Manager) setLine(record func(*lineState), apply func(modemLines) error) error {
	m.mu.Lock()
	record(&m.lines)
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	ml, ok := conn.(modemLines)
	if !ok {
		return nil
	}
	return apply(ml)
}

// Mode returns the active decoding mode.
func (m *Manager) Mode() decoder.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dec.Mode()
}

// SetDefmtMode switches the decoding mode. Partially decoded state is
// discarded; events already emitted are unaffected.
func (m *Manager) SetDefmtMode(mode decoder.Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dec.Mode() == mode {
		return
	}
	m.dec.SetMode(mode)
	m.logger.Info("defmt mode changed", "mode", mode)
}

// FrameChecker is implemented by symbol information that can tell whether a
// frame came from the flashed firmware.
type FrameChecker interface {
	CheckFrame(payload []byte) error
}

// HandOff is called after the device was flashed. It switches to mode and
// stores symbols for whoever renders decoded frames. If symbols is a
// FrameChecker, every frame is checked against it; a failed check in Raw
// mode stops frame decoding.
func (m *Manager) HandOff(mode decoder.Mode, symbols any) {
	m.mu.Lock()
	m.symbols = symbols
	if fc, ok := symbols.(FrameChecker); ok {
		m.dec.SetFrameCheck(fc.CheckFrame)
	} else {
		m.dec.SetFrameCheck(nil)
	}
	m.mu.Unlock()
	m.SetDefmtMode(mode)
}

// Symbols returns what the last HandOff stored.
func (m *Manager) Symbols() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.symbols
}

// stopLocked invalidates every goroutine of the current generation and
// returns the port for the caller to close outside the lock.
func (m *Manager) stopLocked() Conn {
	m.gen++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	conn := m.conn
	m.conn = nil
	return conn
}

func (m *Manager) setStatusLocked(st stream.Status) {
	m.status = st
	m.queue.push(stream.ConnectionStatus{Status: st})
	m.logger.Debug("state changed", "state", st.State, "port", st.Port.Path)
}

// fail ends a connection attempt.
func (m *Manager) fail(gen uint64, target identity.PortIdentity, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.logger.Warn("connect failed", "port", target.Path, "error", err)
	m.setStatusLocked(stream.Status{State: stream.Disconnected, Port: target, Err: err})
}

// attach installs an open port and starts its reader. It reports false if
// gen is no longer current.
func (m *Manager) attach(gen uint64, conn Conn, port identity.PortIdentity, kind identity.MatchKind) bool {
	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel = cancel
	m.conn = conn
	m.setStatusLocked(stream.Status{State: stream.Connected, Port: port, Match: kind})
	lines := m.lines
	m.mu.Unlock()

	if kind == identity.NoMatch {
		m.logger.Info("connected", "port", port.Path)
	} else {
		m.logger.Info("reconnected", "port", port.Path, "match", kind)
	}
	restoreLines(conn, lines, m.logger)
	go m.read(ctx, gen, conn)
	return true
}

func restoreLines(conn Conn, lines lineState, logger *slog.Logger) {
	ml, ok := conn.(modemLines)
	if !ok {
		return
	}
	if lines.rts != nil {
		if err := ml.SetRTS(*lines.rts); err != nil {
			logger.Warn("restore RTS failed", "error", err)
		}
	}
	if lines.dtr != nil {
		if err := ml.SetDTR(*lines.dtr); err != nil {
			logger.Warn("restore DTR failed", "error", err)
		}
	}
}

// read is the only reader of conn. Decoding happens here, in arrival order.
func (m *Manager) read(ctx context.Context, gen uint64, conn Conn) {
	buf := make([]byte, m.opts.ReadBufferSize)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := conn.Read(buf)
		if n > 0 {
			if !m.deliver(gen, buf[:n]) {
				return
			}
		} else if err == nil {
			m.flushIdle(gen)
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			m.lost(gen, fmt.Errorf("read: %w", err))
			return
		}
	}
}

func (m *Manager) deliver(gen uint64, data []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return false
	}
	m.queue.push(m.dec.Feed(data)...)
	return true
}

// flushIdle releases bytes held back for lack of a following byte once the
// line has gone quiet.
func (m *Manager) flushIdle(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.gen {
		m.queue.push(m.dec.Flush()...)
	}
}

// lost handles a transport error on the connection of generation gen.
func (m *Manager) lost(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen || m.status.State != stream.Connected {
		m.mu.Unlock()
		return
	}
	old := m.stopLocked()
	target := m.status.Port

	if m.opts.Reconnect == identity.Disabled {
		m.logger.Warn("connection lost", "port", target.Path, "error", cause)
		m.setStatusLocked(stream.Status{State: stream.Disconnected, Port: target, Err: cause})
		m.mu.Unlock()
		closeConn(old)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	since := time.Now()
	m.logger.Warn("connection lost, reconnecting", "port", target.Path, "error", cause)
	m.setStatusLocked(stream.Status{State: stream.Reconnecting, Port: target, PendingSince: since, Err: cause})
	gen = m.gen
	m.mu.Unlock()

	closeConn(old)
	go m.poll(ctx, gen, target, since)
}

// poll looks for the lost device every ReconnectInterval until it is found,
// the session moves on, or the give-up period passes.
func (m *Manager) poll(ctx context.Context, gen uint64, target identity.PortIdentity, since time.Time) {
	logger := m.logger.With("port", target.Path)

	// Ports present now are other devices, unless they sit at the old path.
	baseline, err := m.enum.Ports()
	if err != nil {
		logger.Debug("baseline enumeration failed", "error", err)
	}
	matcher := identity.Matcher{Ignore: m.opts.Ignore, Strictness: m.opts.Reconnect}

	ticker := time.NewTicker(m.opts.ReconnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if m.opts.GiveUpAfter > 0 && time.Since(since) >= m.opts.GiveUpAfter {
			m.giveUp(gen, target)
			return
		}

		ports, err := m.enum.Ports()
		if err != nil {
			logger.Debug("enumeration failed", "error", err)
			continue
		}
		port, kind, err := matcher.Match(target, ports, baseline)
		if err != nil {
			if errors.Is(err, identity.ErrAmbiguousMatch) {
				logger.Warn("cannot reconnect", "error", err)
			}
			continue
		}
		port.BaudRate = target.BaudRate
		if port.USB == nil {
			port.USB = target.USB
		}

		conn, err := m.opener.Open(port)
		if err != nil {
			logger.Debug("reopen failed", "candidate", port.Path, "error", err)
			continue
		}
		if !m.attach(gen, conn, port, kind) {
			closeConn(conn)
		}
		return
	}
}

func (m *Manager) giveUp(gen uint64, target identity.PortIdentity) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	old := m.stopLocked()
	err := fmt.Errorf("%w after %s", ErrGaveUp, m.opts.GiveUpAfter)
	m.logger.Warn("reconnect abandoned", "port", target.Path, "error", err)
	m.setStatusLocked(stream.Status{State: stream.Disconnected, Port: target, Err: err})
	m.mu.Unlock()
	closeConn(old)
}

func closeConn(c Conn) {
	if c != nil {
		_ = c.Close()
	}
}
