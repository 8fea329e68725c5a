package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allbin/serialterm/internal/decoder"
	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/rzcobs"
	"github.com/allbin/serialterm/internal/stream"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

var errUnplugged = errors.New("device unplugged")

type fakeConn struct {
	path   string
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu        sync.Mutex
	written   bytes.Buffer
	failWrite error
	rts, dtr  *bool
}

func newFakeConn(path string) *fakeConn {
	return &fakeConn{path: path, in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) Read(p []byte) (int, error) {
	select {
	case b, ok := <-c.in:
		if !ok {
			return 0, errUnplugged
		}
		return copy(p, b), nil
	case <-c.closed:
		return 0, errors.New("port closed")
	}
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrite != nil {
		return 0, c.failWrite
	}
	return c.written.Write(p)
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) SetRTS(state bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rts = &state
	return nil
}

func (c *fakeConn) SetDTR(state bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dtr = &state
	return nil
}

func (c *fakeConn) unplug() {
	close(c.in)
}

// fakeSystem is both the Enumerator and the Opener of a test.
type fakeSystem struct {
	mu      sync.Mutex
	ports   []identity.PortIdentity
	conns   []*fakeConn
	opened  []identity.PortIdentity
	openErr error
}

func (s *fakeSystem) setPorts(ports ...identity.PortIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ports = ports
}

func (s *fakeSystem) Ports() ([]identity.PortIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]identity.PortIdentity(nil), s.ports...), nil
}

func (s *fakeSystem) Open(p identity.PortIdentity) (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	found := false
	for _, q := range s.ports {
		found = found || q.Path == p.Path
	}
	if !found {
		return nil, errors.New("no such device")
	}
	c := newFakeConn(p.Path)
	s.conns = append(s.conns, c)
	s.opened = append(s.opened, p)
	return c, nil
}

func (s *fakeSystem) lastConn() *fakeConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[len(s.conns)-1]
}

func (s *fakeSystem) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.opened)
}

type recorder struct {
	mu     sync.Mutex
	events []stream.Event
	done   chan struct{}
}

func record(m *Manager) *recorder {
	r := &recorder{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for ev := range m.Events() {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *recorder) snapshot() []stream.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stream.Event(nil), r.events...)
}

func (r *recorder) states() []stream.State {
	var out []stream.State
	for _, ev := range r.snapshot() {
		if cs, ok := ev.(stream.ConnectionStatus); ok {
			out = append(out, cs.Status.State)
		}
	}
	return out
}

func (r *recorder) text() string {
	var b bytes.Buffer
	for _, ev := range r.snapshot() {
		if tr, ok := ev.(stream.TextRun); ok {
			b.Write(tr.Text)
		}
	}
	return b.String()
}

func espPort(path string) identity.PortIdentity {
	return identity.PortIdentity{
		Path: path,
		USB:  &identity.USBInfo{VID: 0x303A, PID: 0x1001, Serial: "123456"},
	}
}

func newTestManager(t *testing.T, opts Options, sys *fakeSystem) (*Manager, *recorder) {
	t.Helper()
	if opts.ReconnectInterval == 0 {
		opts.ReconnectInterval = 5 * time.Millisecond
	}
	m := New(opts, sys, sys, nil)
	r := record(m)
	t.Cleanup(func() {
		m.Close()
		<-r.done
	})
	return m, r
}

func waitState(t *testing.T, m *Manager, want stream.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.Status().State == want
	}, waitFor, tick, "state never became %s (is %s)", want, m.Status().State)
}

func TestConnectByPath(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, r := newTestManager(t, Options{}, sys)

	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))

	st := m.Status()
	assert.Equal(t, stream.Connected, st.State)
	assert.Equal(t, "/dev/ttyUSB0", st.Port.Path)
	require.NotNil(t, st.Port.USB, "USB fingerprint should be picked up from the listing")
	assert.Equal(t, "123456", st.Port.USB.Serial)
	assert.Equal(t, DefaultBaudRate, sys.opened[0].BaudRate)

	require.Eventually(t, func() bool { return len(r.states()) == 2 }, waitFor, tick)
	assert.Equal(t, []stream.State{stream.Connecting, stream.Connected}, r.states())
}

func TestConnectElsewhereEndsCurrentSession(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"), identity.PortIdentity{Path: "/dev/ttyACM0"})
	m, r := newTestManager(t, Options{}, sys)

	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))
	first := sys.lastConn()
	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyACM0"}))

	assert.Equal(t, "/dev/ttyACM0", m.Status().Port.Path)
	require.Eventually(t, func() bool { return len(r.states()) == 5 }, waitFor, tick)
	assert.Equal(t, []stream.State{
		stream.Connecting, stream.Connected,
		stream.Disconnected,
		stream.Connecting, stream.Connected,
	}, r.states())

	select {
	case <-first.closed:
	default:
		t.Fatal("first port was not closed")
	}
}

func TestConnectWhileReconnecting(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, r := newTestManager(t, Options{}, sys)

	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))
	sys.setPorts(identity.PortIdentity{Path: "/dev/ttyACM0"})
	sys.lastConn().unplug()
	waitState(t, m, stream.Reconnecting)

	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyACM0"}))
	require.Eventually(t, func() bool { return len(r.states()) == 6 }, waitFor, tick)
	assert.Equal(t, []stream.State{
		stream.Connecting, stream.Connected, stream.Reconnecting,
		stream.Disconnected,
		stream.Connecting, stream.Connected,
	}, r.states())
}

func TestConnectUsesAddressBaudRate(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, _ := newTestManager(t, Options{BaudRate: 9600}, sys)

	rule := identity.USBRule{VID: 0x303A, PID: 0x1001}
	require.NoError(t, m.Connect(context.Background(), identity.Address{USB: &rule, BaudRate: 921600}))
	assert.Equal(t, 921600, sys.opened[0].BaudRate)
}

func TestConnectOpenFailure(t *testing.T) {
	sys := &fakeSystem{openErr: errors.New("permission denied")}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, r := newTestManager(t, Options{}, sys)

	err := m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	st := m.Status()
	assert.Equal(t, stream.Disconnected, st.State)
	assert.Error(t, st.Err)

	// No automatic retry after a failed open.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stream.Disconnected, m.Status().State)
	assert.Equal(t, []stream.State{stream.Connecting, stream.Disconnected}, r.states())
}

func TestConnectAmbiguous(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(
		identity.PortIdentity{Path: "/dev/ttyUSB0", USB: &identity.USBInfo{VID: 0x28DE, PID: 0x2102}},
		identity.PortIdentity{Path: "/dev/ttyUSB1", USB: &identity.USBInfo{VID: 0x28DE, PID: 0x2102}},
	)
	m, _ := newTestManager(t, Options{}, sys)

	rule := identity.USBRule{VID: 0x28DE, PID: 0x2102}
	err := m.Connect(context.Background(), identity.Address{USB: &rule})
	require.ErrorIs(t, err, identity.ErrAmbiguousMatch)
	assert.Equal(t, 0, sys.openCount(), "no port may be opened on an ambiguous match")
	assert.Equal(t, stream.Disconnected, m.Status().State)
}

func TestConnectIgnoredDevice(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(identity.PortIdentity{Path: "/dev/ttyUSB0", USB: &identity.USBInfo{VID: 0x28DE, PID: 0x2102}})
	ignore, err := identity.ParseIgnoreList([]string{"28DE:2102"}, nil, false)
	require.NoError(t, err)
	m, _ := newTestManager(t, Options{Ignore: ignore}, sys)

	rule := identity.USBRule{VID: 0x28DE, PID: 0x2102}
	err = m.Connect(context.Background(), identity.Address{USB: &rule})
	require.ErrorIs(t, err, identity.ErrNoMatch)
}

func TestReconnectOnNewPath(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, r := newTestManager(t, Options{}, sys)

	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))
	first := sys.lastConn()
	first.in <- []byte("boot ")
	first.in <- []byte("ok\n")
	require.Eventually(t, func() bool { return r.text() == "boot ok\n" }, waitFor, tick)

	sys.setPorts()
	first.unplug()
	waitState(t, m, stream.Reconnecting)
	assert.False(t, m.Status().PendingSince.IsZero())
	assert.Equal(t, "/dev/ttyUSB0", m.Status().Port.Path)

	sys.setPorts(espPort("/dev/ttyUSB1"))
	waitState(t, m, stream.Connected)

	st := m.Status()
	assert.Equal(t, "/dev/ttyUSB1", st.Port.Path)
	assert.Equal(t, identity.SerialMatch, st.Match)

	second := sys.lastConn()
	require.NotSame(t, first, second)
	second.in <- []byte("again\n")
	require.Eventually(t, func() bool { return r.text() == "boot ok\nagain\n" }, waitFor, tick)

	assert.Equal(t, []stream.State{
		stream.Connecting, stream.Connected, stream.Reconnecting, stream.Connected,
	}, r.states())
}

func TestReconnectKeepsPartialFrame(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, r := newTestManager(t, Options{Mode: decoder.UnframedRzcobs}, sys)

	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))

	payload := []byte{1, 2, 3, 4, 5, 6, 7}
	enc := rzcobs.Encode(payload)
	first := sys.lastConn()
	first.in <- enc[:3]
	require.Eventually(t, func() bool { return len(first.in) == 0 }, waitFor, tick)

	sys.setPorts()
	first.unplug()
	waitState(t, m, stream.Reconnecting)
	sys.setPorts(espPort("/dev/ttyUSB0"))
	waitState(t, m, stream.Connected)
	assert.Equal(t, identity.PerfectMatch, m.Status().Match)

	second := sys.lastConn()
	second.in <- append(append([]byte{}, enc[3:]...), 0)

	require.Eventually(t, func() bool {
		for _, ev := range r.snapshot() {
			if f, ok := ev.(stream.FrameDecoded); ok {
				// rzCOBS may pad the payload with trailing zeros.
				return bytes.Equal(bytes.TrimRight(f.Payload, "\x00"), payload)
			}
		}
		return false
	}, waitFor, tick)
}

func TestReconnectSkipsDevicesPresentAtDisconnect(t *testing.T) {
	usb := func(path string) identity.PortIdentity {
		return identity.PortIdentity{Path: path, USB: &identity.USBInfo{VID: 0x28DE, PID: 0x2102}}
	}
	sys := &fakeSystem{}
	sys.setPorts(usb("/dev/ttyUSB0"))
	m, _ := newTestManager(t, Options{}, sys)
	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))

	// An identical device sits idle on ttyUSB2 when ours goes away.
	sys.setPorts(usb("/dev/ttyUSB2"))
	sys.lastConn().unplug()
	waitState(t, m, stream.Reconnecting)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, stream.Reconnecting, m.Status().State)
	assert.Equal(t, 1, sys.openCount())

	sys.setPorts(usb("/dev/ttyUSB2"), usb("/dev/ttyUSB3"))
	waitState(t, m, stream.Connected)
	assert.Equal(t, "/dev/ttyUSB3", m.Status().Port.Path)
	assert.Equal(t, identity.USBMatch, m.Status().Match)
}

func TestWriteRejectedWhileNotConnected(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, _ := newTestManager(t, Options{}, sys)

	_, err := m.Write(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))
	n, err := m.Write(context.Background(), []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	conn := sys.lastConn()
	conn.mu.Lock()
	assert.Equal(t, "hello", conn.written.String())
	conn.mu.Unlock()

	sys.setPorts()
	conn.unplug()
	waitState(t, m, stream.Reconnecting)

	_, err = m.Write(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestWriteFailureStartsReconnect(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, _ := newTestManager(t, Options{}, sys)
	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))

	conn := sys.lastConn()
	conn.mu.Lock()
	conn.failWrite = errors.New("input/output error")
	conn.mu.Unlock()
	sys.setPorts()

	_, err := m.Write(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, stream.Reconnecting, m.Status().State)
}

func TestDisconnectCancelsReconnect(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, r := newTestManager(t, Options{}, sys)
	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))

	sys.setPorts()
	sys.lastConn().unplug()
	waitState(t, m, stream.Reconnecting)

	m.Disconnect()
	assert.Equal(t, stream.Disconnected, m.Status().State)

	sys.setPorts(espPort("/dev/ttyUSB0"))
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, stream.Disconnected, m.Status().State)
	assert.Equal(t, 1, sys.openCount())

	require.Eventually(t, func() bool { return len(r.states()) == 4 }, waitFor, tick)
	assert.Equal(t, stream.Disconnected, r.states()[3])
}

func TestDisconnectWhileConnected(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, _ := newTestManager(t, Options{}, sys)
	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))

	conn := sys.lastConn()
	m.Disconnect()
	assert.Equal(t, stream.Disconnected, m.Status().State)
	assert.NoError(t, m.Status().Err)

	select {
	case <-conn.closed:
	case <-time.After(waitFor):
		t.Fatal("port was not released")
	}

	// A closed port is not a lost device.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stream.Disconnected, m.Status().State)

	// Disconnecting twice is harmless.
	m.Disconnect()
}

func TestGiveUp(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, _ := newTestManager(t, Options{GiveUpAfter: 30 * time.Millisecond}, sys)
	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))

	sys.setPorts()
	sys.lastConn().unplug()
	waitState(t, m, stream.Disconnected)
	assert.ErrorIs(t, m.Status().Err, ErrGaveUp)
}

func TestReconnectDisabled(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, r := newTestManager(t, Options{Reconnect: identity.Disabled}, sys)
	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))

	sys.lastConn().unplug()
	waitState(t, m, stream.Disconnected)
	assert.ErrorIs(t, m.Status().Err, errUnplugged)
	assert.NotContains(t, r.states(), stream.Reconnecting)
}

func TestModemLinesRestoredAfterReconnect(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, _ := newTestManager(t, Options{}, sys)
	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))

	require.NoError(t, m.SetRTS(false))
	require.NoError(t, m.SetDTR(true))

	sys.setPorts()
	sys.lastConn().unplug()
	waitState(t, m, stream.Reconnecting)
	sys.setPorts(espPort("/dev/ttyUSB1"))
	waitState(t, m, stream.Connected)

	conn := sys.lastConn()
	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.rts != nil && conn.dtr != nil
	}, waitFor, tick)
	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.False(t, *conn.rts)
	assert.True(t, *conn.dtr)
}

func TestHandOff(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, r := newTestManager(t, Options{}, sys)
	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))

	assert.Equal(t, decoder.Disabled, m.Mode())
	m.HandOff(decoder.FramedRzcobs, "elf symbols")
	assert.Equal(t, decoder.FramedRzcobs, m.Mode())
	assert.Equal(t, "elf symbols", m.Symbols())

	payload := []byte("defmt")
	frame := append([]byte{0xFF, 0x00}, rzcobs.Encode(payload)...)
	frame = append(frame, 0x00)
	sys.lastConn().in <- append([]byte("log "), frame...)

	require.Eventually(t, func() bool {
		evs := r.snapshot()
		for _, ev := range evs {
			if f, ok := ev.(stream.FrameDecoded); ok {
				return bytes.HasPrefix(f.Payload, payload)
			}
		}
		return false
	}, waitFor, tick)
	assert.Equal(t, "log ", r.text())
}

func TestCloseEndsEvents(t *testing.T) {
	sys := &fakeSystem{}
	m := New(Options{}, sys, sys, nil)
	r := record(m)

	require.NoError(t, m.Close())
	select {
	case <-r.done:
	case <-time.After(waitFor):
		t.Fatal("events channel not closed")
	}
	assert.ErrorIs(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}), ErrClosed)
}

type prefixSymbols string

func (p prefixSymbols) CheckFrame(payload []byte) error {
	if !bytes.HasPrefix(payload, []byte(p)) {
		return errors.New("frame does not match symbols")
	}
	return nil
}

func TestHandOffInstallsFrameCheck(t *testing.T) {
	sys := &fakeSystem{}
	sys.setPorts(espPort("/dev/ttyUSB0"))
	m, r := newTestManager(t, Options{}, sys)
	require.NoError(t, m.Connect(context.Background(), identity.Address{Path: "/dev/ttyUSB0"}))

	m.HandOff(decoder.Raw, prefixSymbols("fw"))
	sys.lastConn().in <- []byte("fw1\x00bad\x00after")

	require.Eventually(t, func() bool { return r.text() == "after" }, waitFor, tick)

	var frames []string
	var failed []stream.FrameError
	for _, ev := range r.snapshot() {
		switch e := ev.(type) {
		case stream.FrameDecoded:
			frames = append(frames, string(e.Payload))
		case stream.FrameError:
			failed = append(failed, e)
		}
	}
	assert.Equal(t, []string{"fw1"}, frames)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Description, "frame does not match symbols")
	assert.Equal(t, []byte("bad"), failed[0].Raw)
}
