package models

import (
	"context"
	"sync"

	"github.com/allbin/serialterm/internal/identity"
	"github.com/allbin/serialterm/internal/session"
	"github.com/allbin/serialterm/internal/stream"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	switch m {
	case InputModeInsert:
		return "INSERT"
	default:
		return "NORMAL"
	}
}

// SerialModel is the state shared by the session views: the session
// itself, the address it was started with, and UI bookkeeping.
type SerialModel struct {
	session *session.Manager
	address identity.Address

	ready bool
	rts   bool
	dtr   bool

	inputMode InputMode

	cancel context.CancelFunc
	ctx    context.Context
	mu     sync.RWMutex
}

func NewSerialModel(s *session.Manager, addr identity.Address) *SerialModel {
	ctx, cancel := context.WithCancel(context.Background())

	return &SerialModel{
		session:   s,
		address:   addr,
		inputMode: InputModeNormal,
		rts:       true,
		dtr:       true,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (m *SerialModel) Session() *session.Manager {
	return m.session
}

func (m *SerialModel) Address() identity.Address {
	return m.address
}

// Status returns the current connection snapshot.
func (m *SerialModel) Status() stream.Status {
	return m.session.Status()
}

func (m *SerialModel) IsConnected() bool {
	return m.session.Status().State == stream.Connected
}

func (m *SerialModel) IsReady() bool {
	return m.ready
}

func (m *SerialModel) SetReady(ready bool) {
	m.ready = ready
}

// ToggleRTS flips the RTS line and returns its new state.
func (m *SerialModel) ToggleRTS() (bool, error) {
	m.mu.Lock()
	m.rts = !m.rts
	state := m.rts
	m.mu.Unlock()
	return state, m.session.SetRTS(state)
}

// ToggleDTR flips the DTR line and returns its new state.
func (m *SerialModel) ToggleDTR() (bool, error) {
	m.mu.Lock()
	m.dtr = !m.dtr
	state := m.dtr
	m.mu.Unlock()
	return state, m.session.SetDTR(state)
}

func (m *SerialModel) GetInputMode() InputMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMode
}

func (m *SerialModel) SetInputMode(mode InputMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputMode = mode
}

func (m *SerialModel) IsInInsertMode() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMode == InputModeInsert
}

func (m *SerialModel) GetContext() context.Context {
	return m.ctx
}

// Cleanup cancels pending work and closes the session.
func (m *SerialModel) Cleanup() {
	if m.cancel != nil {
		m.cancel()
	}
	_ = m.session.Close()
}
