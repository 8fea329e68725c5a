package serial

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestModemSignalsFromStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected ModemSignals
	}{
		{
			name:     "No signals",
			status:   0,
			expected: ModemSignals{},
		},
		{
			name:     "Inputs only",
			status:   unix.TIOCM_CTS | unix.TIOCM_DSR | unix.TIOCM_RI | unix.TIOCM_CAR,
			expected: ModemSignals{CTS: true, DSR: true, RI: true, DCD: true},
		},
		{
			name:     "Outputs only",
			status:   unix.TIOCM_RTS | unix.TIOCM_DTR,
			expected: ModemSignals{RTS: true, DTR: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := modemSignalsFromStatus(tt.status)
			if result != tt.expected {
				t.Errorf("modemSignalsFromStatus(%#x) = %+v, want %+v", tt.status, result, tt.expected)
			}
		})
	}
}

// TestWithInitialRTS tests the initial RTS configuration
func TestWithInitialRTS(t *testing.T) {
	for _, state := range []bool{true, false} {
		config := DefaultConfig()
		if err := WithInitialRTS(state)(&config); err != nil {
			t.Errorf("WithInitialRTS(%v) returned error: %v", state, err)
		}
		if config.InitialRTS == nil {
			t.Errorf("WithInitialRTS(%v) did not set InitialRTS", state)
		} else if *config.InitialRTS != state {
			t.Errorf("WithInitialRTS(%v) set InitialRTS to %v", state, *config.InitialRTS)
		}
	}
}

// TestWithInitialDTR tests the initial DTR configuration
func TestWithInitialDTR(t *testing.T) {
	for _, state := range []bool{true, false} {
		config := DefaultConfig()
		if err := WithInitialDTR(state)(&config); err != nil {
			t.Errorf("WithInitialDTR(%v) returned error: %v", state, err)
		}
		if config.InitialDTR == nil {
			t.Errorf("WithInitialDTR(%v) did not set InitialDTR", state)
		} else if *config.InitialDTR != state {
			t.Errorf("WithInitialDTR(%v) set InitialDTR to %v", state, *config.InitialDTR)
		}
	}
}

// TestModemSignalsOnClosedPort tests that line control fails on closed ports
func TestModemSignalsOnClosedPort(t *testing.T) {
	p := &port{closed: true}

	t.Run("GetModemSignals", func(t *testing.T) {
		_, err := p.GetModemSignals()
		if err != ErrPortClosed {
			t.Errorf("GetModemSignals() on closed port error = %v, want %v", err, ErrPortClosed)
		}
	})

	t.Run("SetRTS", func(t *testing.T) {
		if err := p.SetRTS(true); err != ErrPortClosed {
			t.Errorf("SetRTS() on closed port error = %v, want %v", err, ErrPortClosed)
		}
	})

	t.Run("SetDTR", func(t *testing.T) {
		if err := p.SetDTR(false); err != ErrPortClosed {
			t.Errorf("SetDTR() on closed port error = %v, want %v", err, ErrPortClosed)
		}
	})
}
