package dac7578

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// ErrNoDevice is generated by Mock when a transaction is addressed to a
// device other than the simulated one
var ErrNoDevice = errors.New("dac7578 mock: no device at address")

// Mock simulates one DAC7578 and its LDAC pin.  It satisfies i2c.Bus and LDAC,
// so a DAC can be built on it with New(mock, hw, mock).
//
// The command nibble of each register write is interpreted per the datasheet:
// 0 write input, 1 update, 2 write input and update all, 3 write and update,
// 4 power down, 6 LDAC register, 7 reset.  A falling edge on LDAC copies the
// input register into the DAC register of every channel that does not ignore
// the pin.
type Mock struct {
	mu sync.Mutex

	addr    uint16
	input   [Channels]uint16
	dac     [Channels]uint16
	power   [Channels]PowerMode
	ignore  uint8
	pointer byte
	ldac    gpio.Level
	tx      int

	// FailNext, if non-nil, is returned by the next Tx instead of performing it
	FailNext error
}

// NewMock returns a simulated device strapped to hw, powered on at zero scale,
// with LDAC released high
func NewMock(hw uint8) *Mock {
	return &Mock{addr: Address7(hw), ldac: gpio.High}
}

func (m *Mock) String() string {
	return fmt.Sprintf("dac7578-mock@0x%02X", m.addr)
}

// SetSpeed is accepted and ignored
func (m *Mock) SetSpeed(f physic.Frequency) error {
	return nil
}

// Tx performs one bus transaction against the simulated registers.
// A 3-byte write is a command, a 1-byte write selects the register for the
// next read, and a 2-byte read returns the selected register.
func (m *Mock) Tx(addr uint16, w, r []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return err
	}
	if addr != m.addr {
		return fmt.Errorf("%w 0x%02X", ErrNoDevice, addr)
	}
	m.tx++
	switch {
	case len(w) == 3 && len(r) == 0:
		return m.command(w[0], uint16(w[1])<<8|uint16(w[2]))
	case len(w) == 1 && len(r) == 0:
		m.pointer = w[0]
		return nil
	case len(w) == 1 && len(r) == 2:
		m.pointer = w[0]
		m.respond(r)
		return nil
	case len(w) == 0 && len(r) == 2:
		m.respond(r)
		return nil
	default:
		return fmt.Errorf("dac7578 mock: unsupported transaction w=%d r=%d bytes", len(w), len(r))
	}
}

func (m *Mock) targets(a byte) []int {
	if a == Broadcast {
		return []int{0, 1, 2, 3, 4, 5, 6, 7}
	}
	if a < Channels {
		return []int{int(a)}
	}
	return nil
}

func (m *Mock) command(reg byte, data uint16) error {
	cmd, a := reg>>4, reg&0x0F
	v := data >> valueShift
	switch cmd {
	case 0x0:
		for _, ch := range m.targets(a) {
			m.input[ch] = v
		}
	case 0x1:
		for _, ch := range m.targets(a) {
			m.dac[ch] = m.input[ch]
		}
	case 0x2:
		for _, ch := range m.targets(a) {
			m.input[ch] = v
		}
		m.dac = m.input
	case 0x3:
		for _, ch := range m.targets(a) {
			m.input[ch] = v
			m.dac[ch] = v
		}
	case 0x4:
		pd := PowerMode((data >> powerShift) & 0x3)
		sel := uint8(data >> channelPDShift)
		for ch := 0; ch < Channels; ch++ {
			if sel&(1<<ch) != 0 {
				m.power[ch] = pd
			}
		}
	case 0x6:
		m.ignore = uint8(data >> ldacShift)
	case 0x7:
		m.input = [Channels]uint16{}
		m.dac = [Channels]uint16{}
		m.power = [Channels]PowerMode{}
		m.ignore = 0
	default:
		return fmt.Errorf("dac7578 mock: unsupported command nibble 0x%X", cmd)
	}
	return nil
}

func (m *Mock) respond(r []byte) {
	cmd, a := m.pointer>>4, m.pointer&0x0F
	var v uint16
	if a < Channels {
		if cmd == 0x1 {
			v = m.dac[a]
		} else {
			v = m.input[a]
		}
	}
	raw := v << valueShift
	r[0], r[1] = byte(raw>>8), byte(raw)
}

// Out drives the simulated LDAC pin
func (m *Mock) Out(l gpio.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ldac == gpio.High && l == gpio.Low {
		for ch := 0; ch < Channels; ch++ {
			if m.ignore&(1<<ch) == 0 {
				m.dac[ch] = m.input[ch]
			}
		}
	}
	m.ldac = l
	return nil
}

// Input returns the simulated input register of ch
func (m *Mock) Input(ch int) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input[ch]
}

// Output returns the simulated DAC register of ch
func (m *Mock) Output(ch int) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dac[ch]
}

// Power returns the simulated power mode of ch
func (m *Mock) Power(ch int) PowerMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.power[ch]
}

// IgnoreMask returns the simulated LDAC register
func (m *Mock) IgnoreMask() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ignore
}

// Level returns the level of the simulated LDAC pin
func (m *Mock) Level() gpio.Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ldac
}

// Transactions returns the number of transactions the mock has answered
func (m *Mock) Transactions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx
}
