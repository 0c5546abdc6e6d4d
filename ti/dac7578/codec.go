package dac7578

import (
	"fmt"
	"strings"
)

const (
	// Channels is the number of outputs on the chip, DAC A ~ DAC H
	Channels = 8

	// MaxCode is the largest 12-bit output code
	MaxCode = 0xFFF

	// Broadcast is the channel nibble that addresses every channel at once
	Broadcast = 0x0F

	// familyPrefix is the fixed upper nibble of the bus address
	familyPrefix = 0b1001 << 4

	// command selectors, OR'd into the register byte
	cmdUpdate        = 0x10
	cmdWriteUpdate   = 0x30
	cmdPowerDown     = 0x40
	cmdLDACRegister  = 0x60
	writeChannelMask = 0b0111
	fullNibbleMask   = 0b1111

	// payload fields
	valueShift      = 4
	powerShift      = 13
	channelPDShift  = 5
	powerAllPattern = 0x1FE
	ldacShift       = 8
	ldacAll         = 0xFF00
	dontCare        = 0xFFFF
)

// PowerMode is the termination of a channel's output
type PowerMode uint8

const (
	// PowerOn drives the output normally
	PowerOn PowerMode = iota

	// PowerDown1K disconnects the output and ties it to ground through 1 kΩ
	PowerDown1K

	// PowerDown100K disconnects the output and ties it to ground through 100 kΩ
	PowerDown100K

	// PowerDownHighZ disconnects the output and leaves it floating
	PowerDownHighZ
)

var powerModeNames = map[PowerMode]string{
	PowerOn:        "on",
	PowerDown1K:    "power-down-1k",
	PowerDown100K:  "power-down-100k",
	PowerDownHighZ: "power-down-high-impedance",
}

// ErrUnknownPowerMode is generated when a power mode string cannot be parsed
const ErrUnknownPowerMode = InputError("dac7578: unknown power mode")

func (p PowerMode) String() string {
	if s, ok := powerModeNames[p]; ok {
		return s
	}
	return fmt.Sprintf("PowerMode(%d)", uint8(p))
}

// ParsePowerMode converts a string to a PowerMode, case insensitive.
// The short forms "1k", "100k", "hiz" are also accepted
func ParsePowerMode(s string) (PowerMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "power-on":
		return PowerOn, nil
	case "1k", "power-down-1k":
		return PowerDown1K, nil
	case "100k", "power-down-100k":
		return PowerDown100K, nil
	case "hiz", "high-impedance", "power-down-high-impedance":
		return PowerDownHighZ, nil
	default:
		return PowerOn, fmt.Errorf("%w: %q", ErrUnknownPowerMode, s)
	}
}

// Register selects which of the double buffered registers a read returns
type Register uint8

const (
	// InputRegister holds the value staged by the last write
	InputRegister Register = iota

	// OutputRegister holds the value latched by the last update, the one
	// driving the pin
	OutputRegister
)

// Command is one register write: the register byte and its 16-bit payload
type Command struct {
	Reg  byte
	Data uint16
}

// Bytes returns the 3-byte wire frame, payload MSB first
func (c Command) Bytes() []byte {
	return []byte{c.Reg, byte(c.Data >> 8), byte(c.Data)}
}

func (c Command) String() string {
	return fmt.Sprintf("reg=0x%02X data=0x%04X", c.Reg, c.Data)
}

// Address returns the 8-bit bus address for the strapped address bits hw.
// The upper nibble is always 1001 and the least significant bit is always 0.
func Address(hw uint8) uint8 {
	return familyPrefix | (hw & 0b1110)
}

// Address7 is Address in the 7-bit form used by most bus libraries
func Address7(hw uint8) uint16 {
	return uint16(Address(hw) >> 1)
}

func encodeValue(v uint16) uint16 {
	return (v & MaxCode) << valueShift
}

// EncodeWrite writes v into the input register of ch.  If update is true the
// DAC register is updated from it in the same command.
// Only the low 3 bits of ch are used.
func EncodeWrite(ch uint8, v uint16, update bool) Command {
	reg := ch & writeChannelMask
	if update {
		reg |= cmdWriteUpdate
	}
	return Command{Reg: reg, Data: encodeValue(v)}
}

// EncodeUpdate transfers the input register of ch to its DAC register.
// The payload is ignored by the device.
// The full nibble of ch is used, so 15 addresses every channel.
func EncodeUpdate(ch uint8) Command {
	return Command{Reg: (ch & fullNibbleMask) | cmdUpdate, Data: dontCare}
}

// EncodeWriteAll writes v into every input register
func EncodeWriteAll(v uint16, update bool) Command {
	var reg byte = Broadcast
	if update {
		reg |= cmdWriteUpdate
	}
	return Command{Reg: reg, Data: encodeValue(v)}
}

// EncodeUpdateAll transfers every input register to its DAC register
func EncodeUpdateAll() Command {
	return Command{Reg: Broadcast | cmdUpdate, Data: 0}
}

// EncodeRead returns the register byte that selects r of channel ch for a
// subsequent 2-byte read
func EncodeRead(ch uint8, r Register) byte {
	reg := ch & fullNibbleMask
	if r == OutputRegister {
		reg |= cmdUpdate
	}
	return reg
}

// EncodePower sets the power mode of channel ch.
// ch is placed into the channel select field as a number, not a one-hot bit.
func EncodePower(ch uint8, m PowerMode) Command {
	pd := uint16(m) << powerShift
	sel := uint16(ch) << channelPDShift
	return Command{Reg: cmdPowerDown, Data: pd | sel}
}

// EncodePowerAll sets the power mode of all channels
func EncodePowerAll(m PowerMode) Command {
	return Command{Reg: cmdPowerDown, Data: powerAllPattern | (uint16(m)&0x3)<<1}
}

// EncodeIgnoreLDAC makes the channels set in mask (bit 0 = DAC A) ignore the
// LDAC pin, and the others respect it
func EncodeIgnoreLDAC(mask uint8) Command {
	return Command{Reg: cmdLDACRegister, Data: uint16(mask) << ldacShift}
}

// EncodeIgnoreLDACAll makes every channel ignore the LDAC pin
func EncodeIgnoreLDACAll() Command {
	return Command{Reg: cmdLDACRegister, Data: ldacAll}
}

// DecodeValue converts a 2-byte read response, MSB first, into a 12-bit code
func DecodeValue(b [2]byte) uint16 {
	raw := uint16(b[0])<<8 | uint16(b[1])
	return raw >> valueShift
}
