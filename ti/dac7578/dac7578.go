/*Package dac7578 provides an interface to Texas Instruments DAC7578 8-channel,
12-bit I2C DACs

The chip is double buffered: a write lands in the input register of a channel,
and an update copies it into the DAC register that drives the output.  Updates
are either carried in the write command itself, issued as a separate command,
or latched by the LDAC pin.  Channels may be told to ignore the LDAC pin.

The DAC type holds no copy of the device's registers.  Every call is one bus
transaction (or one transaction wrapped in an LDAC pulse), and reads always go
to the device.

Basic usage is as followed:
 bus, _ := i2creg.Open("")
 ldac := gpioreg.ByName("GPIO25")
 dac := dac7578.New(bus, 0, ldac)
 // immediate mode: write and update in one command
 dac.SetChannel(3, 4095, true)
 // synchronized mode: stage several channels, then pulse LDAC once
 dac.SetChannel(0, 1000, false)
 dac.SetChannel(1, 2000, false)
 dac.UpdateAll()

Channel numbers and codes are masked, not validated, unless Strict is set;
see Strict.
*/
package dac7578

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
)

// InputError is an error caused by the arguments of a call rather than by
// the bus or the device.  BadRequest reports true for every InputError.
type InputError string

func (e InputError) Error() string { return string(e) }

// BadRequest marks the error as the caller's
func (e InputError) BadRequest() bool { return true }

const (
	// ErrChannelRange is generated in strict mode when a channel is not in 0~7,
	// and always when an int channel does not fit the channel field
	ErrChannelRange = InputError("dac7578: channel out of range 0~7")

	// ErrValueRange is generated in strict mode when a code is not in 0~4095
	ErrValueRange = InputError("dac7578: code out of range 0~4095")
)

// LDAC is the latch pin.  gpio.PinOut satisfies it.
type LDAC interface {
	Out(l gpio.Level) error
}

// DAC is one DAC7578 on a shared bus
type DAC struct {
	dev  i2c.Dev
	ldac LDAC

	// Strict causes out of range channels and codes to be rejected with
	// ErrChannelRange and ErrValueRange instead of being masked into range.
	// The default, false, reproduces the chip's addressing: channel 9 is
	// written as channel 1, code 4096 as code 0.
	Strict bool

	// Vref is the reference voltage in volts, used by the voltage helpers
	Vref float64
}

// New returns a DAC on bus at the address strapped by hw (see Address),
// latched by ldac.  The bus is not owned by the DAC and is never closed by it.
func New(bus i2c.Bus, hw uint8, ldac LDAC) *DAC {
	return &DAC{
		dev:  i2c.Dev{Bus: bus, Addr: Address7(hw)},
		ldac: ldac,
		Vref: DefaultVref,
	}
}

// Addr returns the 7-bit bus address of the DAC
func (d *DAC) Addr() uint16 {
	return d.dev.Addr
}

func (d *DAC) String() string {
	return fmt.Sprintf("dac7578@0x%02X", d.dev.Addr)
}

func (d *DAC) checkChannel(ch uint8) error {
	if d.Strict && ch >= Channels {
		return fmt.Errorf("%w: %d", ErrChannelRange, ch)
	}
	return nil
}

func (d *DAC) checkValue(v uint16) error {
	if d.Strict && v > MaxCode {
		return fmt.Errorf("%w: %d", ErrValueRange, v)
	}
	return nil
}

func (d *DAC) write(op string, c Command) error {
	if err := d.dev.Tx(c.Bytes(), nil); err != nil {
		return fmt.Errorf("dac7578: %s %s: %w", op, c, err)
	}
	return nil
}

// latch brackets a write with an LDAC pulse: low, write, high.
// The pin is released even if the write fails.
func (d *DAC) latch(op string, c Command) error {
	if err := d.ldac.Out(gpio.Low); err != nil {
		return fmt.Errorf("dac7578: %s: LDAC low: %w", op, err)
	}
	werr := d.write(op, c)
	perr := d.ldac.Out(gpio.High)
	if werr != nil {
		return werr
	}
	if perr != nil {
		return fmt.Errorf("dac7578: %s: LDAC high: %w", op, perr)
	}
	return nil
}

func (d *DAC) read(op string, reg byte) (uint16, error) {
	var buf [2]byte
	if err := d.dev.Tx([]byte{reg}, nil); err != nil {
		return 0, fmt.Errorf("dac7578: %s reg=0x%02X: %w", op, reg, err)
	}
	if err := d.dev.Tx(nil, buf[:]); err != nil {
		return 0, fmt.Errorf("dac7578: %s reg=0x%02X: %w", op, reg, err)
	}
	return DecodeValue(buf), nil
}

// SetChannel writes v to the input register of ch.  If update is true, the
// output is also updated by the same command; otherwise the value stays
// staged until UpdateChannel, UpdateAll, or an LDAC pulse.
func (d *DAC) SetChannel(ch uint8, v uint16, update bool) error {
	if err := d.checkChannel(ch); err != nil {
		return err
	}
	if err := d.checkValue(v); err != nil {
		return err
	}
	return d.write("set channel", EncodeWrite(ch, v, update))
}

// UpdateChannel copies the staged value of ch to its output, pulsing LDAC
// around the command.  The pulse also latches every other channel that does
// not ignore the LDAC pin.
func (d *DAC) UpdateChannel(ch uint8) error {
	if err := d.checkChannel(ch); err != nil {
		return err
	}
	return d.latch("update channel", EncodeUpdate(ch))
}

// SetAll writes v to every input register in one transaction, updating the
// outputs if update is true
func (d *DAC) SetAll(v uint16, update bool) error {
	if err := d.checkValue(v); err != nil {
		return err
	}
	return d.write("set all", EncodeWriteAll(v, update))
}

// UpdateAll copies every staged value to its output, pulsing LDAC around the
// command
func (d *DAC) UpdateAll() error {
	return d.latch("update all", EncodeUpdateAll())
}

// ReadInput returns the staged value of ch
func (d *DAC) ReadInput(ch uint8) (uint16, error) {
	if err := d.checkChannel(ch); err != nil {
		return 0, err
	}
	return d.read("read input", EncodeRead(ch, InputRegister))
}

// ReadOutput returns the value ch is driving, as last latched
func (d *DAC) ReadOutput(ch uint8) (uint16, error) {
	if err := d.checkChannel(ch); err != nil {
		return 0, err
	}
	return d.read("read output", EncodeRead(ch, OutputRegister))
}

// WritePower sets the power mode of ch.  The mode is not read back.
func (d *DAC) WritePower(ch uint8, m PowerMode) error {
	if err := d.checkChannel(ch); err != nil {
		return err
	}
	return d.write("write power", EncodePower(ch, m))
}

// WritePowerAll sets the power mode of every channel
func (d *DAC) WritePowerAll(m PowerMode) error {
	return d.write("write power all", EncodePowerAll(m))
}

// IgnoreLDAC configures the channels set in mask (bit 0 = channel 0) to
// ignore the LDAC pin; channels not in mask respect it.  The setting lives on
// the device and is not cached here.
func (d *DAC) IgnoreLDAC(mask uint8) error {
	return d.write("ignore LDAC", EncodeIgnoreLDAC(mask))
}

// IgnoreLDACAll configures every channel to ignore the LDAC pin
func (d *DAC) IgnoreLDACAll() error {
	return d.write("ignore LDAC all", EncodeIgnoreLDACAll())
}
