package dac7578

import (
	"errors"
	"fmt"
	"math"

	"github.com/nasa-jpl/golaborate-dac7578/util"
)

// DefaultVref is the reference voltage assumed by New, in volts
const DefaultVref = 2.5

const (
	// ErrVoltageTooLow is generated when a negative voltage is commanded
	ErrVoltageTooLow = InputError("commanded voltage below lower limit")

	// ErrVoltageTooHigh is generated when a voltage above full scale is commanded
	ErrVoltageTooHigh = InputError("commanded voltage above upper limit")

	// ErrVoltageNaN is generated when the commanded voltage is not a number
	ErrVoltageNaN = InputError("commanded voltage is not a number")

	// ErrLengthMismatch is generated when the channel and value slices of a
	// multi-channel output differ in length
	ErrLengthMismatch = InputError("channels and values must be the same length")
)

// ErrVref is generated when the reference voltage is not a positive number
var ErrVref = errors.New("dac7578: reference voltage must be positive")

// VoltsToCode converts a voltage to the nearest code for a reference of vref volts.
// Vout = code / 4096 * vref, so full scale is one LSB below vref.
func VoltsToCode(v, vref float64) (uint16, error) {
	if math.IsNaN(vref) || vref <= 0 {
		return 0, ErrVref
	}
	if math.IsNaN(v) {
		return 0, ErrVoltageNaN
	}
	if v < 0 {
		return 0, ErrVoltageTooLow
	}
	dn := math.Round(v / vref * (MaxCode + 1))
	if dn > MaxCode {
		return 0, ErrVoltageTooHigh
	}
	return uint16(dn), nil
}

// CodeToVolts is the inverse of VoltsToCode
func CodeToVolts(code uint16, vref float64) float64 {
	return float64(code&MaxCode) / (MaxCode + 1) * vref
}

// the methods below adapt the DAC to the int/string signatures used by the
// generic HTTP interface in generichttp/daq.

// Output writes a voltage to a channel and updates it immediately
func (d *DAC) Output(channel int, volts float64) error {
	dn, err := VoltsToCode(volts, d.Vref)
	if err != nil {
		return err
	}
	return d.OutputDN(channel, dn)
}

// channel narrows an int channel to the chip's field.  Values that do not
// fit a byte are always rejected; the rest are left to checkChannel.
func (d *DAC) channel(ch int) (uint8, error) {
	if ch < 0 || ch > 0xFF {
		return 0, fmt.Errorf("%w: %d", ErrChannelRange, ch)
	}
	return uint8(ch), d.checkChannel(uint8(ch))
}

// OutputDN writes a code to a channel and updates it immediately
func (d *DAC) OutputDN(channel int, dn uint16) error {
	ch, err := d.channel(channel)
	if err != nil {
		return err
	}
	return d.SetChannel(ch, dn, true)
}

// OutputMulti stages a voltage on each channel, then latches all of them
// with one LDAC pulse
func (d *DAC) OutputMulti(channels []int, volts []float64) error {
	if len(channels) != len(volts) {
		return ErrLengthMismatch
	}
	dns := make([]uint16, len(volts))
	for i, v := range volts {
		dn, err := VoltsToCode(v, d.Vref)
		if err != nil {
			return fmt.Errorf("channel %d: %w", channels[i], err)
		}
		dns[i] = dn
	}
	return d.OutputMultiDN(channels, dns)
}

// OutputMultiDN stages a code on each channel, then latches all of them
// with one LDAC pulse
func (d *DAC) OutputMultiDN(channels []int, dns []uint16) error {
	if len(channels) != len(dns) {
		return ErrLengthMismatch
	}
	for _, ch := range channels {
		if _, err := d.channel(ch); err != nil {
			return err
		}
	}
	for i, ch := range channels {
		if err := d.SetChannel(uint8(ch), dns[i], false); err != nil {
			return err
		}
	}
	return d.UpdateAll()
}

// StageDN writes a code to the input register of a channel without updating it
func (d *DAC) StageDN(channel int, dn uint16) error {
	ch, err := d.channel(channel)
	if err != nil {
		return err
	}
	return d.SetChannel(ch, dn, false)
}

// Update latches the staged value of a channel
func (d *DAC) Update(channel int) error {
	ch, err := d.channel(channel)
	if err != nil {
		return err
	}
	return d.UpdateChannel(ch)
}

// InputDN reads the staged code of a channel
func (d *DAC) InputDN(channel int) (uint16, error) {
	ch, err := d.channel(channel)
	if err != nil {
		return 0, err
	}
	return d.ReadInput(ch)
}

// OutputReadbackDN reads the code a channel is driving
func (d *DAC) OutputReadbackDN(channel int) (uint16, error) {
	ch, err := d.channel(channel)
	if err != nil {
		return 0, err
	}
	return d.ReadOutput(ch)
}

// SetPower sets the power mode of channel 0~7 from its name, see ParsePowerMode.
// The chip reads the select field of the power command as a bitmask, so the
// channel is sent as its bit; WritePower takes the field as is.
func (d *DAC) SetPower(channel int, mode string) error {
	if channel < 0 || channel >= Channels {
		return fmt.Errorf("%w: %d", ErrChannelRange, channel)
	}
	m, err := ParsePowerMode(mode)
	if err != nil {
		return err
	}
	return d.write("write power", EncodePower(1<<channel, m))
}

// SetPowerAll sets the power mode of all channels from its name
func (d *DAC) SetPowerAll(mode string) error {
	m, err := ParsePowerMode(mode)
	if err != nil {
		return err
	}
	return d.WritePowerAll(m)
}

// IgnoreLatch makes the listed channels ignore the LDAC pin and every other
// channel respect it
func (d *DAC) IgnoreLatch(channels []int) error {
	for _, ch := range channels {
		if _, err := d.channel(ch); err != nil {
			return err
		}
	}
	return d.IgnoreLDAC(util.ChannelMask(channels))
}

// IgnoreLatchAll makes every channel ignore the LDAC pin
func (d *DAC) IgnoreLatchAll() error {
	return d.IgnoreLDACAll()
}
