package dac7578

import (
	"errors"
	"math"
	"testing"
)

func TestVoltsToCode(t *testing.T) {
	tests := []struct {
		v    float64
		vref float64
		code uint16
		err  error
	}{
		{0, 2.5, 0, nil},
		{1.25, 2.5, 2048, nil},
		{2.5 * 4095 / 4096, 2.5, 4095, nil},
		{2.5, 2.5, 0, ErrVoltageTooHigh},
		{-0.1, 2.5, 0, ErrVoltageTooLow},
		{2.5, 5, 2048, nil},
		{math.NaN(), 2.5, 0, ErrVoltageNaN},
		{1, 0, 0, ErrVref},
		{0, 0, 0, ErrVref},
		{1, -2.5, 0, ErrVref},
		{1, math.NaN(), 0, ErrVref},
	}
	for _, tt := range tests {
		code, err := VoltsToCode(tt.v, tt.vref)
		if !errors.Is(err, tt.err) {
			t.Errorf("%fV: expected error %v, got %v", tt.v, tt.err, err)
			continue
		}
		if err == nil && code != tt.code {
			t.Errorf("%fV: expected code %d, got %d", tt.v, tt.code, code)
		}
	}
}

func TestCodeToVoltsInverse(t *testing.T) {
	for code := uint16(0); code <= MaxCode; code += 7 {
		v := CodeToVolts(code, 2.5)
		back, err := VoltsToCode(v, 2.5)
		if err != nil {
			t.Fatal(err)
		}
		if back != code {
			t.Fatalf("code %d: round trip gave %d", code, back)
		}
	}
	if math.Abs(CodeToVolts(2048, 5)-2.5) > 1e-12 {
		t.Error("expected mid scale to be half of vref")
	}
}

func TestOutputMultiLatchesTogether(t *testing.T) {
	m, dac := newMockDAC()
	dac.Vref = 4.096
	if err := dac.OutputMulti([]int{0, 5}, []float64{1, 2}); err != nil {
		t.Fatal(err)
	}
	if m.Output(0) != 1000 || m.Output(5) != 2000 {
		t.Errorf("expected outputs 1000 and 2000, got %d and %d", m.Output(0), m.Output(5))
	}
}

func TestOutputMultiLengthMismatch(t *testing.T) {
	_, dac := newMockDAC()
	if err := dac.OutputMultiDN([]int{0, 1}, []uint16{1}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestOutputRejectsOutOfRangeVoltage(t *testing.T) {
	m, dac := newMockDAC()
	if err := dac.Output(0, 3); !errors.Is(err, ErrVoltageTooHigh) {
		t.Errorf("expected ErrVoltageTooHigh, got %v", err)
	}
	if m.Transactions() != 0 {
		t.Error("expected nothing written for a rejected voltage")
	}
}

func TestStringAdapters(t *testing.T) {
	m, dac := newMockDAC()
	if err := dac.SetPower(2, "bogus"); !errors.Is(err, ErrUnknownPowerMode) {
		t.Errorf("expected ErrUnknownPowerMode, got %v", err)
	}
	if err := dac.IgnoreLatch([]int{1, 3}); err != nil {
		t.Fatal(err)
	}
	if m.IgnoreMask() != 0x0A {
		t.Errorf("expected mask 0x0A, got 0x%02X", m.IgnoreMask())
	}
	dac.Strict = true
	if err := dac.IgnoreLatch([]int{8}); !errors.Is(err, ErrChannelRange) {
		t.Errorf("expected ErrChannelRange, got %v", err)
	}
}

func TestIntChannelsOutsideByteRejected(t *testing.T) {
	for _, strict := range []bool{false, true} {
		m, dac := newMockDAC()
		dac.Strict = strict
		for _, ch := range []int{-1, 256, 259} {
			errs := []error{
				dac.OutputDN(ch, 1234),
				dac.StageDN(ch, 1234),
				dac.Update(ch),
				dac.SetPower(ch, "on"),
				dac.OutputMultiDN([]int{0, ch}, []uint16{1, 2}),
			}
			_, err := dac.InputDN(ch)
			errs = append(errs, err)
			_, err = dac.OutputReadbackDN(ch)
			errs = append(errs, err)
			for i, err := range errs {
				if !errors.Is(err, ErrChannelRange) {
					t.Errorf("strict=%v channel %d call %d: expected ErrChannelRange, got %v", strict, ch, i, err)
				}
			}
		}
		if m.Transactions() != 0 {
			t.Errorf("strict=%v: expected no bus traffic, got %d transactions", strict, m.Transactions())
		}
	}
}

func TestStrictRejectsChannel8(t *testing.T) {
	m, dac := newMockDAC()
	dac.Strict = true
	if err := dac.OutputDN(8, 1); !errors.Is(err, ErrChannelRange) {
		t.Errorf("expected ErrChannelRange, got %v", err)
	}
	if _, err := dac.InputDN(8); !errors.Is(err, ErrChannelRange) {
		t.Errorf("expected ErrChannelRange, got %v", err)
	}
	if m.Transactions() != 0 {
		t.Error("expected no bus traffic")
	}
}

func TestSetPowerSelectsChannelBit(t *testing.T) {
	m, dac := newMockDAC()
	if err := dac.SetPower(4, "100k"); err != nil {
		t.Fatal(err)
	}
	if err := dac.SetPower(7, "hiz"); err != nil {
		t.Fatal(err)
	}
	for ch := 0; ch < Channels; ch++ {
		want := PowerOn
		switch ch {
		case 4:
			want = PowerDown100K
		case 7:
			want = PowerDownHighZ
		}
		if m.Power(ch) != want {
			t.Errorf("channel %d: expected %s, got %s", ch, want, m.Power(ch))
		}
	}
	if err := dac.SetPower(8, "on"); !errors.Is(err, ErrChannelRange) {
		t.Errorf("channel 8 has no select bit, expected ErrChannelRange, got %v", err)
	}
}

func TestInputErrorsAreBadRequests(t *testing.T) {
	_, dac := newMockDAC()
	dac.Strict = true
	for _, err := range []error{
		dac.OutputDN(9, 0),
		dac.OutputDN(0, 5000),
		dac.SetPowerAll("sideways"),
		dac.OutputMulti([]int{0}, nil),
		dac.Output(0, 99),
	} {
		var bad interface{ BadRequest() bool }
		if !errors.As(err, &bad) || !bad.BadRequest() {
			t.Errorf("expected %v to be a bad request", err)
		}
	}
	if errors.As(ErrVref, new(InputError)) {
		t.Error("a bad reference voltage is configuration, not request input")
	}
}
