// Package daq provides a generic HTTP interface to DAC devices
//
// This is not the last word in speed, due to HTTP having reasonable latency in
// most client languages, but it is the last word in ease of use.
package daq

import (
	"encoding/json"
	"go/types"
	"net/http"
	"strconv"

	"github.com/nasa-jpl/golaborate-dac7578/generichttp"
)

// DAC is a model for simple digital to analog converter
type DAC interface {
	// Output sends a voltage on a given channel
	Output(int, float64) error

	// OutputDN sends a data number on a given channel
	OutputDN(int, uint16) error
}

// HTTPBasicDAC adds routes for basic DAC operation to a table
func HTTPBasicDAC(iface DAC, table generichttp.RouteTable2) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/output"}] = Output(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/output-dn"}] = OutputDN(iface)
}

type channel struct {
	Channel int `json:"channel"`
}

type channelVoltage struct {
	Channel int `json:"channel"`

	Voltage float64 `json:"voltage"`
}

type channelDN struct {
	Channel int `json:"channel"`

	DN uint16 `json:"dn"`
}

type channelMode struct {
	Channel int `json:"channel"`

	Mode string `json:"mode"`
}

type mode struct {
	Mode string `json:"mode"`
}

type channels struct {
	Channels []int `json:"channel"`
}

// decode reads the JSON body of r into v, replying 400 if it is malformed
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func reply(w http.ResponseWriter, err error) {
	if err != nil {
		http.Error(w, err.Error(), generichttp.ErrorStatus(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Output returns an HTTP handlerfunc that will write a voltage to a channel
func Output(d DAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input channelVoltage
		if !decode(w, r, &input) {
			return
		}
		reply(w, d.Output(input.Channel, input.Voltage))
	}
}

// OutputDN returns an HTTP handlerfunc that will write a data number to a channel
func OutputDN(d DAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input channelDN
		if !decode(w, r, &input) {
			return
		}
		reply(w, d.OutputDN(input.Channel, input.DN))
	}
}

// MultiChannelDAC allows multiple channels to be written
// at once
type MultiChannelDAC interface {
	DAC

	// OutputMulti writes a sequence of voltages to a sequence of channels
	OutputMulti([]int, []float64) error

	// OutputMultiDN outputs a sequence of data numbers to a sequence of channels
	OutputMultiDN([]int, []uint16) error
}

// HTTPMultiChannel adds routes for multi channel output to the table
func HTTPMultiChannel(iface MultiChannelDAC, table generichttp.RouteTable2) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/output-multi"}] = OutputMulti(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/output-multi-dn"}] = OutputMultiDN(iface)
}

type channelsVoltages struct {
	Channels []int `json:"channel"`

	Voltages []float64 `json:"voltage"`
}

type channelsDNs struct {
	Channels []int `json:"channel"`

	DNs []uint16 `json:"dn"`
}

// OutputMulti returns an HTTP handlerfunc that will write voltages to several channels
func OutputMulti(d MultiChannelDAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input channelsVoltages
		if !decode(w, r, &input) {
			return
		}
		reply(w, d.OutputMulti(input.Channels, input.Voltages))
	}
}

// OutputMultiDN returns an HTTP handlerfunc that will write data numbers to several channels
func OutputMultiDN(d MultiChannelDAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input channelsDNs
		if !decode(w, r, &input) {
			return
		}
		reply(w, d.OutputMultiDN(input.Channels, input.DNs))
	}
}

// StagedDAC has input registers that can be written ahead of
// the outputs and latched later
type StagedDAC interface {
	// StageDN writes the input register of a channel without updating its output
	StageDN(int, uint16) error

	// Update copies the input register of a channel to its output
	Update(int) error

	// UpdateAll copies every input register to its output
	UpdateAll() error
}

// HTTPStaged adds routes for staged writes to the table
func HTTPStaged(iface StagedDAC, table generichttp.RouteTable2) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/stage-dn"}] = StageDN(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/update"}] = Update(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/update-all"}] = generichttp.Do(iface.UpdateAll)
}

// StageDN returns an HTTP handlerfunc that stages a data number on a channel
func StageDN(d StagedDAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input channelDN
		if !decode(w, r, &input) {
			return
		}
		reply(w, d.StageDN(input.Channel, input.DN))
	}
}

// Update returns an HTTP handlerfunc that latches one channel
func Update(d StagedDAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input channel
		if !decode(w, r, &input) {
			return
		}
		reply(w, d.Update(input.Channel))
	}
}

// ReadbackDAC can report the contents of its registers
type ReadbackDAC interface {
	// InputDN returns the staged data number of a channel
	InputDN(int) (uint16, error)

	// OutputReadbackDN returns the data number a channel is driving
	OutputReadbackDN(int) (uint16, error)
}

// HTTPReadback adds routes for register readback to the table
func HTTPReadback(iface ReadbackDAC, table generichttp.RouteTable2) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/input-dn"}] = ReadDN(iface.InputDN)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/output-dn"}] = ReadDN(iface.OutputReadbackDN)
}

// ReadDN returns an HTTP handlerfunc that reads the channel given by the
// "channel" query parameter and responds {"uint": dn}
func ReadDN(fcn func(int) (uint16, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := strconv.Atoi(r.URL.Query().Get("channel"))
		if err != nil {
			http.Error(w, "channel query parameter: "+err.Error(), http.StatusBadRequest)
			return
		}
		dn, err := fcn(ch)
		if err != nil {
			http.Error(w, err.Error(), generichttp.ErrorStatus(err))
			return
		}
		hp := generichttp.HumanPayload{T: types.Uint16, Uint: uint64(dn)}
		hp.EncodeAndRespond(w, r)
	}
}

// PoweredDAC can power channels down
type PoweredDAC interface {
	// SetPower sets the power mode of one channel
	SetPower(int, string) error

	// SetPowerAll sets the power mode of every channel
	SetPowerAll(string) error
}

// HTTPPowered adds routes for power control to the table
func HTTPPowered(iface PoweredDAC, table generichttp.RouteTable2) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/power"}] = SetPower(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/power-all"}] = SetPowerAll(iface)
}

// SetPower returns an HTTP handlerfunc that sets the power mode of a channel
func SetPower(d PoweredDAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input channelMode
		if !decode(w, r, &input) {
			return
		}
		reply(w, d.SetPower(input.Channel, input.Mode))
	}
}

// SetPowerAll returns an HTTP handlerfunc that sets the power mode of every channel
func SetPowerAll(d PoweredDAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input mode
		if !decode(w, r, &input) {
			return
		}
		reply(w, d.SetPowerAll(input.Mode))
	}
}

// LatchedDAC has a hardware latch that channels can be excluded from
type LatchedDAC interface {
	// IgnoreLatch excludes the listed channels from the latch and
	// includes all others
	IgnoreLatch([]int) error

	// IgnoreLatchAll excludes every channel from the latch
	IgnoreLatchAll() error
}

// HTTPLatched adds routes for latch masking to the table
func HTTPLatched(iface LatchedDAC, table generichttp.RouteTable2) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/ignore-ldac"}] = IgnoreLatch(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/ignore-ldac-all"}] = generichttp.Do(iface.IgnoreLatchAll)
}

// IgnoreLatch returns an HTTP handlerfunc that sets the latch mask
func IgnoreLatch(d LatchedDAC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input channels
		if !decode(w, r, &input) {
			return
		}
		reply(w, d.IgnoreLatch(input.Channels))
	}
}

// HTTPDAC is a type that allows setting up a DAC satisfying any combination
// of the interfaces in this package to an HTTP interface
type HTTPDAC struct {
	d DAC

	RouteTable generichttp.RouteTable2
}

// NewHTTPDAC sets up an HTTP interface to a DAC
func NewHTTPDAC(d DAC) HTTPDAC {
	w := HTTPDAC{d: d}
	rt := generichttp.RouteTable2{}
	HTTPBasicDAC(d, rt)
	if md, ok := (d).(MultiChannelDAC); ok {
		HTTPMultiChannel(md, rt)
	}
	if sd, ok := (d).(StagedDAC); ok {
		HTTPStaged(sd, rt)
	}
	if rd, ok := (d).(ReadbackDAC); ok {
		HTTPReadback(rd, rt)
	}
	if pd, ok := (d).(PoweredDAC); ok {
		HTTPPowered(pd, rt)
	}
	if ld, ok := (d).(LatchedDAC); ok {
		HTTPLatched(ld, rt)
	}
	w.RouteTable = rt
	return w
}

// RT satisfies generichttp.HTTPer
func (h HTTPDAC) RT() generichttp.RouteTable2 {
	return h.RouteTable
}
