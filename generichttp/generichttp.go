// Package generichttp defines the route table and payload types shared by
// the HTTP wrappers around devices
package generichttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/types"
	"log"
	"net/http"
	"sort"

	"github.com/go-chi/chi"
)

// BadRequester is implemented by errors caused by the request rather than
// by the device
type BadRequester interface {
	BadRequest() bool
}

// ErrorStatus maps an error from a device call to 400 if it says the request
// was bad, otherwise 500
func ErrorStatus(err error) int {
	var br BadRequester
	if errors.As(err, &br) && br.BadRequest() {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// MethodPath is an HTTP method and the path it is served on
type MethodPath struct {
	Method string
	Path   string
}

// RouteTable2 maps method+path pairs to handlers
type RouteTable2 map[MethodPath]http.HandlerFunc

// HTTPer is something that exposes a route table
type HTTPer interface {
	RT() RouteTable2
}

// Endpoints lists the routes in the table as "METHOD /path", sorted by path
func (rt RouteTable2) Endpoints() []string {
	keys := make([]MethodPath, 0, len(rt))
	for k := range rt {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Path == keys[j].Path {
			return keys[i].Method < keys[j].Method
		}
		return keys[i].Path < keys[j].Path
	})
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.Method + " " + k.Path
	}
	return out
}

// Bind attaches every route in the table to r, plus GET /endpoints which
// lists them
func (rt RouteTable2) Bind(r chi.Router) {
	for mp, fcn := range rt {
		r.MethodFunc(mp.Method, mp.Path, fcn)
	}
	r.Get("/endpoints", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(rt.Endpoints())
		if err != nil {
			fstr := fmt.Sprintf("error encoding list of routes data to json %q", err)
			log.Println(fstr)
			http.Error(w, fstr, http.StatusInternalServerError)
		}
	})
}

// HumanPayload is a struct containing the basic types
// and a field T which tells which one is populated
type HumanPayload struct {
	T types.BasicKind

	Bool   bool
	Int    int
	Uint   uint64
	Float  float64
	String string
}

// EncodeAndRespond encodes the populated field as {"<kind>": value}
// and writes it to w
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	var v interface{}
	switch hp.T {
	case types.Bool:
		v = BoolT{Bool: hp.Bool}
	case types.Int:
		v = IntT{Int: hp.Int}
	case types.Uint, types.Uint8, types.Uint16, types.Uint32, types.Uint64:
		v = UintT{Uint: hp.Uint}
	case types.Float64:
		v = FloatT{F64: hp.Float}
	case types.String:
		v = StrT{Str: hp.String}
	default:
		http.Error(w, fmt.Sprintf("unsupported payload kind %d", hp.T), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		fstr := fmt.Sprintf("error encoding data to json state %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// BoolT is a struct with a single Bool field
type BoolT struct {
	Bool bool `json:"bool"`
}

// IntT is a struct with a single Int field
type IntT struct {
	Int int `json:"int"`
}

// UintT is a struct with a single Uint field
type UintT struct {
	Uint uint64 `json:"uint"`
}

// FloatT is a struct with a single F64 field
type FloatT struct {
	F64 float64 `json:"f64"`
}

// StrT is a struct with a single Str field
type StrT struct {
	Str string `json:"str"`
}

// GetBool calls a bool-getting function and returns the response
// as json {'bool': value}
func GetBool(fcn func() (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), ErrorStatus(err))
			return
		}
		hp := HumanPayload{T: types.Bool, Bool: b}
		hp.EncodeAndRespond(w, r)
	}
}

// SetBool parses a JSON input of {'bool': value} and
// calls fcn with it
func SetBool(fcn func(bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := BoolT{}
		err := json.NewDecoder(r.Body).Decode(&b)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = fcn(b.Bool)
		if err != nil {
			http.Error(w, err.Error(), ErrorStatus(err))
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Do calls fcn with no input and replies 200 on success
func Do(fcn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fcn()
		if err != nil {
			http.Error(w, err.Error(), ErrorStatus(err))
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
