package daq_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/golaborate-dac7578/generichttp/daq"
	"github.com/nasa-jpl/golaborate-dac7578/ti/dac7578"
)

func newServer() (*dac7578.Mock, *dac7578.DAC, http.Handler) {
	m := dac7578.NewMock(0)
	d := dac7578.New(m, 0, m)
	d.Strict = true
	r := chi.NewRouter()
	daq.NewHTTPDAC(d).RT().Bind(r)
	return m, d, r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAllRoutesBound(t *testing.T) {
	_, d, _ := newServer()
	got := strings.Join(daq.NewHTTPDAC(d).RT().Endpoints(), "\n")
	for _, want := range []string{
		"POST /output", "POST /output-dn", "POST /output-multi", "POST /output-multi-dn",
		"POST /stage-dn", "POST /update", "POST /update-all",
		"GET /input-dn", "GET /output-dn",
		"POST /power", "POST /power-all", "POST /ignore-ldac", "POST /ignore-ldac-all",
	} {
		if !strings.Contains(got, want+"\n") && !strings.HasSuffix(got, want) {
			t.Errorf("route %q not bound", want)
		}
	}
}

type basic struct{ ch int }

func (b *basic) Output(ch int, v float64) error   { b.ch = ch; return nil }
func (b *basic) OutputDN(ch int, dn uint16) error { return errors.New("bus on fire") }

func TestBasicDACOnlyGetsBasicRoutes(t *testing.T) {
	rt := daq.NewHTTPDAC(&basic{}).RT()
	if len(rt) != 2 {
		t.Errorf("expected 2 routes, got %v", rt.Endpoints())
	}
}

func TestOutputDN(t *testing.T) {
	m, _, h := newServer()
	w := do(h, http.MethodPost, "/output-dn", `{"channel":3,"dn":4095}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	if m.Output(3) != 4095 {
		t.Errorf("expected channel 3 at 4095, got %d", m.Output(3))
	}
}

func TestOutputVolts(t *testing.T) {
	m, _, h := newServer()
	w := do(h, http.MethodPost, "/output", `{"channel":0,"voltage":1.25}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	if m.Output(0) != 2048 {
		t.Errorf("expected mid scale, got %d", m.Output(0))
	}
	w = do(h, http.MethodPost, "/output", `{"channel":0,"voltage":-1}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative voltage: expected 400, got %d", w.Code)
	}
}

func TestStageUpdateReadback(t *testing.T) {
	_, _, h := newServer()
	if w := do(h, http.MethodPost, "/stage-dn", `{"channel":1,"dn":100}`); w.Code != http.StatusOK {
		t.Fatalf("stage: %d %s", w.Code, w.Body.String())
	}
	w := do(h, http.MethodGet, "/input-dn?channel=1", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"uint":100}` {
		t.Errorf("input readback: %s", got)
	}
	w = do(h, http.MethodGet, "/output-dn?channel=1", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"uint":0}` {
		t.Errorf("output before update: %s", got)
	}
	if w := do(h, http.MethodPost, "/update", `{"channel":1}`); w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, w.Body.String())
	}
	w = do(h, http.MethodGet, "/output-dn?channel=1", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"uint":100}` {
		t.Errorf("output after update: %s", got)
	}
}

func TestOutputMultiDN(t *testing.T) {
	m, _, h := newServer()
	w := do(h, http.MethodPost, "/output-multi-dn", `{"channel":[2,5],"dn":[10,20]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	if m.Output(2) != 10 || m.Output(5) != 20 {
		t.Errorf("expected 10 and 20, got %d and %d", m.Output(2), m.Output(5))
	}
	w = do(h, http.MethodPost, "/output-multi-dn", `{"channel":[2,5],"dn":[10]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("length mismatch: expected 400, got %d", w.Code)
	}
}

func TestPowerAndLatchMask(t *testing.T) {
	m, _, h := newServer()
	if w := do(h, http.MethodPost, "/power", `{"channel":4,"mode":"100k"}`); w.Code != http.StatusOK {
		t.Fatalf("power: %d %s", w.Code, w.Body.String())
	}
	if m.Power(4) != dac7578.PowerDown100K {
		t.Errorf("expected channel 4 at 100k, got %s", m.Power(4))
	}
	if w := do(h, http.MethodPost, "/power", `{"channel":4,"mode":"sideways"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown mode: expected 400, got %d", w.Code)
	}
	if w := do(h, http.MethodPost, "/power-all", `{"mode":"hiz"}`); w.Code != http.StatusOK {
		t.Fatalf("power-all: %d", w.Code)
	}
	if w := do(h, http.MethodPost, "/ignore-ldac", `{"channel":[0,7]}`); w.Code != http.StatusOK {
		t.Fatalf("ignore-ldac: %d", w.Code)
	}
	if m.IgnoreMask() != 0x81 {
		t.Errorf("expected mask 0x81, got 0x%02X", m.IgnoreMask())
	}
	if w := do(h, http.MethodPost, "/ignore-ldac-all", ""); w.Code != http.StatusOK {
		t.Fatalf("ignore-ldac-all: %d", w.Code)
	}
	if m.IgnoreMask() != 0xFF {
		t.Errorf("expected mask 0xFF, got 0x%02X", m.IgnoreMask())
	}
}

func TestBadRequests(t *testing.T) {
	_, _, h := newServer()
	tests := []struct {
		method, path, body string
		code               int
	}{
		{http.MethodPost, "/output-dn", `{"channel":`, http.StatusBadRequest},
		{http.MethodPost, "/output-dn", `{"channel":1,"dn":-4}`, http.StatusBadRequest},
		{http.MethodGet, "/input-dn", "", http.StatusBadRequest},
		{http.MethodGet, "/input-dn?channel=x", "", http.StatusBadRequest},
		{http.MethodGet, "/input-dn?channel=9", "", http.StatusBadRequest},
		{http.MethodPost, "/output-dn", `{"channel":8,"dn":1}`, http.StatusBadRequest},
		{http.MethodPost, "/output-dn", `{"channel":1,"dn":4096}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := do(h, tt.method, tt.path, tt.body)
		if w.Code != tt.code {
			t.Errorf("%s %s %s: expected %d, got %d", tt.method, tt.path, tt.body, tt.code, w.Code)
		}
	}
}

func TestBusFailureIs500(t *testing.T) {
	m, _, h := newServer()
	m.FailNext = errors.New("nack")
	w := do(h, http.MethodPost, "/update-all", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "nack") {
		t.Errorf("expected the bus error in the body, got %q", w.Body.String())
	}
}

func TestChannelsOutsideByteAre400(t *testing.T) {
	m, _, h := newServer()
	tests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/output-dn", `{"channel":256,"dn":4095}`},
		{http.MethodPost, "/stage-dn", `{"channel":-1,"dn":1}`},
		{http.MethodPost, "/output-multi-dn", `{"channel":[1,256],"dn":[5,5]}`},
		{http.MethodGet, "/input-dn?channel=259", ""},
		{http.MethodGet, "/output-dn?channel=-1", ""},
	}
	for _, tt := range tests {
		w := do(h, tt.method, tt.path, tt.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s %s %s: expected 400, got %d", tt.method, tt.path, tt.body, w.Code)
		}
	}
	for ch := 0; ch < dac7578.Channels; ch++ {
		if m.Output(ch) != 0 || m.Input(ch) != 0 {
			t.Errorf("channel %d written: input %d output %d", ch, m.Input(ch), m.Output(ch))
		}
	}
}
