package httpapi

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ericogr/hczj3-to-mqtt/pkg/config"
	"github.com/ericogr/hczj3-to-mqtt/pkg/humidity"
	"github.com/ericogr/hczj3-to-mqtt/pkg/sensor"
)

func get(t *testing.T, h *HTTPOutput, path string) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	if strings.HasPrefix(w.Body.String(), "{") {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("GET %s: invalid json %q: %v", path, w.Body.String(), err)
		}
	}
	return w.Code, body
}

func TestHealthz(t *testing.T) {
	h := newHTTPOutput(humidity.New())
	if code, _ := get(t, h, "/healthz"); code != http.StatusOK {
		t.Fatalf("healthz: %d", code)
	}
}

func TestReading(t *testing.T) {
	h := newHTTPOutput(humidity.New())
	if code, _ := get(t, h, "/api/v1/reading"); code != http.StatusNotFound {
		t.Fatalf("reading before publish: %d; want 404", code)
	}

	ts := time.Date(2025, 9, 19, 14, 41, 54, 0, time.UTC)
	readings := []sensor.Reading{
		{Temperature: 5, Impedance: 1900, Humidity: 35, Timestamp: ts},
		{Temperature: 20, Impedance: 7200, Humidity: 20, Timestamp: ts},
	}
	if err := h.Publish(readings); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	code, body := get(t, h, "/api/v1/reading")
	if code != http.StatusOK {
		t.Fatalf("reading: %d", code)
	}
	if body["humidity"] != 20.0 || body["impedance"] != 7200.0 || body["timestamp"] != "2025-09-19T14:41:54Z" {
		t.Fatalf("reading body: %v", body)
	}
}

func TestRH(t *testing.T) {
	for _, legacy := range []bool{true, false} {
		e := humidity.New(humidity.WithLegacyAnchorReuse(legacy))
		h := newHTTPOutput(e)
		code, body := get(t, h, "/api/v1/rh?temperature=7.5&impedance=700")
		if code != http.StatusOK {
			t.Fatalf("rh: %d", code)
		}
		got, _ := body["humidity"].(float64)
		if want := e.EstimateRH(7.5, 700); math.Abs(got-want) > 1e-9 {
			t.Fatalf("legacy=%v humidity = %v; want %v", legacy, got, want)
		}
	}
}

func TestRHBadInput(t *testing.T) {
	h := newHTTPOutput(humidity.New())
	for _, path := range []string{
		"/api/v1/rh?impedance=700",
		"/api/v1/rh?temperature=abc&impedance=700",
		"/api/v1/rh?temperature=20&impedance=",
		"/api/v1/rh?temperature=NaN&impedance=700",
		"/api/v1/rh?temperature=20&impedance=NaN",
		"/api/v1/rh?temperature=Inf&impedance=700",
		"/api/v1/rh?temperature=20&impedance=-Inf",
	} {
		code, body := get(t, h, path)
		if code != http.StatusBadRequest || body["error"] == nil {
			t.Fatalf("GET %s: %d %v; want 400 with error", path, code, body)
		}
	}
}

func TestNewHTTPServe(t *testing.T) {
	out, err := NewHTTP(config.HTTPConfig{Listen: "127.0.0.1:0"}, humidity.New())
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
