package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPostJSON_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		var in map[string]int
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"double": in["n"] * 2})
	}))
	t.Cleanup(srv.Close)

	var out struct {
		Double int `json:"double"`
	}
	if err := PostJSON(context.Background(), NewOutbound(time.Second), srv.URL, map[string]int{"n": 21}, &out); err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if out.Double != 42 {
		t.Fatalf("got %d want 42", out.Double)
	}
}

func TestPostJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	err := PostJSON(context.Background(), srv.Client(), srv.URL, struct{}{}, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Body != "quota exceeded" || !IsStatus(err, http.StatusTooManyRequests) {
		t.Fatalf("unexpected status error %+v", se)
	}
}

func TestNewOutbound_DefaultTimeout(t *testing.T) {
	if c := NewOutbound(0); c.Timeout != 30*time.Second {
		t.Fatalf("timeout=%v want 30s", c.Timeout)
	}
}
