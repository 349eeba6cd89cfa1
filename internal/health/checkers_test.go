package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dualscribe/dualscribe/pkg/provider/stt/whisper"
)

func TestWhisperChecker(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		if !healthy {
			status = "degraded"
		}
		json.NewEncoder(w).Encode(map[string]any{"status": status, "warmed_up": true})
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("whisper.New: %v", err)
	}

	c := WhisperChecker("whisperx", p)
	if c.Name != "whisperx" {
		t.Errorf("Name = %q", c.Name)
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check() on healthy sidecar: %v", err)
	}

	healthy = false
	if err := c.Check(context.Background()); err == nil {
		t.Error("Check() on degraded sidecar: expected error, got nil")
	}
}

func TestWhisperChecker_SidecarDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately unreachable

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("whisper.New: %v", err)
	}

	if err := WhisperChecker("whisperx", p).Check(context.Background()); err == nil {
		t.Error("Check() on unreachable sidecar: expected error, got nil")
	}
}

func TestStaticChecker(t *testing.T) {
	if err := StaticChecker("config", nil).Check(context.Background()); err != nil {
		t.Errorf("nil checker returned %v", err)
	}

	want := errors.New("missing api key")
	if err := StaticChecker("config", want).Check(context.Background()); !errors.Is(err, want) {
		t.Errorf("Check() = %v, want %v", err, want)
	}
}
