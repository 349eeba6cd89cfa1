package whisper_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dualscribe/dualscribe/pkg/provider/stt"
	"github.com/dualscribe/dualscribe/pkg/provider/stt/whisper"
)

func TestTranscribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcribe" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("language"); got != "de" {
			t.Errorf("language = %q, want de", got)
		}
		if got := r.FormValue("speed_mode"); got != "turbo" {
			t.Errorf("speed_mode = %q, want turbo", got)
		}
		prompt := r.FormValue("initial_prompt")
		if !strings.Contains(prompt, "Satzzeichen") {
			t.Errorf("initial_prompt missing format hint: %q", prompt)
		}
		if !strings.HasSuffix(prompt, "Fachbegriffe der Radiologie.") {
			t.Errorf("initial_prompt missing user prompt: %q", prompt)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "diktat.wav" {
			t.Errorf("filename = %q, want diktat.wav", hdr.Filename)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"text":     "Der Patient hat kein Fieber.",
			"language": "de",
			"mode":     "turbo",
			"duration": 1.5,
			"attempt":  1,
		})
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL, whisper.WithSpeedMode(whisper.SpeedModeTurbo))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tr, err := p.Transcribe(context.Background(), strings.NewReader("RIFFfake"), "diktat.wav", stt.Options{
		InitialPrompt: "Fachbegriffe der Radiologie.",
	})
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}

	if got, want := tr.Text, "Der Patient hat kein Fieber."; got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
	if tr.Language != "de" {
		t.Errorf("Language = %q, want de", tr.Language)
	}
	if tr.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", tr.Duration)
	}
}

func TestTranscribe_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"error": "Transcription failed after all retries", "message": "CUDA out of memory"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"text": "Befund unauffällig.", "language": "de"})
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL, whisper.WithRetryWait(time.Millisecond))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tr, err := p.Transcribe(context.Background(), strings.NewReader("audio"), "a.wav", stt.Options{})
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if tr.Text != "Befund unauffällig." {
		t.Errorf("Text = %q", tr.Text)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestTranscribe_AllAttemptsFail(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"error": "model crashed"})
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL, whisper.WithRetries(2), whisper.WithRetryWait(time.Millisecond))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	_, err = p.Transcribe(context.Background(), strings.NewReader("audio"), "a.wav", stt.Options{})
	if err == nil {
		t.Fatal("Transcribe() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "model crashed") {
		t.Errorf("error %q does not carry the sidecar message", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server saw %d calls, want 2", got)
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	t.Parallel()

	p, err := whisper.New("http://localhost:5000")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), strings.NewReader(""), "a.wav", stt.Options{}); err == nil {
		t.Error("Transcribe() with empty audio: expected error, got nil")
	}
}

func TestHealthAndWarmup(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			json.NewEncoder(w).Encode(map[string]any{
				"status": "healthy", "device": "cuda", "model": "large-v3",
				"language": "de", "warmed_up": true, "turbo_available": true,
			})
		case "/warmup":
			if r.Method != http.MethodPost {
				t.Errorf("warmup method = %s, want POST", r.Method)
			}
			json.NewEncoder(w).Encode(map[string]any{"status": "success"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p, err := whisper.New(srv.URL)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	hs, err := p.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	if hs.Status != "healthy" || !hs.WarmedUp {
		t.Errorf("Health() = %+v", hs)
	}

	if err := p.Warmup(context.Background()); err != nil {
		t.Errorf("Warmup() error: %v", err)
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	p, err := whisper.New("http://localhost:5000")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if got := p.Name(); got != "whisperx" {
		t.Errorf("Name() = %q, want whisperx", got)
	}
}
