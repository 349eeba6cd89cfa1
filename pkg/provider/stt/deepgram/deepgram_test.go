package deepgram_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dualscribe/dualscribe/pkg/provider/stt"
	"github.com/dualscribe/dualscribe/pkg/provider/stt/deepgram"
)

func TestTranscribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/listen" {
			t.Errorf("path = %s, want /v1/listen", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token dg-test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "audio/wav" {
			t.Errorf("Content-Type = %q, want audio/wav", got)
		}
		q := r.URL.Query()
		if q.Get("model") != "nova-2" || q.Get("language") != "de" {
			t.Errorf("query = %v", q)
		}
		if q.Get("smart_format") != "true" || q.Get("punctuate") != "true" {
			t.Errorf("formatting params missing: %v", q)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "RIFFfake" {
			t.Errorf("body = %q", body)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"metadata": map[string]any{"duration": 2.25},
			"results": map[string]any{
				"channels": []map[string]any{
					{
						"alternatives": []map[string]any{
							{"transcript": "Der Patient hat kein Fieber.", "confidence": 0.98},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	p, err := deepgram.New("dg-test-key", deepgram.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tr, err := p.Transcribe(context.Background(), strings.NewReader("RIFFfake"), "diktat.wav", stt.Options{})
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}

	if got, want := tr.Text, "Der Patient hat kein Fieber."; got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
	if tr.Language != "de" {
		t.Errorf("Language = %q, want de", tr.Language)
	}
	if tr.Duration != 2250*time.Millisecond {
		t.Errorf("Duration = %v, want 2.25s", tr.Duration)
	}
}

func TestTranscribe_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"err_code":"INVALID_AUTH","err_msg":"Invalid credentials."}`)
	}))
	defer srv.Close()

	p, err := deepgram.New("bad-key", deepgram.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	_, err = p.Transcribe(context.Background(), strings.NewReader("audio"), "a.wav", stt.Options{})
	if err == nil {
		t.Fatal("Transcribe() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error %q does not mention the status code", err)
	}
}

func TestTranscribe_NoAlternatives(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"metadata": map[string]any{"duration": 0.0},
			"results":  map[string]any{"channels": []any{}},
		})
	}))
	defer srv.Close()

	p, err := deepgram.New("key", deepgram.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if _, err := p.Transcribe(context.Background(), strings.NewReader("audio"), "a.wav", stt.Options{}); err == nil {
		t.Error("Transcribe() with empty channels: expected error, got nil")
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := deepgram.New(""); err == nil {
		t.Error("New() with empty apiKey: expected error, got nil")
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	p, err := deepgram.New("key")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if got := p.Name(); got != "deepgram" {
		t.Errorf("Name() = %q, want deepgram", got)
	}
}
