package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/dualscribe/dualscribe/internal/arbiter"
	"github.com/dualscribe/dualscribe/internal/observe"
	"github.com/dualscribe/dualscribe/internal/server"
	"github.com/dualscribe/dualscribe/pkg/provider/llm"
	"github.com/dualscribe/dualscribe/pkg/provider/stt"
)

// stubSTT returns a fixed transcript or error.
type stubSTT struct {
	name string
	text string
	err  error
}

func (s *stubSTT) Name() string { return s.name }

func (s *stubSTT) Transcribe(_ context.Context, _ io.Reader, _ string, _ stt.Options) (*stt.Transcript, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &stt.Transcript{Text: s.text, Language: "de"}, nil
}

// stubLLM returns a fixed arbitration reply.
type stubLLM struct {
	reply string
}

func (s *stubLLM) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: s.reply}, nil
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newTestServer(t *testing.T, a, b *stubSTT, opts ...server.Option) http.Handler {
	t.Helper()
	opts = append([]server.Option{server.WithMetrics(testMetrics(t))}, opts...)
	return server.New(a, b, opts...).Handler()
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestScoreEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &stubSTT{name: "a"}, &stubSTT{name: "b"})

	rec := postJSON(t, h, "/v1/score", map[string]string{
		"original":  "Der Patient hat Fieber.",
		"corrected": "Der Patient hat kein Fieber.",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var score struct {
		Percent     int    `json:"percent"`
		Level       string `json:"level"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&score); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if score.Percent <= 0 || score.Percent > 100 {
		t.Errorf("percent = %d, want in (0, 100]", score.Percent)
	}
	if score.Level == "" || score.Description == "" {
		t.Errorf("level = %q, description = %q, want both non-empty", score.Level, score.Description)
	}
}

func TestScoreEndpoint_BadJSON(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &stubSTT{name: "a"}, &stubSTT{name: "b"})

	req := httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReconcileEndpoint(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &stubSTT{name: "a"}, &stubSTT{name: "b"})

	rec := postJSON(t, h, "/v1/reconcile", map[string]string{
		"text_a":     "Der Patient hat Fieber.",
		"text_b":     "Der Patient hat kein Fieber.",
		"provider_a": "whisperx",
		"provider_b": "deepgram",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		MarkedText     string `json:"marked_text"`
		HasDifferences bool   `json:"has_differences"`
		Markers        []struct {
			A         string `json:"a"`
			B         string `json:"b"`
			Homophone bool   `json:"homophone"`
		} `json:"markers"`
		Score struct {
			Percent int `json:"percent"`
		} `json:"score"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.HasDifferences {
		t.Error("HasDifferences = false, want true")
	}
	if !strings.Contains(resp.MarkedText, "<<<A:") {
		t.Errorf("marked text missing marker: %q", resp.MarkedText)
	}
	if len(resp.Markers) == 0 {
		t.Error("no marker diagnoses returned")
	}
	if resp.Score.Percent <= 0 {
		t.Errorf("score percent = %d, want > 0", resp.Score.Percent)
	}
}

func TestReconcileEndpoint_IdenticalTexts(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &stubSTT{name: "a"}, &stubSTT{name: "b"})

	rec := postJSON(t, h, "/v1/reconcile", map[string]string{
		"text_a": "Befund unauffällig.",
		"text_b": "Befund unauffällig.",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		MarkedText     string `json:"marked_text"`
		HasDifferences bool   `json:"has_differences"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.HasDifferences {
		t.Error("HasDifferences = true for identical texts")
	}
	if resp.MarkedText != "Befund unauffällig." {
		t.Errorf("MarkedText = %q", resp.MarkedText)
	}
}

func TestReconcileEndpoint_BothEmpty(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &stubSTT{name: "a"}, &stubSTT{name: "b"})

	rec := postJSON(t, h, "/v1/reconcile", map[string]string{"text_a": "", "text_b": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// dictateRequest builds a multipart body with an audio file field.
func dictateRequest(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "diktat.wav")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("RIFFfake")); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/dictate", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDictate_WithoutArbiter(t *testing.T) {
	t.Parallel()

	h := newTestServer(t,
		&stubSTT{name: "whisperx", text: "Der Patient hat Fieber."},
		&stubSTT{name: "deepgram", text: "Der Patient hat kein Fieber."},
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, dictateRequest(t, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		Text       string `json:"text"`
		Arbitrated bool   `json:"arbitrated"`
		TextA      string `json:"text_a"`
		TextB      string `json:"text_b"`
		ProviderA  string `json:"provider_a"`
		ProviderB  string `json:"provider_b"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Without an arbiter the markers stay in the text.
	if !strings.Contains(resp.Text, "<<<A:") {
		t.Errorf("text missing markers: %q", resp.Text)
	}
	if resp.Arbitrated {
		t.Error("Arbitrated = true without an arbiter")
	}
	if resp.ProviderA != "whisperx" || resp.ProviderB != "deepgram" {
		t.Errorf("providers = (%q, %q)", resp.ProviderA, resp.ProviderB)
	}
	if resp.TextA != "Der Patient hat Fieber." {
		t.Errorf("TextA = %q", resp.TextA)
	}
}

func TestDictate_WithArbiter(t *testing.T) {
	t.Parallel()

	arb := arbiter.New(&stubLLM{reply: "Der Patient hat kein Fieber."})
	h := newTestServer(t,
		&stubSTT{name: "whisperx", text: "Der Patient hat Fieber."},
		&stubSTT{name: "deepgram", text: "Der Patient hat kein Fieber."},
		server.WithArbiter(arb),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, dictateRequest(t, map[string]string{"language": "de"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		Text       string `json:"text"`
		Arbitrated bool   `json:"arbitrated"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, want := resp.Text, "Der Patient hat kein Fieber."; got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
	if !resp.Arbitrated {
		t.Error("Arbitrated = false, want true")
	}
}

func TestDictate_AgreementSkipsArbitration(t *testing.T) {
	t.Parallel()

	arb := arbiter.New(&stubLLM{reply: "should not matter"})
	h := newTestServer(t,
		&stubSTT{name: "whisperx", text: "Befund unauffällig."},
		&stubSTT{name: "deepgram", text: "Befund unauffällig."},
		server.WithArbiter(arb),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, dictateRequest(t, nil))

	var resp struct {
		Text       string `json:"text"`
		Arbitrated bool   `json:"arbitrated"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != "Befund unauffällig." {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Arbitrated {
		t.Error("Arbitrated = true for agreeing transcripts")
	}
}

func TestDictate_ProviderFailure(t *testing.T) {
	t.Parallel()

	h := newTestServer(t,
		&stubSTT{name: "whisperx", text: "ok"},
		&stubSTT{name: "deepgram", err: errors.New("api down")},
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, dictateRequest(t, nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}

	var resp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Error, "deepgram") {
		t.Errorf("error %q does not name the failing provider", resp.Error)
	}
}

func TestDictate_MissingFile(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &stubSTT{name: "a"}, &stubSTT{name: "b"})

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	mw.WriteField("language", "de")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/dictate", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()

	h := newTestServer(t, &stubSTT{name: "a"}, &stubSTT{name: "b"})

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}
