// Package whisper provides an stt.Provider that talks to a WhisperX
// transcription sidecar over HTTP.
//
// The sidecar exposes a small REST surface: POST /transcribe takes the audio
// as multipart form data and returns the transcript as JSON, GET /health
// reports model state, and POST /warmup preloads the models so the first
// dictation does not pay the cold-start cost.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dualscribe/dualscribe/pkg/provider/stt"
)

// SpeedMode selects the transcription profile of the sidecar.
type SpeedMode string

const (
	// SpeedModeAuto lets the sidecar pick based on the loaded model.
	SpeedModeAuto SpeedMode = "auto"
	// SpeedModeTurbo favors latency over word-level timestamps.
	SpeedModeTurbo SpeedMode = "turbo"
	// SpeedModePrecision runs the slower aligned pipeline.
	SpeedModePrecision SpeedMode = "precision"
)

// formatPrompt is always prepended to the initial prompt so the model keeps
// parentheses and punctuation the dictating physician speaks out loud.
const formatPrompt = "Klammern (so wie diese) und Satzzeichen wie Punkt, Komma, Doppelpunkt und Semikolon sind wichtig."

const (
	defaultRetries   = 3
	defaultRetryWait = 2 * time.Second
	defaultLanguage  = "de"
)

// Provider implements stt.Provider against a WhisperX sidecar.
type Provider struct {
	baseURL   string
	client    *http.Client
	language  string
	speedMode SpeedMode
	retries   int
	retryWait time.Duration
}

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithHTTPClient replaces the default HTTP client. Transcription of long
// recordings can take minutes, so the default client has no timeout and
// relies on the request context.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// WithLanguage sets the default transcription language. Defaults to "de".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithSpeedMode sets the transcription profile. Defaults to SpeedModeAuto.
func WithSpeedMode(m SpeedMode) Option {
	return func(p *Provider) {
		p.speedMode = m
	}
}

// WithRetries sets how many attempts a transcription gets before giving up.
// Defaults to 3.
func WithRetries(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.retries = n
		}
	}
}

// WithRetryWait sets the pause between attempts. Defaults to 2s.
func WithRetryWait(d time.Duration) Option {
	return func(p *Provider) {
		p.retryWait = d
	}
}

// New constructs a Provider for the sidecar at baseURL, e.g.
// "http://localhost:5000".
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("whisper: baseURL must not be empty")
	}

	p := &Provider{
		baseURL:   baseURL,
		client:    &http.Client{},
		language:  defaultLanguage,
		speedMode: SpeedModeAuto,
		retries:   defaultRetries,
		retryWait: defaultRetryWait,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string {
	return "whisperx"
}

// transcribeResponse mirrors the sidecar's /transcribe JSON body.
type transcribeResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Mode     string  `json:"mode"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error"`
	Message  string  `json:"message"`
}

// Transcribe implements stt.Provider. The audio is buffered in memory so
// failed attempts can be retried with the same bytes.
func (p *Provider) Transcribe(ctx context.Context, audio io.Reader, filename string, opts stt.Options) (*stt.Transcript, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("whisper: read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("whisper: audio is empty")
	}

	var lastErr error
	for attempt := 1; attempt <= p.retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("whisper: %w", ctx.Err())
			case <-time.After(p.retryWait):
			}
		}

		tr, err := p.transcribeOnce(ctx, data, filename, opts)
		if err == nil {
			return tr, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("whisper: all %d attempts failed: %w", p.retries, lastErr)
}

func (p *Provider) transcribeOnce(ctx context.Context, data []byte, filename string, opts stt.Options) (*stt.Transcript, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = p.language
	}
	fields := map[string]string{
		"language":   lang,
		"speed_mode": string(p.speedMode),
	}
	fields["initial_prompt"] = formatPrompt
	if opts.InitialPrompt != "" {
		fields["initial_prompt"] = formatPrompt + " " + opts.InitialPrompt
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transcribe", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post /transcribe: %w", err)
	}
	defer resp.Body.Close()

	var tr transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := tr.Error
		if tr.Message != "" {
			msg = msg + ": " + tr.Message
		}
		return nil, fmt.Errorf("sidecar returned status %d: %s", resp.StatusCode, msg)
	}

	return &stt.Transcript{
		Text:     tr.Text,
		Language: tr.Language,
		Duration: time.Duration(tr.Duration * float64(time.Second)),
	}, nil
}

// HealthStatus mirrors the sidecar's /health JSON body.
type HealthStatus struct {
	Status         string `json:"status"`
	Device         string `json:"device"`
	Model          string `json:"model"`
	Language       string `json:"language"`
	WarmedUp       bool   `json:"warmed_up"`
	TurboAvailable bool   `json:"turbo_available"`
}

// Health queries the sidecar's health endpoint.
func (p *Provider) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: get /health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper: health returned status %d", resp.StatusCode)
	}

	var hs HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return nil, fmt.Errorf("whisper: decode health response: %w", err)
	}
	return &hs, nil
}

// Warmup asks the sidecar to preload its models. Call this once on startup
// so the first dictation does not hit a cold model.
func (p *Provider) Warmup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/warmup", nil)
	if err != nil {
		return fmt.Errorf("whisper: create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("whisper: post /warmup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper: warmup returned status %d", resp.StatusCode)
	}
	return nil
}
