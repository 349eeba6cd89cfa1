// Package deepgram provides an stt.Provider backed by the Deepgram
// pre-recorded transcription REST API.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dualscribe/dualscribe/pkg/provider/stt"
)

const (
	defaultBaseURL  = "https://api.deepgram.com"
	defaultModel    = "nova-2"
	defaultLanguage = "de"
)

// Provider implements stt.Provider against the Deepgram /v1/listen endpoint.
type Provider struct {
	apiKey   string
	baseURL  string
	model    string
	language string
	client   *http.Client
}

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Mainly for tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithModel selects the Deepgram model. Defaults to "nova-2".
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the default transcription language. Defaults to "de".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.client = c
	}
}

// New constructs a Deepgram Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram: apiKey must not be empty")
	}

	p := &Provider{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		model:    defaultModel,
		language: defaultLanguage,
		client:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements stt.Provider.
func (p *Provider) Name() string {
	return "deepgram"
}

// listenResponse mirrors the parts of the Deepgram response we read.
type listenResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
			DetectedLanguage string `json:"detected_language"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe implements stt.Provider. Deepgram has no prompt biasing for
// pre-recorded audio, so opts.InitialPrompt is ignored.
func (p *Provider) Transcribe(ctx context.Context, audio io.Reader, filename string, opts stt.Options) (*stt.Transcript, error) {
	lang := opts.Language
	if lang == "" {
		lang = p.language
	}

	q := url.Values{}
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/listen?"+q.Encode(), audio)
	if err != nil {
		return nil, fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", contentTypeFor(filename))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram: post /v1/listen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("deepgram: api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var lr listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("deepgram: decode response: %w", err)
	}
	if len(lr.Results.Channels) == 0 || len(lr.Results.Channels[0].Alternatives) == 0 {
		return nil, fmt.Errorf("deepgram: response has no transcript alternatives")
	}

	ch := lr.Results.Channels[0]
	detected := ch.DetectedLanguage
	if detected == "" {
		detected = lang
	}

	return &stt.Transcript{
		Text:     ch.Alternatives[0].Transcript,
		Language: detected,
		Duration: time.Duration(lr.Metadata.Duration * float64(time.Second)),
	}, nil
}

// contentTypeFor maps the audio filename extension to a MIME type Deepgram
// understands. Unknown extensions fall back to octet-stream and let the API
// sniff the container.
func contentTypeFor(filename string) string {
	switch {
	case strings.HasSuffix(filename, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(filename, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(filename, ".ogg"):
		return "audio/ogg"
	case strings.HasSuffix(filename, ".flac"):
		return "audio/flac"
	case strings.HasSuffix(filename, ".webm"):
		return "audio/webm"
	case strings.HasSuffix(filename, ".m4a"):
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
