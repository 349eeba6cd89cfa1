// Package arbiter implements the language-model-based resolution stage for
// merged dual transcriptions.
//
// The [Arbiter] sends the marked text produced by the merger to an
// [llm.Provider] along with both full transcripts as context. The model is
// instructed to resolve every <<<A: ... | B: ...>>> disagreement into the
// wording the physician most plausibly dictated and to return the clean
// final text with no markers left.
//
// When the LLM reply is unusable (empty, or markers still present), the
// arbiter falls back to transcript A rather than surfacing an error, so a
// dictation always yields a usable result.
package arbiter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dualscribe/dualscribe/internal/reconcile"
	"github.com/dualscribe/dualscribe/pkg/provider/llm"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 4096
)

// Resolution is the arbiter's answer for one merged transcription.
type Resolution struct {
	// Text is the final transcript with every marker resolved.
	Text string

	// Arbitrated is true when the LLM produced the text. False means the
	// fast path (no disagreements) or the fallback was taken.
	Arbitrated bool

	// FellBack is true when the LLM reply was unusable and Text is
	// transcript A instead.
	FellBack bool

	// Usage holds the token accounting of the LLM call, zero when no call
	// was made.
	Usage llm.Usage
}

// Option is a functional option for configuring an [Arbiter].
type Option func(*Arbiter)

// WithTemperature sets the LLM sampling temperature. Lower values produce
// more deterministic resolutions. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(a *Arbiter) {
		a.temperature = temp
	}
}

// WithMaxTokens caps the completion length. Default: 4096.
func WithMaxTokens(n int) Option {
	return func(a *Arbiter) {
		a.maxTokens = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(a *Arbiter) {
		a.log = log
	}
}

// Arbiter resolves merge markers using an [llm.Provider]. It is safe for
// concurrent use.
type Arbiter struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
	log         *slog.Logger
}

// New returns a new [Arbiter] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Arbiter {
	a := &Arbiter{
		llm:         provider,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Resolve turns a merged transcription into the final transcript.
//
// If the merge found no disagreements the marked text is returned as-is
// without an LLM call. An unusable LLM reply degrades to transcript A with
// a warning instead of an error. Context cancellation and network errors
// are returned as non-nil errors.
func (a *Arbiter) Resolve(ctx context.Context, merged reconcile.MergedResult) (*Resolution, error) {
	if !merged.HasDifferences {
		return &Resolution{Text: merged.MarkedText}, nil
	}

	req := llm.CompletionRequest{
		SystemPrompt: reconcile.BuildPrompt(merged),
		Temperature:  a.temperature,
		MaxTokens:    a.maxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: reconcile.BuildUserMessage(merged)},
		},
	}

	resp, err := a.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("arbiter: complete: %w", err)
	}

	text := stripMarkdown(resp.Content)
	if !usable(text) {
		a.log.Warn("arbiter reply unusable, falling back to transcript A",
			"provider_a", merged.ProviderA,
			"reply_len", len(resp.Content))
		return &Resolution{
			Text:     reconcile.StripMarkers(merged.MarkedText, reconcile.SideA),
			FellBack: true,
			Usage:    resp.Usage,
		}, nil
	}

	return &Resolution{
		Text:       text,
		Arbitrated: true,
		Usage:      resp.Usage,
	}, nil
}

// usable reports whether an LLM reply can serve as the final transcript.
// Empty replies and replies that still contain merge markers are rejected.
func usable(text string) bool {
	if text == "" {
		return false
	}
	return len(reconcile.ExtractMarkers(text)) == 0
}

// stripMarkdown removes optional markdown code fences that some models wrap
// around plain-text output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```text", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
