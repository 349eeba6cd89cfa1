// Package stt defines the Provider interface for batch Speech-to-Text
// backends.
//
// A provider takes a complete audio recording and returns the full
// transcript in one call. The dictation pipeline runs two providers over the
// same recording and reconciles their outputs, so implementations must be
// safe for concurrent use.
package stt

import (
	"context"
	"io"
	"time"
)

// Transcript is the result of transcribing one recording.
type Transcript struct {
	// Text is the full transcript with the provider's native punctuation
	// and casing.
	Text string

	// Language is the language the provider detected or was told to use,
	// as a BCP 47-ish code like "de" or "en".
	Language string

	// Duration is how long the backend spent transcribing. Zero if the
	// backend does not report it.
	Duration time.Duration
}

// Options tunes a single transcription request. The zero value asks for the
// provider's defaults.
type Options struct {
	// Language forces the transcription language. Empty means the
	// provider's configured default.
	Language string

	// InitialPrompt biases the model toward a vocabulary or formatting
	// style. Not all providers support it; those that don't ignore it.
	InitialPrompt string
}

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Name returns a short stable identifier like "whisperx" or
	// "deepgram". It labels transcripts in merge markers and metrics.
	Name() string

	// Transcribe reads the complete audio from r and returns the
	// transcript. The filename hints at the container format (e.g.
	// "dictation.wav") for backends that sniff it.
	Transcribe(ctx context.Context, audio io.Reader, filename string, opts Options) (*Transcript, error)
}
