package config_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/dualscribe/dualscribe/internal/config"
	"github.com/dualscribe/dualscribe/pkg/provider/llm"
	"github.com/dualscribe/dualscribe/pkg/provider/stt"
)

type fakeSTT struct{ name string }

func (f *fakeSTT) Name() string { return f.name }
func (f *fakeSTT) Transcribe(context.Context, io.Reader, string, stt.Options) (*stt.Transcript, error) {
	return &stt.Transcript{}, nil
}

type fakeLLM struct{}

func (fakeLLM) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{}, nil
}

func TestRegistry_CreateSTT(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	r.RegisterSTT("whisperx", func(e config.STTEntry) (stt.Provider, error) {
		return &fakeSTT{name: e.Name}, nil
	})

	p, err := r.CreateSTT(config.STTEntry{Name: "whisperx"})
	if err != nil {
		t.Fatalf("CreateSTT() error: %v", err)
	}
	if p.Name() != "whisperx" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestRegistry_CreateSTT_NotRegistered(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	_, err := r.CreateSTT(config.STTEntry{Name: "unknown"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_CreateLLM(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	r.RegisterLLM("openai", func(config.LLMEntry) (llm.Provider, error) {
		return fakeLLM{}, nil
	})

	if _, err := r.CreateLLM(config.LLMEntry{Name: "openai"}); err != nil {
		t.Errorf("CreateLLM() error: %v", err)
	}
	if _, err := r.CreateLLM(config.LLMEntry{Name: "missing"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("error = %v, want ErrProviderNotRegistered", err)
	}
}
