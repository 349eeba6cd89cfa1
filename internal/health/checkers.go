package health

import (
	"context"
	"fmt"

	"github.com/dualscribe/dualscribe/pkg/provider/stt/whisper"
)

// WhisperChecker returns a [Checker] that probes the WhisperX sidecar's
// health endpoint. The check fails when the sidecar is unreachable or
// reports a non-healthy status.
func WhisperChecker(name string, p *whisper.Provider) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			hs, err := p.Health(ctx)
			if err != nil {
				return err
			}
			if hs.Status != "healthy" {
				return fmt.Errorf("sidecar reports status %q", hs.Status)
			}
			return nil
		},
	}
}

// StaticChecker returns a [Checker] that always reports the given error.
// Pass nil for a check that always passes. Useful for surfacing
// configuration problems detected at startup.
func StaticChecker(name string, err error) Checker {
	return Checker{
		Name:  name,
		Check: func(context.Context) error { return err },
	}
}
