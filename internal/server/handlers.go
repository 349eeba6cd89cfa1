package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dualscribe/dualscribe/internal/reconcile"
	"github.com/dualscribe/dualscribe/pkg/provider/stt"
)

// scoreRequest is the body of POST /v1/score.
type scoreRequest struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

// handleScore computes the change score between two texts.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	score := reconcile.Score(req.Original, req.Corrected)
	s.metrics.ChangeScorePercent.Record(r.Context(), int64(score.Percent))

	writeJSON(w, http.StatusOK, score)
}

// reconcileRequest is the body of POST /v1/reconcile.
type reconcileRequest struct {
	TextA     string `json:"text_a"`
	TextB     string `json:"text_b"`
	ProviderA string `json:"provider_a"`
	ProviderB string `json:"provider_b"`
}

// reconcileResponse carries the merge outcome plus per-marker diagnoses and
// the disagreement score between the two inputs.
type reconcileResponse struct {
	reconcile.MergedResult
	Markers []reconcile.MarkerDiagnosis `json:"markers"`
	Score   reconcile.ChangeScore       `json:"score"`
}

// handleReconcile merges two already-transcribed texts.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.TextA == "" && req.TextB == "" {
		writeError(w, http.StatusBadRequest, errors.New("text_a and text_b must not both be empty"))
		return
	}

	resp := s.reconcileTexts(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

// reconcileTexts runs merge, diagnosis, and scoring over two transcripts.
func (s *Server) reconcileTexts(ctx context.Context, req reconcileRequest) reconcileResponse {
	merged := s.merger.Merge(
		reconcile.TranscriptionResult{Text: req.TextA, Provider: req.ProviderA},
		reconcile.TranscriptionResult{Text: req.TextB, Provider: req.ProviderB},
	)

	diagnoses := reconcile.DiagnoseMarkers(merged.MarkedText)
	homophones := 0
	for _, d := range diagnoses {
		if d.Homophone {
			homophones++
		}
	}
	s.metrics.RecordMergeOutcome(ctx, len(diagnoses), homophones)

	score := reconcile.Score(req.TextA, req.TextB)
	s.metrics.ChangeScorePercent.Record(ctx, int64(score.Percent))

	return reconcileResponse{
		MergedResult: merged,
		Markers:      diagnoses,
		Score:        score,
	}
}

// dictateResponse is the body returned by POST /v1/dictate.
type dictateResponse struct {
	// Text is the final transcript. When arbitration is enabled and there
	// were disagreements, this is the arbitrated text; otherwise it is the
	// marked text.
	Text string `json:"text"`

	// Arbitrated is true when an LLM resolved the markers in Text.
	Arbitrated bool `json:"arbitrated"`

	// FellBack is true when the LLM reply was unusable and Text is
	// transcript A.
	FellBack bool `json:"fell_back,omitempty"`

	reconcileResponse
}

// handleDictate accepts a multipart dictation upload, transcribes it with
// both backends in parallel, and reconciles the transcripts.
//
// Form fields: file (required), language, initial_prompt.
func (s *Server) handleDictate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s.metrics.ActiveDictations.Add(ctx, 1)
	defer s.metrics.ActiveDictations.Add(ctx, -1)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("parse upload: %w", err))
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("missing file field"))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("uploaded file is empty"))
		return
	}

	opts := stt.Options{
		Language:      r.FormValue("language"),
		InitialPrompt: r.FormValue("initial_prompt"),
	}

	resultA, resultB, err := s.transcribeBoth(ctx, audio, hdr.Filename, opts)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	rec := s.reconcileTexts(ctx, reconcileRequest{
		TextA:     resultA.Text,
		TextB:     resultB.Text,
		ProviderA: s.primary.Name(),
		ProviderB: s.secondary.Name(),
	})

	resp := dictateResponse{
		Text:              rec.MarkedText,
		reconcileResponse: rec,
	}

	if s.arbiter != nil {
		start := time.Now()
		res, err := s.arbiter.Resolve(ctx, rec.MergedResult)
		if err != nil {
			writeError(w, http.StatusBadGateway, fmt.Errorf("arbitration: %w", err))
			return
		}
		s.metrics.ArbitrationDuration.Record(ctx, time.Since(start).Seconds())
		if res.FellBack {
			s.metrics.ArbitrationFallbacks.Add(ctx, 1)
		}
		resp.Text = res.Text
		resp.Arbitrated = res.Arbitrated
		resp.FellBack = res.FellBack
	}

	writeJSON(w, http.StatusOK, resp)
}

// transcribeBoth fans the same audio out to both STT backends and waits for
// both transcripts. One backend failing fails the whole dictation; a single
// transcript has nothing to reconcile against.
func (s *Server) transcribeBoth(ctx context.Context, audio []byte, filename string, opts stt.Options) (*stt.Transcript, *stt.Transcript, error) {
	var resultA, resultB *stt.Transcript

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resultA, err = s.transcribeOne(gctx, s.primary, audio, filename, opts)
		return err
	})
	g.Go(func() error {
		var err error
		resultB, err = s.transcribeOne(gctx, s.secondary, audio, filename, opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return resultA, resultB, nil
}

// transcribeOne runs one backend and records its metrics.
func (s *Server) transcribeOne(ctx context.Context, p stt.Provider, audio []byte, filename string, opts stt.Options) (*stt.Transcript, error) {
	start := time.Now()
	tr, err := p.Transcribe(ctx, bytes.NewReader(audio), filename, opts)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		s.metrics.RecordTranscription(ctx, p.Name(), elapsed, "error")
		s.metrics.RecordProviderError(ctx, p.Name(), "stt")
		return nil, fmt.Errorf("transcribe with %s: %w", p.Name(), err)
	}
	s.metrics.RecordTranscription(ctx, p.Name(), elapsed, "ok")

	s.log.Debug("transcription complete",
		"provider", p.Name(),
		"chars", len(tr.Text),
		"elapsed", time.Since(start))
	return tr, nil
}

// decodeJSON reads a JSON body with a sane size cap and strict field checking.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 16<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// errorResponse is the JSON body for all error replies.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError writes an error reply as JSON.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}
