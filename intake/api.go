package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/roundpilot/roundpilot-go/internal/audit"
	"github.com/roundpilot/roundpilot-go/internal/domain"
	"github.com/roundpilot/roundpilot-go/internal/ledger"
	"github.com/roundpilot/roundpilot-go/internal/pipeline"
)

// jobRunner is what the API needs from the pipeline: fire one round.
type jobRunner interface {
	Run(ctx context.Context, job domain.Job) *pipeline.Report
}

type intakeAPI struct {
	logger       *slog.Logger
	sharedSecret string
	outcomes     ledger.Store
	claims       *ledger.Claims
	runner       jobRunner
	notifier     pipeline.Notifier
	auditor      *audit.Recorder

	// baseCtx outlives individual requests; accepted jobs run on it so a
	// closed client connection cannot cancel a round mid-flight.
	baseCtx context.Context
	// wg tracks in-flight rounds for draining in tests and shutdown.
	wg sync.WaitGroup
}

func newIntakeAPI(
	baseCtx context.Context,
	logger *slog.Logger,
	sharedSecret string,
	outcomes ledger.Store,
	runner jobRunner,
	notifier pipeline.Notifier,
	auditor *audit.Recorder,
) *intakeAPI {
	return &intakeAPI{
		logger:       logger,
		sharedSecret: sharedSecret,
		outcomes:     outcomes,
		claims:       ledger.NewClaims(),
		runner:       runner,
		notifier:     notifier,
		auditor:      auditor,
		baseCtx:      baseCtx,
	}
}

func (api *intakeAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", api.handleLanding)
	mux.HandleFunc("POST /api-endpoint", api.handleSubmit)
}

type submitRequest struct {
	Secret        string                 `json:"secret"`
	Email         string                 `json:"email"`
	Task          string                 `json:"task"`
	Round         int                    `json:"round"`
	Nonce         string                 `json:"nonce"`
	Brief         string                 `json:"brief"`
	Attachments   []domain.AttachmentRef `json:"attachments"`
	Checks        []string               `json:"checks"`
	EvaluationURL string                 `json:"evaluation_url"`
}

// handleSubmit is the webhook entry point. Rejections are reported inside a
// 200 payload: the caller's round scheduler treats any non-200 as a
// transport failure and retries, so application-level outcomes ride in the
// body.
func (api *intakeAPI) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeRejection(w, r, "invalid JSON body")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(api.sharedSecret)) != 1 {
		api.logger.Warn("invalid secret", "task", req.Task)
		api.auditor.Record(r.Context(), audit.Event{
			Action:    audit.ActionIntakeRejected,
			RoundKey:  fmt.Sprintf("%s/%d", req.Task, req.Round),
			RequestID: r.Header.Get("X-Request-Id"),
			Payload:   map[string]any{"reason": "invalid_secret"},
		})
		api.writeJSON(w, map[string]any{"error": "Invalid secret"})
		return
	}

	job := domain.Job{
		Email:         req.Email,
		Task:          req.Task,
		Round:         req.Round,
		Nonce:         req.Nonce,
		Brief:         req.Brief,
		Attachments:   req.Attachments,
		Checks:        req.Checks,
		EvaluationURL: req.EvaluationURL,
	}
	if err := job.Validate(); err != nil {
		api.writeRejection(w, r, err.Error())
		return
	}

	// The claim is taken before the ledger lookup so check-then-dispatch is
	// atomic per key: a rival submission either sees the claim held (round in
	// flight) or, once the winner released it, a ledger hit. The winner
	// persists the outcome before releasing, so a lookup made under the claim
	// can never return a stale miss.
	key := job.Key()
	if !api.claims.Acquire(key) {
		// An identical submission is already in flight; its own completion
		// will deliver the notification.
		api.logger.Warn("duplicate submission while round in flight", "task", job.Task, "round", job.Round)
		api.auditor.Record(r.Context(), audit.Event{
			Action:    audit.ActionIntakeDuplicate,
			RoundKey:  key.String(),
			RequestID: r.Header.Get("X-Request-Id"),
			Payload:   map[string]any{"in_flight": true},
		})
		api.writeJSON(w, map[string]any{"status": "ok", "note": "duplicate round in flight"})
		return
	}

	stored, err := api.outcomes.Get(r.Context(), key)
	if err == nil {
		api.claims.Release(key)
		api.handleDuplicate(w, r, job, stored)
		return
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		api.claims.Release(key)
		api.logger.Error("ledger lookup failed", "error", err)
		api.writeRejection(w, r, "ledger unavailable")
		return
	}

	api.wg.Add(1)
	go func() {
		defer api.wg.Done()
		defer api.claims.Release(key)
		api.runner.Run(api.baseCtx, job)
	}()

	api.writeJSON(w, map[string]any{
		"status": "accepted",
		"note":   fmt.Sprintf("processing round %d started", job.Round),
	})
}

// handleDuplicate re-delivers the stored outcome. Repository side effects
// stay at-most-once; only the notification is at-least-once.
func (api *intakeAPI) handleDuplicate(w http.ResponseWriter, r *http.Request, job domain.Job, stored domain.RoundOutcome) {
	api.logger.Info("duplicate request, re-notifying", "task", job.Task, "round", job.Round)
	if err := api.notifier.Send(r.Context(), job.EvaluationURL, stored); err != nil {
		api.logger.Warn("re-notification failed", "error", err)
	}
	api.auditor.Record(r.Context(), audit.Event{
		Action:    audit.ActionIntakeDuplicate,
		RoundKey:  job.Key().String(),
		RequestID: r.Header.Get("X-Request-Id"),
		Payload:   stored,
	})
	api.writeJSON(w, map[string]any{"status": "ok", "note": "duplicate handled & re-notified"})
}

func (api *intakeAPI) handleLanding(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<html>
    <head><title>roundpilot</title></head>
    <body style="font-family: sans-serif; text-align: center; padding-top: 50px;">
        <h1>roundpilot is running</h1>
        <p>Use the API endpoint <code>/api-endpoint</code> to send round payloads.</p>
    </body>
</html>
`))
}

// drain waits for in-flight rounds to finish.
func (api *intakeAPI) drain() {
	api.wg.Wait()
}

func (api *intakeAPI) writeRejection(w http.ResponseWriter, r *http.Request, detail string) {
	api.logger.Warn("request rejected", "detail", detail, "request_id", r.Header.Get("X-Request-Id"))
	api.writeJSON(w, map[string]any{"error": detail})
}

func (api *intakeAPI) writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 8<<20))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}
