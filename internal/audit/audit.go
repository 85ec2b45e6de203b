// Package audit records intake and round lifecycle events with an integrity
// hash, so a reviewer can reconstruct what the service decided and when.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	ActionIntakeRejected  = "intake.rejected"
	ActionIntakeDuplicate = "intake.duplicate"
	ActionRoundCompleted  = "round.completed"
	ActionRoundAborted    = "round.aborted"
)

type Event struct {
	OccurredAt time.Time
	Action     string
	RoundKey   string
	RequestID  string
	Payload    any
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.Action) == "" {
		return errors.New("Action is required")
	}
	if strings.TrimSpace(e.RoundKey) == "" {
		return errors.New("RoundKey is required")
	}
	return nil
}

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Recorder writes events to the audit table. A nil Recorder is a disabled
// sink: Record becomes a no-op, so callers never branch on configuration.
type Recorder struct {
	db     DB
	logger *slog.Logger
}

func NewRecorder(db DB, logger *slog.Logger) *Recorder {
	if db == nil {
		return nil
	}
	return &Recorder{db: db, logger: logger}
}

// EnsureSchema creates the audit table when it does not exist yet.
func EnsureSchema(ctx context.Context, db DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS audit_events (
	event_id         BIGSERIAL PRIMARY KEY,
	occurred_at      TIMESTAMPTZ NOT NULL,
	action           TEXT NOT NULL,
	round_key        TEXT NOT NULL,
	request_id       TEXT,
	payload          JSONB NOT NULL,
	integrity_sha256 TEXT NOT NULL
)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure audit_events: %w", err)
	}
	return nil
}

// Record inserts the event. Audit failures are logged, never propagated: an
// unavailable audit sink must not change request handling.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || r.db == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := r.insert(ctx, event); err != nil {
		r.logger.Warn("audit record failed", "action", event.Action, "error", err)
	}
}

func (r *Recorder) insert(ctx context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	integrity, err := integritySHA256(event, payloadJSON)
	if err != nil {
		return err
	}

	var requestID sql.NullString
	if strings.TrimSpace(event.RequestID) != "" {
		requestID = sql.NullString{String: strings.TrimSpace(event.RequestID), Valid: true}
	}

	_, err = r.db.ExecContext(
		ctx,
		`INSERT INTO audit_events (
			occurred_at, action, round_key, request_id, payload, integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6)`,
		event.OccurredAt.UTC(),
		strings.TrimSpace(event.Action),
		strings.TrimSpace(event.RoundKey),
		requestID,
		payloadJSON,
		integrity,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func integritySHA256(event Event, payloadJSON []byte) (string, error) {
	type integrityInput struct {
		OccurredAt time.Time       `json:"occurred_at"`
		Action     string          `json:"action"`
		RoundKey   string          `json:"round_key"`
		RequestID  string          `json:"request_id,omitempty"`
		Payload    json.RawMessage `json:"payload"`
	}

	in := integrityInput{
		OccurredAt: event.OccurredAt.UTC(),
		Action:     strings.TrimSpace(event.Action),
		RoundKey:   strings.TrimSpace(event.RoundKey),
		RequestID:  strings.TrimSpace(event.RequestID),
		Payload:    payloadJSON,
	}

	blob, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal integrity: %w", err)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}
