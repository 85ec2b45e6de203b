package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/roundpilot/roundpilot-go/internal/domain"
)

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore is the durable ledger. The rendered key string is the
// primary key; the unique constraint is what makes Put at-most-once across
// processes sharing the database.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	if db == nil {
		return nil
	}
	return &PostgresStore{db: db}
}

// EnsureSchema creates the ledger tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS round_outcomes (
	round_key  TEXT PRIMARY KEY,
	email      TEXT NOT NULL,
	task       TEXT NOT NULL,
	round      INTEGER NOT NULL,
	nonce      TEXT NOT NULL,
	repo_url   TEXT NOT NULL,
	commit_sha TEXT,
	pages_url  TEXT,
	created_at TIMESTAMPTZ NOT NULL
)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure round_outcomes: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key domain.RoundKey) (domain.RoundOutcome, error) {
	if s == nil || s.db == nil {
		return domain.RoundOutcome{}, fmt.Errorf("ledger store not initialized")
	}
	var outcome domain.RoundOutcome
	var commitSHA, pagesURL sql.NullString
	err := s.db.QueryRowContext(
		ctx,
		`SELECT email, task, round, nonce, repo_url, commit_sha, pages_url
		 FROM round_outcomes
		 WHERE round_key = $1`,
		key.String(),
	).Scan(&outcome.Email, &outcome.Task, &outcome.Round, &outcome.Nonce, &outcome.RepoURL, &commitSHA, &pagesURL)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoundOutcome{}, ErrNotFound
	}
	if err != nil {
		return domain.RoundOutcome{}, fmt.Errorf("select outcome: %w", err)
	}
	if commitSHA.Valid {
		v := commitSHA.String
		outcome.CommitSHA = &v
	}
	if pagesURL.Valid {
		v := pagesURL.String
		outcome.PagesURL = &v
	}
	return outcome, nil
}

func (s *PostgresStore) Put(ctx context.Context, key domain.RoundKey, outcome domain.RoundOutcome) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("ledger store not initialized")
	}
	if err := outcome.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO round_outcomes (
			round_key, email, task, round, nonce, repo_url, commit_sha, pages_url, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		key.String(),
		strings.TrimSpace(outcome.Email),
		strings.TrimSpace(outcome.Task),
		outcome.Round,
		strings.TrimSpace(outcome.Nonce),
		strings.TrimSpace(outcome.RepoURL),
		nullString(outcome.CommitSHA),
		nullString(outcome.PagesURL),
		time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

func nullString(value *string) sql.NullString {
	if value == nil || strings.TrimSpace(*value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.TrimSpace(*value), Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
