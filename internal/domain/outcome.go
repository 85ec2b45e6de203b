package domain

import (
	"errors"
	"strings"
)

// RoundOutcome is the immutable record of what one round produced. Its JSON
// form is the notification payload delivered to the evaluation callback, so
// the tags are part of the wire contract.
type RoundOutcome struct {
	Email     string  `json:"email"`
	Task      string  `json:"task"`
	Round     int     `json:"round"`
	Nonce     string  `json:"nonce"`
	RepoURL   string  `json:"repo_url"`
	CommitSHA *string `json:"commit_sha"`
	PagesURL  *string `json:"pages_url"`
}

func (o RoundOutcome) Validate() error {
	if strings.TrimSpace(o.Email) == "" {
		return errors.New("email is required")
	}
	if strings.TrimSpace(o.Task) == "" {
		return errors.New("task is required")
	}
	if o.Round < 1 {
		return errors.New("round must be >= 1")
	}
	if strings.TrimSpace(o.Nonce) == "" {
		return errors.New("nonce is required")
	}
	if strings.TrimSpace(o.RepoURL) == "" {
		return errors.New("repo url is required")
	}
	return nil
}

func (o RoundOutcome) Key() RoundKey {
	return RoundKey{Email: o.Email, Task: o.Task, Round: o.Round, Nonce: o.Nonce}
}

// ArtifactSet maps repository-relative paths to generated text content.
type ArtifactSet map[string]string
