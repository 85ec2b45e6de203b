package domain

import (
	"errors"
	"fmt"
	"strings"
)

// AttachmentRef is an attachment as it arrives on the wire: a name plus an
// inline data URI.
type AttachmentRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Job is one validated code-generation round for a task.
type Job struct {
	Email         string
	Task          string
	Round         int
	Nonce         string
	Brief         string
	Attachments   []AttachmentRef
	Checks        []string
	EvaluationURL string
}

func (j Job) Validate() error {
	if strings.TrimSpace(j.Email) == "" {
		return errors.New("email is required")
	}
	if strings.TrimSpace(j.Task) == "" {
		return errors.New("task is required")
	}
	if j.Round < 1 {
		return errors.New("round must be >= 1")
	}
	if strings.TrimSpace(j.Nonce) == "" {
		return errors.New("nonce is required")
	}
	if strings.TrimSpace(j.Brief) == "" {
		return errors.New("brief is required")
	}
	for _, field := range []string{j.Email, j.Task, j.Nonce} {
		if strings.Contains(field, keySeparator) {
			return fmt.Errorf("identity field contains reserved separator byte")
		}
	}
	return nil
}

// Key returns the idempotency key for this job.
func (j Job) Key() RoundKey {
	return RoundKey{
		Email: strings.TrimSpace(j.Email),
		Task:  strings.TrimSpace(j.Task),
		Round: j.Round,
		Nonce: strings.TrimSpace(j.Nonce),
	}
}

// Revision reports whether this round revises an earlier one rather than
// building the task from scratch.
func (j Job) Revision() bool {
	return j.Round >= 2
}
