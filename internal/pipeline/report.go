package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roundpilot/roundpilot-go/internal/domain"
)

// StageResult is the explicit outcome of one stage of a round. Isolated
// failures land here instead of aborting the run.
type StageResult struct {
	Stage  string `json:"stage"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Report aggregates the per-stage results of one round into a single
// diagnostic record.
type Report struct {
	RunID   string        `json:"run_id"`
	Key     string        `json:"round_key"`
	Fatal   bool          `json:"fatal"`
	Results []StageResult `json:"results"`
}

func newReport(key domain.RoundKey) *Report {
	return &Report{RunID: uuid.NewString(), Key: key.String()}
}

func (r *Report) ok(stage, detail string) {
	r.Results = append(r.Results, StageResult{Stage: stage, OK: true, Detail: detail})
}

func (r *Report) fail(stage string, err error) {
	r.Results = append(r.Results, StageResult{Stage: stage, OK: false, Detail: err.Error()})
}

func (r *Report) fatal(stage string, err error) {
	r.fail(stage, err)
	r.Fatal = true
}

// Failed returns the failed stage names.
func (r *Report) Failed() []string {
	var failed []string
	for _, res := range r.Results {
		if !res.OK {
			failed = append(failed, res.Stage)
		}
	}
	return failed
}

// StageOK reports whether stage ran and succeeded at least once.
func (r *Report) StageOK(stage string) bool {
	for _, res := range r.Results {
		if res.Stage == stage && res.OK {
			return true
		}
	}
	return false
}

func (r *Report) summary() string {
	failed := r.Failed()
	if len(failed) == 0 {
		return fmt.Sprintf("%d stages ok", len(r.Results))
	}
	return fmt.Sprintf("%d stages, %d failed: %v", len(r.Results), len(failed), failed)
}
