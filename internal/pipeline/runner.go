// Package pipeline drives one code-generation round through its stages:
// attachment staging, generation, commits, publishing, notification, and the
// ledger write that makes the round idempotent. Repository acquisition is
// the only fatal stage; everything else fails in isolation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roundpilot/roundpilot-go/internal/audit"
	"github.com/roundpilot/roundpilot-go/internal/domain"
	"github.com/roundpilot/roundpilot-go/internal/generate"
	"github.com/roundpilot/roundpilot-go/internal/ledger"
	"github.com/roundpilot/roundpilot-go/internal/repohost"
	"github.com/roundpilot/roundpilot-go/internal/scratch"
)

// RepoHost is the slice of the repository host adapter the pipeline needs.
type RepoHost interface {
	EnsureRepo(ctx context.Context, name, description string) (repohost.Repo, error)
	GetFileText(ctx context.Context, repo repohost.Repo, path string) (string, error)
	PutText(ctx context.Context, repo repohost.Repo, path, content, message string) error
	PutBinary(ctx context.Context, repo repohost.Repo, path string, content []byte, message string) error
	EnablePages(ctx context.Context, repo repohost.Repo, branch string) bool
	LatestCommitSHA(ctx context.Context, repo repohost.Repo) (string, error)
	PagesURL(repoName string) string
	Owner() string
}

type Generator interface {
	Generate(ctx context.Context, req generate.Request) domain.ArtifactSet
}

type Notifier interface {
	Send(ctx context.Context, url string, outcome domain.RoundOutcome) error
}

type Runner struct {
	logger       *slog.Logger
	repos        RepoHost
	generator    Generator
	notifier     Notifier
	outcomes     ledger.Store
	staging      scratch.Store
	auditor      *audit.Recorder
	stageTimeout time.Duration
}

func NewRunner(
	logger *slog.Logger,
	repos RepoHost,
	generator Generator,
	notifier Notifier,
	outcomes ledger.Store,
	staging scratch.Store,
	auditor *audit.Recorder,
	stageTimeout time.Duration,
) *Runner {
	if stageTimeout <= 0 {
		stageTimeout = 60 * time.Second
	}
	return &Runner{
		logger:       logger,
		repos:        repos,
		generator:    generator,
		notifier:     notifier,
		outcomes:     outcomes,
		staging:      staging,
		auditor:      auditor,
		stageTimeout: stageTimeout,
	}
}

// Run executes one round to completion. It has no synchronous caller: every
// outcome, including the fatal abort, is expressed through the report, the
// audit trail, and the ledger.
func (r *Runner) Run(ctx context.Context, job domain.Job) *Report {
	report := newReport(job.Key())
	logger := r.logger.With("run_id", report.RunID, "task", job.Task, "round", job.Round)
	logger.Info("round started")

	attachments := r.decodeAttachments(job, report, logger)
	r.stageAttachments(ctx, report, logger, attachments)

	repo, err := r.ensureRepo(ctx, job)
	if err != nil {
		report.fatal("ensure_repo", err)
		logger.Error("repository acquisition failed, aborting round", "error", err)
		r.auditor.Record(ctx, audit.Event{
			Action:   audit.ActionRoundAborted,
			RoundKey: report.Key,
			Payload:  report,
		})
		return report
	}
	report.ok("ensure_repo", repo.FullName)

	priorReadme := r.fetchPriorReadme(ctx, job, repo, report, logger)

	genCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
	artifacts := r.generator.Generate(genCtx, generate.Request{
		Brief:       job.Brief,
		Attachments: attachments,
		Checks:      job.Checks,
		Round:       job.Round,
		PriorReadme: priorReadme,
	})
	cancel()
	report.ok("generate", fmt.Sprintf("%d artifacts", len(artifacts)))

	if !job.Revision() {
		r.commitAttachments(ctx, repo, attachments, report, logger)
	}
	r.commitArtifacts(ctx, job, repo, artifacts, report, logger)
	r.commitLicense(ctx, repo, report, logger)

	pagesURL := r.publish(ctx, job, repo, report)
	commitSHA := r.latestCommit(ctx, repo, report, logger)

	outcome := domain.RoundOutcome{
		Email:     job.Email,
		Task:      job.Task,
		Round:     job.Round,
		Nonce:     job.Nonce,
		RepoURL:   repo.HTMLURL,
		CommitSHA: commitSHA,
		PagesURL:  pagesURL,
	}

	r.notify(ctx, job.EvaluationURL, outcome, report, logger)
	r.persist(ctx, job.Key(), outcome, report, logger)

	r.auditor.Record(ctx, audit.Event{
		Action:   audit.ActionRoundCompleted,
		RoundKey: report.Key,
		Payload:  report,
	})
	logger.Info("round finished", "summary", report.summary())
	return report
}

func (r *Runner) decodeAttachments(job domain.Job, report *Report, logger *slog.Logger) []domain.Attachment {
	attachments := make([]domain.Attachment, 0, len(job.Attachments))
	for _, ref := range job.Attachments {
		att, err := domain.DecodeAttachment(ref)
		if err != nil {
			report.fail("decode_attachment", err)
			logger.Warn("attachment skipped", "name", ref.Name, "error", err)
			continue
		}
		attachments = append(attachments, att)
	}
	report.ok("decode_attachments", fmt.Sprintf("%d of %d decoded", len(attachments), len(job.Attachments)))
	return attachments
}

func (r *Runner) stageAttachments(ctx context.Context, report *Report, logger *slog.Logger, attachments []domain.Attachment) {
	for _, att := range attachments {
		key := fmt.Sprintf("rounds/%s/%s", report.RunID, att.Name)
		err := r.withTimeout(ctx, func(c context.Context) error {
			return r.staging.Put(c, key, att.Content, att.MIME)
		})
		if err != nil {
			report.fail("stage_attachment", fmt.Errorf("%s: %w", att.Name, err))
			logger.Warn("attachment staging failed", "name", att.Name, "error", err)
			continue
		}
		report.ok("stage_attachment", att.Name)
	}
}

func (r *Runner) ensureRepo(ctx context.Context, job domain.Job) (repohost.Repo, error) {
	var repo repohost.Repo
	err := r.withTimeout(ctx, func(c context.Context) error {
		var err error
		repo, err = r.repos.EnsureRepo(c, job.Task, fmt.Sprintf("Auto-generated app for task: %s", job.Brief))
		return err
	})
	return repo, err
}

func (r *Runner) fetchPriorReadme(ctx context.Context, job domain.Job, repo repohost.Repo, report *Report, logger *slog.Logger) string {
	if !job.Revision() {
		return ""
	}
	var prior string
	err := r.withTimeout(ctx, func(c context.Context) error {
		var err error
		prior, err = r.repos.GetFileText(c, repo, "README.md")
		return err
	})
	if err != nil {
		// Degrades to no prior context.
		report.fail("prior_readme", err)
		logger.Warn("prior readme unavailable", "error", err)
		return ""
	}
	report.ok("prior_readme", fmt.Sprintf("%d bytes", len(prior)))
	return prior
}

func (r *Runner) commitAttachments(ctx context.Context, repo repohost.Repo, attachments []domain.Attachment, report *Report, logger *slog.Logger) {
	for _, att := range attachments {
		path := "attachments/" + att.Name
		err := r.withTimeout(ctx, func(c context.Context) error {
			if att.IsText() {
				return r.repos.PutText(c, repo, path, string(att.Content), fmt.Sprintf("Add attachment %s", att.Name))
			}
			return r.repos.PutBinary(c, repo, path, att.Content, fmt.Sprintf("Add binary %s", att.Name))
		})
		if err != nil {
			report.fail("commit_attachment", fmt.Errorf("%s: %w", att.Name, err))
			logger.Warn("attachment commit failed", "name", att.Name, "error", err)
			continue
		}
		report.ok("commit_attachment", att.Name)
	}
}

func (r *Runner) commitArtifacts(ctx context.Context, job domain.Job, repo repohost.Repo, artifacts domain.ArtifactSet, report *Report, logger *slog.Logger) {
	paths := make([]string, 0, len(artifacts))
	for path := range artifacts {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		err := r.withTimeout(ctx, func(c context.Context) error {
			return r.repos.PutText(c, repo, path, artifacts[path], fmt.Sprintf("Add/Update %s for round %d", path, job.Round))
		})
		if err != nil {
			report.fail("commit_artifact", fmt.Errorf("%s: %w", path, err))
			logger.Warn("artifact commit failed", "path", path, "error", err)
			continue
		}
		report.ok("commit_artifact", path)
	}
}

func (r *Runner) commitLicense(ctx context.Context, repo repohost.Repo, report *Report, logger *slog.Logger) {
	license := repohost.MITLicense(r.repos.Owner(), time.Now().UTC().Year())
	err := r.withTimeout(ctx, func(c context.Context) error {
		return r.repos.PutText(c, repo, "LICENSE", license, "Add MIT license")
	})
	if err != nil {
		report.fail("commit_license", err)
		logger.Warn("license commit failed", "error", err)
		return
	}
	report.ok("commit_license", "LICENSE")
}

// publish activates static publishing on the first round and derives the
// public URL only when activation was accepted. Revision rounds assume the
// URL from round one without re-activating.
func (r *Runner) publish(ctx context.Context, job domain.Job, repo repohost.Repo, report *Report) *string {
	if job.Revision() {
		url := r.repos.PagesURL(job.Task)
		report.ok("publish", "reused "+url)
		return &url
	}

	pubCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
	accepted := r.repos.EnablePages(pubCtx, repo, repo.DefaultBranch)
	cancel()
	if !accepted {
		report.fail("publish", errors.New("publish activation not accepted"))
		return nil
	}
	url := r.repos.PagesURL(job.Task)
	report.ok("publish", url)
	return &url
}

func (r *Runner) latestCommit(ctx context.Context, repo repohost.Repo, report *Report, logger *slog.Logger) *string {
	var sha string
	err := r.withTimeout(ctx, func(c context.Context) error {
		var err error
		sha, err = r.repos.LatestCommitSHA(c, repo)
		return err
	})
	if err != nil {
		report.fail("latest_commit", err)
		logger.Warn("latest commit lookup failed", "error", err)
		return nil
	}
	report.ok("latest_commit", sha)
	return &sha
}

func (r *Runner) notify(ctx context.Context, url string, outcome domain.RoundOutcome, report *Report, logger *slog.Logger) {
	err := r.withTimeout(ctx, func(c context.Context) error {
		return r.notifier.Send(c, url, outcome)
	})
	if err != nil {
		report.fail("notify", err)
		logger.Warn("notification failed", "error", err)
		return
	}
	report.ok("notify", url)
}

func (r *Runner) persist(ctx context.Context, key domain.RoundKey, outcome domain.RoundOutcome, report *Report, logger *slog.Logger) {
	err := r.withTimeout(ctx, func(c context.Context) error {
		return r.outcomes.Put(c, key, outcome)
	})
	if errors.Is(err, ledger.ErrDuplicate) {
		// A concurrent submission for the same key won the race elsewhere.
		report.fail("persist", err)
		logger.Warn("outcome already recorded", "error", err)
		return
	}
	if err != nil {
		report.fail("persist", err)
		logger.Error("ledger write failed", "error", err)
		return
	}
	report.ok("persist", report.Key)
}

func (r *Runner) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
	defer cancel()
	return fn(callCtx)
}
