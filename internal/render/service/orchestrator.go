package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/ccrender/internal/render/core"
	"github.com/nemanja-m/ccrender/internal/shared/logging"
)

type OrchestratorOptions struct {
	Poll      core.PollPolicy
	Extension string
}

type orchestrator struct {
	auth    core.AuthProvider
	jobs    core.JobClient
	poller  core.StatusPoller
	fetcher core.ResultFetcher
	runs    core.RunStore
	opts    OrchestratorOptions
	logger  logging.Logger
}

// NewOrchestrator wires the submit -> poll -> fetch pipeline. runs may be nil when no
// history is kept.
func NewOrchestrator(
	auth core.AuthProvider,
	jobs core.JobClient,
	poller core.StatusPoller,
	fetcher core.ResultFetcher,
	runs core.RunStore,
	opts OrchestratorOptions,
	logger logging.Logger,
) core.Orchestrator {
	return &orchestrator{
		auth:    auth,
		jobs:    jobs,
		poller:  poller,
		fetcher: fetcher,
		runs:    runs,
		opts:    opts,
		logger:  logger,
	}
}

// Run executes one orchestration and always returns exactly one Outcome.
func (o *orchestrator) Run(ctx context.Context, req core.JobRequest) core.Outcome {
	r := &run{
		o: o,
		record: &core.Run{
			ID:        uuid.New(),
			Request:   req,
			State:     core.RunStateSubmitting,
			StartedAt: time.Now().UTC(),
		},
	}
	o.logger.Info("Render run started", "run_id", r.record.ID.String(), "design_id", req.DesignID)
	r.save(ctx)

	outcome := r.execute(ctx)
	r.finish(ctx, outcome)
	return outcome
}

// run is the state of a single orchestration. It is never reused.
type run struct {
	o      *orchestrator
	record *core.Run
}

func (r *run) execute(ctx context.Context) core.Outcome {
	o := r.o

	// Submitting
	if err := r.record.Request.Validate(); err != nil {
		return r.fail(ctx, core.RunStateFailed, core.ReasonInvalidRequest, err)
	}
	cred, err := o.auth.Credential(ctx)
	if err != nil {
		return r.fail(ctx, core.RunStateFailed, core.ReasonSubmissionError, fmt.Errorf("obtain credential: %w", err))
	}
	job, err := o.jobs.Submit(ctx, r.record.Request, cred)
	if err != nil {
		return r.fail(ctx, core.RunStateFailed, core.ReasonSubmissionError, err)
	}
	r.record.JobID = job.ID
	r.transition(ctx, core.RunStatePolling)

	// Polling
	cred, err = o.auth.Credential(ctx)
	if err != nil {
		return r.fail(ctx, core.RunStateFailed, core.ReasonPollError, fmt.Errorf("obtain credential: %w", err))
	}
	result, err := o.poller.PollUntilTerminal(ctx, job, cred, o.opts.Poll)
	if err != nil {
		return r.fail(ctx, core.RunStateFailed, core.ReasonPollError, err)
	}
	r.record.Attempts = result.Attempts

	switch result.Verdict {
	case core.PollTimedOut:
		return r.fail(ctx, core.RunStateTimedOut, core.ReasonTimeout,
			&core.PollTimeoutError{JobID: job.ID, Attempts: result.Attempts})
	case core.PollFailed:
		return r.fail(ctx, core.RunStateFailed, core.ReasonRemoteFailure,
			&core.RemoteJobFailure{JobID: job.ID, Description: result.Description})
	}
	r.transition(ctx, core.RunStateFetching)

	// Fetching
	cred, err = o.auth.Credential(ctx)
	if err != nil {
		return r.fail(ctx, core.RunStateFailed, core.ReasonFetchError, fmt.Errorf("obtain credential: %w", err))
	}
	artifacts, err := o.fetcher.Fetch(ctx, result.Outputs, cred, o.opts.Extension)
	if err != nil {
		return r.fail(ctx, core.RunStateFailed, core.ReasonFetchError, err)
	}

	r.transition(ctx, core.RunStateSucceeded)
	return core.Succeeded(r.record.ID, job.ID, artifacts)
}

// fail moves the run into a terminal failure state. Cancellation of ctx wins over
// the stage reason.
func (r *run) fail(ctx context.Context, to core.RunState, fallback core.FailureReason, err error) core.Outcome {
	reason := core.ClassifyError(err, fallback)
	if ctx.Err() != nil {
		reason = core.ReasonCanceled
	}

	detail := err.Error()
	var remoteErr *core.RemoteJobFailure
	if errors.As(err, &remoteErr) {
		detail = remoteErr.Description
	}

	r.transition(ctx, to)
	r.o.logger.Error("Render run failed",
		"run_id", r.record.ID.String(),
		"job_id", r.record.JobID,
		"state", string(to),
		"reason", string(reason),
		"error", err,
	)
	return core.Failed(r.record.ID, r.record.JobID, reason, detail)
}

func (r *run) transition(ctx context.Context, to core.RunState) {
	from := r.record.State
	if !core.CanTransition(from, to) {
		panic(fmt.Sprintf("illegal run transition %s -> %s", from, to))
	}
	r.record.State = to
	r.o.logger.Debug("Run state changed",
		"run_id", r.record.ID.String(),
		"from", string(from),
		"to", string(to),
	)
	if !to.IsTerminal() {
		r.save(ctx)
	}
}

func (r *run) finish(ctx context.Context, outcome core.Outcome) {
	now := time.Now().UTC()
	r.record.CompletedAt = &now
	r.record.Outcome = &outcome
	r.save(ctx)

	if outcome.Succeeded() {
		r.o.logger.Info("Render run succeeded",
			"run_id", r.record.ID.String(),
			"job_id", outcome.JobID,
			"artifacts", len(outcome.Artifacts),
			"duration_ms", now.Sub(r.record.StartedAt).Milliseconds(),
		)
	}
}

func (r *run) save(ctx context.Context) {
	if r.o.runs == nil {
		return
	}
	// History is written even after the run context is canceled.
	snapshot := *r.record
	if err := r.o.runs.SaveRun(context.WithoutCancel(ctx), &snapshot); err != nil {
		r.o.logger.Warn("Failed to save run", "run_id", r.record.ID.String(), "error", err)
	}
}
