package service

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"

	"github.com/nemanja-m/ccrender/internal/render/core"
	"github.com/nemanja-m/ccrender/internal/shared/logging"
)

var errStillRunning = errors.New("job still running")

type statusPoller struct {
	client core.StatusClient
	logger logging.Logger
}

func NewStatusPoller(client core.StatusClient, logger logging.Logger) core.StatusPoller {
	return &statusPoller{
		client: client,
		logger: logger,
	}
}

// PollUntilTerminal queries the job status at most policy.MaxAttempts times. The first
// query is immediate; later ones wait according to the policy backoff. A failed
// query ends polling with a *core.PollTransportError.
func (p *statusPoller) PollUntilTerminal(
	ctx context.Context,
	job *core.Job,
	cred core.Credential,
	policy core.PollPolicy,
) (*core.PollResult, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	var (
		attempts int
		report   *core.StatusReport
	)

	err := retry.Do(ctx, newBackoff(policy), func(ctx context.Context) error {
		attempts++

		r, err := p.client.GetStatus(ctx, job.ID, cred)
		if err != nil {
			return &core.PollTransportError{JobID: job.ID, Attempt: attempts, Err: err}
		}
		report = r

		if !r.Status.IsTerminal() {
			p.logger.Debug("Job not finished yet",
				"job_id", job.ID,
				"status", string(r.Status),
				"attempt", attempts,
				"max_attempts", policy.MaxAttempts,
			)
			return retry.RetryableError(errStillRunning)
		}
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, errStillRunning):
		p.logger.Warn("Polling budget exhausted", "job_id", job.ID, "attempts", attempts)
		return &core.PollResult{Verdict: core.PollTimedOut, Attempts: attempts}, nil
	default:
		return nil, err
	}

	if report.Status == core.JobStatusFailed {
		return &core.PollResult{
			Verdict:     core.PollFailed,
			Description: report.Description,
			Attempts:    attempts,
		}, nil
	}
	return &core.PollResult{
		Verdict:  core.PollCompleted,
		Outputs:  report.Outputs,
		Attempts: attempts,
	}, nil
}

// newBackoff allows MaxAttempts-1 waits between MaxAttempts queries.
func newBackoff(policy core.PollPolicy) retry.Backoff {
	var b retry.Backoff
	switch policy.Backoff {
	case core.BackoffExponential:
		b = retry.NewExponential(policy.Interval)
		if policy.MaxInterval > 0 {
			b = retry.WithCappedDuration(policy.MaxInterval, b)
		}
	default:
		b = retry.NewConstant(policy.Interval)
	}
	return retry.WithMaxRetries(uint64(policy.MaxAttempts-1), b)
}
