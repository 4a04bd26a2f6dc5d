package core

import (
	"errors"

	"github.com/google/uuid"
)

type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
)

type FailureReason string

const (
	ReasonInvalidRequest  FailureReason = "invalid_request"
	ReasonSubmissionError FailureReason = "submission_error"
	ReasonPollError       FailureReason = "poll_error"
	ReasonRemoteFailure   FailureReason = "remote_failure"
	ReasonTimeout         FailureReason = "timeout"
	ReasonFetchError      FailureReason = "fetch_error"
	ReasonCanceled        FailureReason = "canceled"
)

// Outcome is the single result of one orchestration run. Artifacts is set only for
// OutcomeSuccess; Reason and Detail only for OutcomeFailure.
type Outcome struct {
	RunID     uuid.UUID
	JobID     string
	Kind      OutcomeKind
	Artifacts []Artifact
	Reason    FailureReason
	Detail    string
}

func Succeeded(runID uuid.UUID, jobID string, artifacts []Artifact) Outcome {
	if artifacts == nil {
		artifacts = []Artifact{}
	}
	return Outcome{RunID: runID, JobID: jobID, Kind: OutcomeSuccess, Artifacts: artifacts}
}

func Failed(runID uuid.UUID, jobID string, reason FailureReason, detail string) Outcome {
	return Outcome{RunID: runID, JobID: jobID, Kind: OutcomeFailure, Reason: reason, Detail: detail}
}

func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// ClassifyError maps an orchestration error onto its failure reason. Errors that carry
// no recognizable type are reported with fallback.
func ClassifyError(err error, fallback FailureReason) FailureReason {
	var (
		subErr     *SubmissionError
		pollErr    *PollTransportError
		remoteErr  *RemoteJobFailure
		timeoutErr *PollTimeoutError
		fetchErr   *FetchError
	)
	switch {
	case errors.As(err, &subErr):
		if subErr.Kind == SubmissionInvalid {
			return ReasonInvalidRequest
		}
		return ReasonSubmissionError
	case errors.As(err, &remoteErr):
		return ReasonRemoteFailure
	case errors.As(err, &timeoutErr):
		return ReasonTimeout
	case errors.As(err, &pollErr):
		return ReasonPollError
	case errors.As(err, &fetchErr):
		return ReasonFetchError
	}
	return fallback
}
