package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPollPolicy = errors.New("invalid poll policy")
	ErrRunNotFound       = errors.New("run not found")
)

// SubmissionErrorKind separates requests refused locally (invalid) from requests
// the remote API refused with 400 or 422 (rejected).
type SubmissionErrorKind string

const (
	SubmissionInvalid      SubmissionErrorKind = "invalid"
	SubmissionRejected     SubmissionErrorKind = "rejected"
	SubmissionUnauthorized SubmissionErrorKind = "unauthorized"
	SubmissionTransport    SubmissionErrorKind = "transport"
	SubmissionMalformed    SubmissionErrorKind = "malformed"
)

// SubmissionError is returned by a JobClient. It is never retried by the client.
type SubmissionError struct {
	Kind       SubmissionErrorKind
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("submit job (%s, HTTP %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("submit job (%s): %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PollTransportError aborts polling: the status query itself failed or returned garbage.
type PollTransportError struct {
	JobID   string
	Attempt int
	Err     error
}

func (e *PollTransportError) Error() string {
	return fmt.Sprintf("query status of job %s (attempt %d): %v", e.JobID, e.Attempt, e.Err)
}

func (e *PollTransportError) Unwrap() error { return e.Err }

// RemoteJobFailure means the remote side reported status Failed.
type RemoteJobFailure struct {
	JobID       string
	Description string
}

func (e *RemoteJobFailure) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("job %s failed remotely", e.JobID)
	}
	return fmt.Sprintf("job %s failed remotely: %s", e.JobID, e.Description)
}

// PollTimeoutError means the attempt budget ran out while the job was still running.
// The remote job may still finish later.
type PollTimeoutError struct {
	JobID    string
	Attempts int
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("job %s still not finished after %d status checks", e.JobID, e.Attempts)
}

type FetchError struct {
	Name string
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch artifact %q from %s: %v", e.Name, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
