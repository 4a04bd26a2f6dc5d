package core

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Credential is a bearer token accepted by the remote API.
type Credential string

// AuthProvider hands out credentials. Implementations cache and refresh internally
// and must be safe for concurrent use.
type AuthProvider interface {
	Credential(ctx context.Context) (Credential, error)
}

// JobClient creates a remote job and starts its processing in one call.
type JobClient interface {
	Submit(ctx context.Context, req JobRequest, cred Credential) (*Job, error)
}

type StatusClient interface {
	GetStatus(ctx context.Context, jobID string, cred Credential) (*StatusReport, error)
}

// ArtifactSource opens the body of a remote artifact. Callers must close it.
type ArtifactSource interface {
	Open(ctx context.Context, url string, cred Credential) (io.ReadCloser, error)
}

// ArtifactStore persists artifact bytes under a name.
type ArtifactStore interface {
	Put(ctx context.Context, name string, r io.Reader) (Artifact, error)
	List(ctx context.Context, pattern string) ([]string, error)
}

type StatusPoller interface {
	PollUntilTerminal(ctx context.Context, job *Job, cred Credential, policy PollPolicy) (*PollResult, error)
}

type ResultFetcher interface {
	Fetch(ctx context.Context, descriptors []ResultDescriptor, cred Credential, extension string) ([]Artifact, error)
}

// Orchestrator runs submit -> poll -> fetch once per call.
type Orchestrator interface {
	Run(ctx context.Context, req JobRequest) Outcome
}

type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, int, error)
}
