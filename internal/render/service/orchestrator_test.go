package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/ccrender/internal/render/core"
)

type orchestratorFixture struct {
	auth   *mockAuth
	jobs   *mockJobClient
	status *mockStatusClient
	source *mockSource
	store  *mockStore
	runs   *mockRunStore
	orch   core.Orchestrator
}

func newOrchestratorFixture(reports []*core.StatusReport, maxAttempts int) *orchestratorFixture {
	f := &orchestratorFixture{
		auth:   &mockAuth{},
		jobs:   &mockJobClient{jobID: "42"},
		status: &mockStatusClient{reports: reports},
		source: &mockSource{files: map[string][]byte{}},
		store:  newMockStore(),
		runs:   newMockRunStore(),
	}
	logger := &mockLogger{}
	f.orch = NewOrchestrator(
		f.auth,
		f.jobs,
		NewStatusPoller(f.status, logger),
		NewResultFetcher(f.source, f.store, logger),
		f.runs,
		OrchestratorOptions{Poll: fastPolicy(maxAttempts), Extension: "pdf"},
		logger,
	)
	return f
}

func validRequest() core.JobRequest {
	return core.JobRequest{
		DesignID:   "d-1",
		OwnerID:    "u-1",
		Format:     core.FormatPDF,
		ColorSpace: core.ColorSpaceCMYK,
		DPI:        300,
	}
}

func TestOrchestrator_SucceedsWithOneArtifact(t *testing.T) {
	reports := statuses(core.JobStatusPending, core.JobStatusCompleted)
	reports[1].Outputs = []core.ResultDescriptor{{URL: "https://cdn/r.pdf", Name: "resultfile_d-1"}}
	f := newOrchestratorFixture(reports, 20)
	f.source.files["https://cdn/r.pdf"] = []byte("%PDF-1.7")

	outcome := f.orch.Run(context.Background(), validRequest())

	require.True(t, outcome.Succeeded())
	require.Equal(t, "42", outcome.JobID)
	require.Len(t, outcome.Artifacts, 1)
	require.Equal(t, "resultfile_d-1.pdf", outcome.Artifacts[0].Name)
	require.Equal(t, "%PDF-1.7", string(f.store.files["resultfile_d-1.pdf"]))
	require.Equal(t, 1, f.jobs.calls)
	require.Equal(t, 2, f.status.Calls())
	require.Equal(t, 3, f.auth.calls, "one credential per stage")

	require.Equal(t, []core.RunState{
		core.RunStateSubmitting,
		core.RunStatePolling,
		core.RunStateFetching,
		core.RunStateSucceeded,
	}, f.runs.states)
	run := f.runs.runs[outcome.RunID]
	require.NotNil(t, run.CompletedAt)
	require.Equal(t, 2, run.Attempts)
	require.Equal(t, outcome, *run.Outcome)
}

func TestOrchestrator_CompletedWithoutOutputsSucceedsEmpty(t *testing.T) {
	f := newOrchestratorFixture(statuses(core.JobStatusCompleted), 20)

	outcome := f.orch.Run(context.Background(), validRequest())

	require.True(t, outcome.Succeeded())
	require.NotNil(t, outcome.Artifacts)
	require.Empty(t, outcome.Artifacts)
}

func TestOrchestrator_TimesOutAfterBudget(t *testing.T) {
	f := newOrchestratorFixture(statuses(core.JobStatusPending), 20)

	outcome := f.orch.Run(context.Background(), validRequest())

	require.False(t, outcome.Succeeded())
	require.Equal(t, core.ReasonTimeout, outcome.Reason)
	require.Equal(t, 20, f.status.Calls())
	require.Empty(t, f.source.opened)
	require.Equal(t, core.RunStateTimedOut, f.runs.states[len(f.runs.states)-1])
}

func TestOrchestrator_SubmissionRejected(t *testing.T) {
	f := newOrchestratorFixture(statuses(core.JobStatusCompleted), 20)
	f.jobs.err = &core.SubmissionError{Kind: core.SubmissionUnauthorized, StatusCode: 401}

	outcome := f.orch.Run(context.Background(), validRequest())

	require.False(t, outcome.Succeeded())
	require.Equal(t, core.ReasonSubmissionError, outcome.Reason)
	require.Empty(t, outcome.JobID)
	require.Zero(t, f.status.Calls())
	require.Equal(t, []core.RunState{core.RunStateSubmitting, core.RunStateFailed}, f.runs.states)
}

func TestOrchestrator_InvalidRequestNeverCallsRemote(t *testing.T) {
	f := newOrchestratorFixture(statuses(core.JobStatusCompleted), 20)
	req := validRequest()
	req.DPI = 0

	outcome := f.orch.Run(context.Background(), req)

	require.Equal(t, core.ReasonInvalidRequest, outcome.Reason)
	require.Contains(t, outcome.Detail, "DPI")
	require.Zero(t, f.auth.calls)
	require.Zero(t, f.jobs.calls)
}

func TestOrchestrator_CredentialFailure(t *testing.T) {
	f := newOrchestratorFixture(statuses(core.JobStatusCompleted), 20)
	f.auth.err = errors.New("token endpoint down")

	outcome := f.orch.Run(context.Background(), validRequest())

	require.Equal(t, core.ReasonSubmissionError, outcome.Reason)
	require.Contains(t, outcome.Detail, "token endpoint down")
	require.Zero(t, f.jobs.calls)
}

func TestOrchestrator_RemoteFailureCarriesDescription(t *testing.T) {
	reports := statuses(core.JobStatusPending, core.JobStatusFailed)
	reports[1].Description = "render error"
	f := newOrchestratorFixture(reports, 20)

	outcome := f.orch.Run(context.Background(), validRequest())

	require.Equal(t, core.ReasonRemoteFailure, outcome.Reason)
	require.Equal(t, "render error", outcome.Detail)
	require.Equal(t, "42", outcome.JobID)
	require.Equal(t, 2, f.status.Calls())
}

func TestOrchestrator_PollTransportError(t *testing.T) {
	f := newOrchestratorFixture(statuses(core.JobStatusPending), 20)
	f.status.errAt = 3
	f.status.err = errors.New("connection refused")

	outcome := f.orch.Run(context.Background(), validRequest())

	require.Equal(t, core.ReasonPollError, outcome.Reason)
	require.Contains(t, outcome.Detail, "connection refused")
	require.Equal(t, 3, f.status.Calls())
}

func TestOrchestrator_FetchErrorKeepsStoredArtifacts(t *testing.T) {
	reports := statuses(core.JobStatusCompleted)
	reports[0].Outputs = []core.ResultDescriptor{
		{URL: "https://cdn/1", Name: "page1"},
		{URL: "https://cdn/2", Name: "page2"},
	}
	f := newOrchestratorFixture(reports, 20)
	f.source.files["https://cdn/1"] = []byte("one")

	outcome := f.orch.Run(context.Background(), validRequest())

	require.Equal(t, core.ReasonFetchError, outcome.Reason)
	require.Contains(t, outcome.Detail, "page2.pdf")
	require.Contains(t, f.store.files, "page1.pdf")
	require.Equal(t, core.RunStateFailed, f.runs.states[len(f.runs.states)-1])
}

func TestOrchestrator_CancelDuringPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newOrchestratorFixture(statuses(core.JobStatusPending), 20)
	f.status.onQuery = func(call int) {
		if call == 2 {
			cancel()
		}
	}

	start := time.Now()
	outcome := f.orch.Run(ctx, validRequest())

	require.Equal(t, core.ReasonCanceled, outcome.Reason)
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, core.RunStateFailed, f.runs.states[len(f.runs.states)-1])
}

func TestOrchestrator_RunStoreErrorsDoNotFailRun(t *testing.T) {
	f := newOrchestratorFixture(statuses(core.JobStatusCompleted), 20)
	f.runs.err = errors.New("redis down")

	outcome := f.orch.Run(context.Background(), validRequest())

	require.True(t, outcome.Succeeded())
}

func TestOrchestrator_WithoutRunStore(t *testing.T) {
	logger := &mockLogger{}
	status := &mockStatusClient{reports: statuses(core.JobStatusCompleted)}
	orch := NewOrchestrator(
		&mockAuth{},
		&mockJobClient{jobID: "7"},
		NewStatusPoller(status, logger),
		NewResultFetcher(&mockSource{}, newMockStore(), logger),
		nil,
		OrchestratorOptions{Poll: fastPolicy(3), Extension: "pdf"},
		logger,
	)

	outcome := orch.Run(context.Background(), validRequest())
	require.True(t, outcome.Succeeded())
	require.Equal(t, "7", outcome.JobID)
}

func TestOrchestrator_ConcurrentRunsAreIndependent(t *testing.T) {
	f := newOrchestratorFixture(statuses(core.JobStatusCompleted), 20)

	done := make(chan core.Outcome, 5)
	for range 5 {
		go func() { done <- f.orch.Run(context.Background(), validRequest()) }()
	}

	seen := make(map[string]bool)
	for range 5 {
		outcome := <-done
		require.True(t, outcome.Succeeded())
		seen[outcome.RunID.String()] = true
	}
	require.Len(t, seen, 5)
}
