package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/nemanja-m/ccrender/internal/render/core"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any) {}
func (m *mockLogger) Info(msg string, args ...any)  {}
func (m *mockLogger) Warn(msg string, args ...any)  {}
func (m *mockLogger) Error(msg string, args ...any) {}
func (m *mockLogger) Fatal(msg string, args ...any) {}

type mockAuth struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockAuth) Credential(ctx context.Context) (core.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return "tok", nil
}

type mockJobClient struct {
	mu       sync.Mutex
	calls    int
	jobID    string
	err      error
	lastCred core.Credential
}

func (m *mockJobClient) Submit(ctx context.Context, req core.JobRequest, cred core.Credential) (*core.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastCred = cred
	if m.err != nil {
		return nil, m.err
	}
	return &core.Job{ID: m.jobID, Request: req}, nil
}

// mockStatusClient replays a scripted status sequence; the last entry repeats.
type mockStatusClient struct {
	mu       sync.Mutex
	reports  []*core.StatusReport
	errAt    int
	err      error
	calls    int
	onQuery  func(call int)
	lastCred core.Credential
}

func (m *mockStatusClient) GetStatus(ctx context.Context, jobID string, cred core.Credential) (*core.StatusReport, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.lastCred = cred
	hook := m.onQuery
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if m.err != nil && call == m.errAt {
		return nil, m.err
	}
	idx := min(call-1, len(m.reports)-1)
	return m.reports[idx], nil
}

func (m *mockStatusClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func statuses(s ...core.JobStatus) []*core.StatusReport {
	reports := make([]*core.StatusReport, 0, len(s))
	for _, st := range s {
		reports = append(reports, &core.StatusReport{Status: st})
	}
	return reports
}

type trackingBody struct {
	*bytes.Reader
	closed *int
}

func (b trackingBody) Close() error {
	*b.closed++
	return nil
}

type mockSource struct {
	mu      sync.Mutex
	files   map[string][]byte
	openErr map[string]error
	closed  int
	opened  []string
}

func (m *mockSource) Open(ctx context.Context, url string, cred core.Credential) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, url)
	if err := m.openErr[url]; err != nil {
		return nil, err
	}
	data, ok := m.files[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return trackingBody{Reader: bytes.NewReader(data), closed: &m.closed}, nil
}

type mockStore struct {
	mu     sync.Mutex
	files  map[string][]byte
	putErr map[string]error
	order  []string
}

func newMockStore() *mockStore {
	return &mockStore{files: make(map[string][]byte), putErr: make(map[string]error)}
}

func (m *mockStore) Put(ctx context.Context, name string, r io.Reader) (core.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.putErr[name]; err != nil {
		return core.Artifact{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Artifact{}, err
	}
	m.files[name] = data
	m.order = append(m.order, name)
	return core.Artifact{Name: name, Location: "/out/" + name, Size: int64(len(data))}, nil
}

func (m *mockStore) List(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...), nil
}

type mockRunStore struct {
	mu     sync.Mutex
	runs   map[uuid.UUID]*core.Run
	states []core.RunState
	err    error
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{runs: make(map[uuid.UUID]*core.Run)}
}

func (m *mockRunStore) SaveRun(ctx context.Context, run *core.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs[run.ID] = run
	m.states = append(m.states, run.State)
	return nil
}

func (m *mockRunStore) GetRun(ctx context.Context, id uuid.UUID) (*core.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, core.ErrRunNotFound
	}
	return run, nil
}

func (m *mockRunStore) ListRuns(ctx context.Context, filter core.RunFilter) ([]*core.Run, int, error) {
	return nil, 0, nil
}
