package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	open atomic.Bool
}

func (p *fakeProbe) BreakerOpen() bool { return p.open.Load() }

type recordingReporter struct {
	mu      sync.Mutex
	updates []bool
}

func (r *recordingReporter) SetServing(service string, serving bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, serving)
}

func (r *recordingReporter) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.updates...)
}

func TestRemoteHealthMonitor_ReportsOnlyChanges(t *testing.T) {
	probe := &fakeProbe{}
	reporter := &recordingReporter{}
	monitor := NewRemoteHealthMonitor(5*time.Millisecond, probe, reporter, &mockLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(reporter.snapshot()) == 1 }, time.Second, time.Millisecond)

	probe.open.Store(true)
	require.Eventually(t, func() bool { return len(reporter.snapshot()) == 2 }, time.Second, time.Millisecond)

	probe.open.Store(false)
	require.Eventually(t, func() bool { return len(reporter.snapshot()) == 3 }, time.Second, time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	require.Equal(t, []bool{true, false, true}, reporter.snapshot())
}
