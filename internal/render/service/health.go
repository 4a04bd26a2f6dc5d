package service

import (
	"context"
	"time"

	"github.com/nemanja-m/ccrender/internal/shared/logging"
)

type BreakerProbe interface {
	BreakerOpen() bool
}

type HealthReporter interface {
	SetServing(service string, serving bool)
}

// RemoteHealthService is the health service name reflecting remote API reachability.
const RemoteHealthService = "ccrender.Remote"

// RemoteHealthMonitor periodically publishes the remote API circuit breaker state.
type RemoteHealthMonitor struct {
	checkInterval time.Duration
	probe         BreakerProbe
	reporter      HealthReporter
	logger        logging.Logger

	serving *bool
}

func NewRemoteHealthMonitor(
	checkInterval time.Duration,
	probe BreakerProbe,
	reporter HealthReporter,
	logger logging.Logger,
) *RemoteHealthMonitor {
	return &RemoteHealthMonitor{
		checkInterval: checkInterval,
		probe:         probe,
		reporter:      reporter,
		logger:        logger,
	}
}

func (h *RemoteHealthMonitor) Start(ctx context.Context) {
	h.check()

	ticker := time.NewTicker(h.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.check()
		}
	}
}

func (h *RemoteHealthMonitor) check() {
	serving := !h.probe.BreakerOpen()
	if h.serving != nil && *h.serving == serving {
		return
	}
	h.serving = &serving

	if serving {
		h.logger.Info("Remote API reachable", "service", RemoteHealthService)
	} else {
		h.logger.Warn("Remote API circuit open", "service", RemoteHealthService)
	}
	h.reporter.SetServing(RemoteHealthService, serving)
}
