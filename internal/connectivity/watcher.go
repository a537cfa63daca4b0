package connectivity

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Pinger is anything that can cheaply check the remote store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher turns periodic pings into Monitor reports. It stands in for the
// runtime online/offline events a browser would deliver.
type Watcher struct {
	monitor  *Monitor
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewWatcher(monitor *Monitor, pinger Pinger, interval, timeout time.Duration, log logrus.FieldLogger) *Watcher {
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &Watcher{
		monitor:  monitor,
		pinger:   pinger,
		interval: interval,
		timeout:  timeout,
		log:      log.WithField("component", "watcher"),
	}
}

// CheckOnce pings the remote store and reports the outcome.
func (p *Watcher) CheckOnce(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.pinger.Ping(pingCtx)
	online := err == nil
	if p.monitor.Report(online) {
		if online {
			p.log.Info("Remote store reachable, now online")
		} else {
			p.log.WithError(err).Warn("Remote store unreachable, now offline")
		}
	}
	return online
}

// Run pings immediately and then on every tick until ctx is cancelled.
func (p *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CheckOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.CheckOnce(ctx)
		}
	}
}
