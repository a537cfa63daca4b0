// Package notify sends best-effort notifications about submissions that were
// confirmed by the remote store. Delivery failures are logged and dropped;
// they never affect a submission.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Notification struct {
	Kind      string         `json:"kind"`
	StoreID   string         `json:"store_id"`
	Submitter string         `json:"submitter"`
	Severity  string         `json:"severity,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	SentAt    time.Time      `json:"sent_at"`
}

// Subject is a one-line human summary, e.g. "Cash Reconciliation (critical) at store 12".
func (n Notification) Subject() string {
	// Casers are stateful, so one per call
	title := cases.Title(language.English).String(strings.ReplaceAll(n.Kind, "_", " "))
	if n.Severity != "" {
		title = fmt.Sprintf("%s (%s)", title, n.Severity)
	}
	if n.StoreID != "" {
		title = fmt.Sprintf("%s at store %s", title, n.StoreID)
	}
	return title
}

type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// DispatchError wraps a failed delivery.
type DispatchError struct {
	Backend string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("notification via %s failed: %v", e.Backend, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Noop drops every notification.
type Noop struct{}

func (Noop) Dispatch(context.Context, Notification) error { return nil }

// Async fires notifications in the background so callers never wait on, or
// see errors from, the underlying dispatcher.
type Async struct {
	next    Dispatcher
	timeout time.Duration
	log     logrus.FieldLogger
	wg      sync.WaitGroup
}

func NewAsync(next Dispatcher, timeout time.Duration, log logrus.FieldLogger) *Async {
	return &Async{next: next, timeout: timeout, log: log.WithField("component", "notify")}
}

// Fire schedules n for delivery and returns immediately.
func (a *Async) Fire(n Notification) {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Dispatch(ctx, n); err != nil {
			a.log.WithError(err).WithField("kind", n.Kind).Warn("Notification dispatch failed")
		}
	}()
}

// Wait blocks until every fired notification has been attempted.
func (a *Async) Wait() {
	a.wg.Wait()
}
