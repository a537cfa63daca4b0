// Package forms holds the submission surfaces: each validates one kind of
// form, derives its computed fields, and hands the record to the sync
// engine. None of them talks to the remote store directly.
package forms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prudhvinik1/storeledger/internal/models"
	"github.com/prudhvinik1/storeledger/internal/notify"
	"github.com/prudhvinik1/storeledger/internal/syncengine"
	"github.com/sirupsen/logrus"
)

// Remote collections, one per form kind.
const (
	CollectionCash      = "cash_reconciliations"
	CollectionChecklist = "checklists"
	CollectionIncident  = "incidents"
	CollectionInventory = "inventory_issues"
	CollectionReport    = "employee_reports"
)

var ErrChecklistIncomplete = errors.New("checklist has incomplete items")

// ValidationError rejects a form before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Submitter is the slice of the sync engine the surfaces need.
type Submitter interface {
	Submit(ctx context.Context, collection string, record map[string]any) (syncengine.Result, error)
}

// Notifier fires a notification without waiting for it.
type Notifier interface {
	Fire(n notify.Notification)
}

type Forms struct {
	engine   Submitter
	notifier Notifier
	log      logrus.FieldLogger
	now      func() time.Time
}

func New(engine Submitter, notifier Notifier, log logrus.FieldLogger) *Forms {
	return &Forms{
		engine:   engine,
		notifier: notifier,
		log:      log.WithField("component", "forms"),
		now:      time.Now,
	}
}

// submission is what every surface hands to finish once its own fields are
// validated and derived.
type submission struct {
	kind       string
	collection string
	record     map[string]any
	derived    map[string]any
	severity   string
	notify     map[string]any
}

// finish stamps the common fields, submits, and fires the notification only
// when the record reached the remote store synchronously.
func (f *Forms) finish(ctx context.Context, who models.Submitter, s submission) (*models.Receipt, error) {
	if who.UserID == "" {
		return nil, invalid("submitter", "is required")
	}
	if who.StoreID == "" {
		return nil, invalid("store_id", "is required")
	}

	submittedAt := f.now().UTC()
	s.record["store_id"] = who.StoreID
	s.record["submitted_by"] = who.UserID
	s.record["submitted_at"] = submittedAt.Format(time.RFC3339)
	for k, v := range s.derived {
		s.record[k] = v
	}

	res, err := f.engine.Submit(ctx, s.collection, s.record)
	if err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", s.kind, err)
	}

	receipt := &models.Receipt{
		Kind:        s.kind,
		Collection:  s.collection,
		State:       models.RecordLocal,
		QueueID:     res.QueueID,
		SubmittedAt: submittedAt,
		Derived:     s.derived,
	}
	if res.PersistedRemotely {
		receipt.State = models.RecordConfirmed
		f.notifier.Fire(notify.Notification{
			Kind:      s.kind,
			StoreID:   who.StoreID,
			Submitter: submitterName(who),
			Severity:  s.severity,
			Fields:    s.notify,
		})
	}

	f.log.WithFields(logrus.Fields{
		"kind":  s.kind,
		"state": receipt.State,
		"store": who.StoreID,
	}).Info("Form submitted")
	return receipt, nil
}

func submitterName(who models.Submitter) string {
	if who.Name != "" {
		return who.Name
	}
	return who.UserID
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
