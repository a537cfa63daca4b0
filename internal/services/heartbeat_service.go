package services

import (
	"context"
	"time"

	"github.com/prudhvinik1/storeledger/internal/models"
	"github.com/prudhvinik1/storeledger/internal/repositories"
	"github.com/sirupsen/logrus"
)

// SyncStatus is what a heartbeat reports about the local agent.
type SyncStatus interface {
	Online() bool
	PendingCount() int
	OnPendingCountChanged(fn func(pending int)) (unsubscribe func())
}

// HeartbeatService publishes the agent's status so head office can see which
// stores are holding unsynced submissions. It beats on an interval and
// whenever the pending count changes.
type HeartbeatService struct {
	repo     repositories.AgentStatusRepository
	status   SyncStatus
	storeID  string
	agentID  string
	interval time.Duration
	log      logrus.FieldLogger
}

func NewHeartbeatService(
	repo repositories.AgentStatusRepository,
	status SyncStatus,
	storeID, agentID string,
	interval time.Duration,
	log logrus.FieldLogger,
) *HeartbeatService {
	return &HeartbeatService{
		repo:     repo,
		status:   status,
		storeID:  storeID,
		agentID:  agentID,
		interval: interval,
		log:      log.WithField("component", "heartbeat"),
	}
}

// Beat publishes the current status once.
func (s *HeartbeatService) Beat(ctx context.Context) error {
	return s.repo.SetStatus(ctx, &models.AgentStatus{
		StoreID: s.storeID,
		AgentID: s.agentID,
		Online:  s.status.Online(),
		Pending: s.status.PendingCount(),
	})
}

// Run beats until ctx is cancelled. On a clean exit with nothing pending the
// status is removed; otherwise it is left to expire so the backlog stays visible.
func (s *HeartbeatService) Run(ctx context.Context) error {
	changed := make(chan struct{}, 1)
	unsubscribe := s.status.OnPendingCountChanged(func(int) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.beat(ctx)
	for {
		select {
		case <-ctx.Done():
			s.stop()
			return nil
		case <-ticker.C:
			s.beat(ctx)
		case <-changed:
			s.beat(ctx)
		}
	}
}

func (s *HeartbeatService) beat(ctx context.Context) {
	if err := s.Beat(ctx); err != nil && ctx.Err() == nil {
		s.log.WithError(err).Warn("Failed to publish heartbeat")
	}
}

func (s *HeartbeatService) stop() {
	if s.status.PendingCount() > 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.repo.DeleteStatus(ctx, s.storeID); err != nil {
		s.log.WithError(err).Warn("Failed to clear heartbeat")
	}
}
