package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prudhvinik1/storeledger/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	agentStatusKeyPrefix = "agent-status:"
	agentStatusTTL       = 90 * time.Second // Status expires after 90 seconds without heartbeat
)

type RedisAgentStatusRepository struct {
	client *redis.Client
}

func NewRedisAgentStatusRepository(client *redis.Client) *RedisAgentStatusRepository {
	return &RedisAgentStatusRepository{client: client}
}

// SetStatus publishes the agent's status with an automatic TTL.
// Agents should call this well inside the TTL to stay visible.
func (r *RedisAgentStatusRepository) SetStatus(ctx context.Context, status *models.AgentStatus) error {
	status.LastSeen = time.Now()

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal agent status: %w", err)
	}

	if err := r.client.Set(ctx, agentStatusKey(status.StoreID), data, agentStatusTTL).Err(); err != nil {
		return fmt.Errorf("failed to set agent status: %w", err)
	}
	return nil
}

func (r *RedisAgentStatusRepository) GetStatus(ctx context.Context, storeID string) (*models.AgentStatus, error) {
	data, err := r.client.Get(ctx, agentStatusKey(storeID)).Result()
	if err == redis.Nil {
		// No heartbeat = agent is unreachable
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent status: %w", err)
	}

	var status models.AgentStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent status: %w", err)
	}
	return &status, nil
}

func (r *RedisAgentStatusRepository) DeleteStatus(ctx context.Context, storeID string) error {
	if err := r.client.Del(ctx, agentStatusKey(storeID)).Err(); err != nil {
		return fmt.Errorf("failed to delete agent status: %w", err)
	}
	return nil
}

// Helper: build Redis key for an agent status
func agentStatusKey(storeID string) string {
	return agentStatusKeyPrefix + storeID
}
