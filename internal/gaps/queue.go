package gaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ticket-bridge/internal/status"
	"ticket-bridge/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const indexKey = "reconcile:gaps"

func gapKey(id string) string {
	return fmt.Sprintf("reconcile:gap:%s", id)
}

// Queue keeps reconciliation gaps in Redis until an operator repairs them.
// Each gap is a hash holding the JSON record; a sorted set scored by creation
// time indexes them oldest first.
type Queue struct {
	Redis *redis.Client

	now   func() time.Time
	newID func() string
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{
		Redis: redisClient,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Push stores gap, assigning ID and CreatedAt when they are unset.
func (q *Queue) Push(ctx context.Context, gap *models.Gap) error {
	if gap.ID == "" {
		gap.ID = q.newID()
	}
	if gap.CreatedAt.IsZero() {
		gap.CreatedAt = q.now().UTC()
	}

	data, err := json.Marshal(gap)
	if err != nil {
		return fmt.Errorf("failed to encode gap: %w", err)
	}

	_, err = q.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, gapKey(gap.ID), "record", string(data), "action", gap.Action)
		pipe.ZAdd(ctx, indexKey, redis.Z{
			Score:  float64(gap.CreatedAt.UnixMilli()),
			Member: gap.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to push gap %s: %w", gap.ID, err)
	}

	return nil
}

func (q *Queue) Get(ctx context.Context, id string) (*models.Gap, error) {
	data, err := q.Redis.HGet(ctx, gapKey(id), "record").Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("gap %s: %w", id, status.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gap %s: %w", id, err)
	}

	var gap models.Gap
	if err := json.Unmarshal([]byte(data), &gap); err != nil {
		return nil, fmt.Errorf("failed to decode gap %s: %w", id, err)
	}
	return &gap, nil
}

// List returns up to limit gaps, oldest first. limit <= 0 returns all.
func (q *Queue) List(ctx context.Context, limit int64) ([]*models.Gap, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}

	ids, err := q.Redis.ZRange(ctx, indexKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list gaps: %w", err)
	}

	gaps := make([]*models.Gap, 0, len(ids))
	for _, id := range ids {
		gap, err := q.Get(ctx, id)
		if errors.Is(err, status.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		gaps = append(gaps, gap)
	}

	return gaps, nil
}

// Resolve removes a repaired gap.
func (q *Queue) Resolve(ctx context.Context, id string) error {
	var removed *redis.IntCmd

	_, err := q.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, gapKey(id))
		removed = pipe.ZRem(ctx, indexKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to resolve gap %s: %w", id, err)
	}
	if removed.Val() == 0 {
		return fmt.Errorf("gap %s: %w", id, status.ErrNotFound)
	}

	return nil
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.Redis.ZCard(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count gaps: %w", err)
	}
	return n, nil
}
