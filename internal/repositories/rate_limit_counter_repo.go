package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/medalroll/internal/kv"
	"github.com/BradenHooton/medalroll/internal/models"
)

// counterExpiryGrace keeps a counter readable for a moment past its reset instant
const counterExpiryGrace = time.Second

// RateLimitCounterRepository stores fixed-window counters in a kv.Store as JSON
type RateLimitCounterRepository struct {
	store kv.Store
}

func NewRateLimitCounterRepository(store kv.Store) *RateLimitCounterRepository {
	return &RateLimitCounterRepository{store: store}
}

// Get returns models.ErrNotFound when no counter exists for the key
func (r *RateLimitCounterRepository) Get(ctx context.Context, key models.RateLimitKey) (*models.RateLimitCounter, error) {
	raw, err := r.store.Get(ctx, key.String())
	if errors.Is(err, kv.ErrNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read counter: %w", err)
	}

	var counter models.RateLimitCounter
	if err := json.Unmarshal(raw, &counter); err != nil {
		return nil, fmt.Errorf("failed to decode counter %s: %w", key, err)
	}

	return &counter, nil
}

// Save writes the counter with a TTL that ends just after its window
func (r *RateLimitCounterRepository) Save(ctx context.Context, key models.RateLimitKey, counter *models.RateLimitCounter, now time.Time) error {
	counter.Key = key.String()

	raw, err := json.Marshal(counter)
	if err != nil {
		return fmt.Errorf("failed to encode counter %s: %w", key, err)
	}

	ttl := counter.WindowResetAt.Sub(now) + counterExpiryGrace
	if ttl < counterExpiryGrace {
		ttl = counterExpiryGrace
	}

	if err := r.store.Set(ctx, key.String(), raw, ttl); err != nil {
		return fmt.Errorf("failed to write counter: %w", err)
	}

	return nil
}

// ListByAction returns every live counter for an action. Undecodable entries are skipped.
func (r *RateLimitCounterRepository) ListByAction(ctx context.Context, action models.RateLimitAction) ([]*models.RateLimitCounter, error) {
	prefix := models.RateLimitKey{Action: action}.Prefix()

	values, err := r.store.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list counters: %w", err)
	}

	counters := make([]*models.RateLimitCounter, 0, len(values))
	for _, raw := range values {
		var counter models.RateLimitCounter
		if err := json.Unmarshal(raw, &counter); err != nil {
			continue
		}
		counters = append(counters, &counter)
	}

	return counters, nil
}
