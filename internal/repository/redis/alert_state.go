package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"delphi/pkg/errors"
)

// AlertState records the last notification sent for a symbol and alert
// kind. Consumers use it to suppress repeats: the key expires after the
// cooldown, and a changed value breaks through before that.
type AlertState struct {
	Symbol string    `json:"symbol"`
	Kind   string    `json:"kind"`  // price_above, price_below, phase, breakout
	Value  string    `json:"value"` // fingerprint of the alert payload
	SentAt time.Time `json:"sent_at"`
}

// AlertStateRepository stores alert delivery state in Redis
type AlertStateRepository struct {
	client *redis.Client
}

// NewAlertStateRepository creates a new alert state repository
func NewAlertStateRepository(client *redis.Client) *AlertStateRepository {
	return &AlertStateRepository{
		client: client,
	}
}

// Get retrieves the last sent state for a symbol and alert kind
func (r *AlertStateRepository) Get(ctx context.Context, symbol, kind string) (*AlertState, error) {
	key := r.getKey(symbol, kind)

	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "no alert state for %s/%s", symbol, kind)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get alert state from redis: %s/%s", symbol, kind)
	}

	var state AlertState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal alert state: %s/%s", symbol, kind)
	}

	return &state, nil
}

// MarkSent stores the delivery state with the cooldown as TTL
func (r *AlertStateRepository) MarkSent(ctx context.Context, state *AlertState, cooldown time.Duration) error {
	if state.SentAt.IsZero() {
		state.SentAt = time.Now().UTC()
	}
	key := r.getKey(state.Symbol, state.Kind)

	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal alert state: %s/%s", state.Symbol, state.Kind)
	}

	if err := r.client.Set(ctx, key, data, cooldown).Err(); err != nil {
		return errors.Wrapf(err, "failed to save alert state to redis: %s/%s", state.Symbol, state.Kind)
	}

	return nil
}

// ShouldSend reports whether an alert with this value may go out now.
// Missing state allows, a changed value allows, an unexpired repeat of
// the same value suppresses.
func (r *AlertStateRepository) ShouldSend(ctx context.Context, symbol, kind, value string) (bool, error) {
	state, err := r.Get(ctx, symbol, kind)
	if errors.Is(err, errors.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return state.Value != value, nil
}

// Delete removes the stored state, re-arming the alert
func (r *AlertStateRepository) Delete(ctx context.Context, symbol, kind string) error {
	key := r.getKey(symbol, kind)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete alert state from redis: %s/%s", symbol, kind)
	}

	return nil
}

func (r *AlertStateRepository) getKey(symbol, kind string) string {
	return fmt.Sprintf("alert_state:%s:%s", symbol, kind)
}
