package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"live-event-service/internal/domain"
)

// EventLoader fetches event configuration from a backing store.
type EventLoader interface {
	LoadEvent(ctx context.Context, eventID string) (domain.Event, error)
}

// EventWriter persists engine-produced state back to the backing store.
type EventWriter interface {
	WriteActivityStatus(ctx context.Context, eventID, activityID string, status domain.ActivityStatus) error
	WriteRaffleWinners(ctx context.Context, eventID, activityID string, winners []domain.RaffleWinner) error
}

// EventRepository caches event configuration in Redis as a JSON blob:
// SET event:{eventID}:config {json} with TTL. Cache misses fall back to the
// loader under singleflight; writes invalidate the key so the next read
// sees the persisted state.
type EventRepository struct {
	client *redis.Client
	loader EventLoader
	writer EventWriter // nil when the loader cannot persist writes
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewEventRepository(client *redis.Client, loader EventLoader, ttl time.Duration) *EventRepository {
	writer, _ := loader.(EventWriter)
	return &EventRepository{
		client: client,
		loader: loader,
		writer: writer,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *EventRepository) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	key := r.configKey(eventID)

	if event, ok := r.fromCache(ctx, key); ok {
		return event, nil
	}

	result, err, _ := r.sf.Do(eventID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if event, ok := r.fromCache(ctx, key); ok {
			return event, nil
		}

		event, err := r.loader.LoadEvent(ctx, eventID)
		if err != nil {
			return domain.Event{}, err
		}

		data, err := json.Marshal(event)
		if err != nil {
			return domain.Event{}, fmt.Errorf("marshal event: %w", err)
		}
		_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		return event, nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return result.(domain.Event), nil
}

func (r *EventRepository) SetActivityStatus(ctx context.Context, eventID, activityID string, status domain.ActivityStatus) error {
	if r.writer != nil {
		if err := r.writer.WriteActivityStatus(ctx, eventID, activityID, status); err != nil {
			return err
		}
	}
	return r.client.Del(ctx, r.configKey(eventID)).Err()
}

func (r *EventRepository) SetRaffleWinners(ctx context.Context, eventID, activityID string, winners []domain.RaffleWinner) error {
	if r.writer != nil {
		if err := r.writer.WriteRaffleWinners(ctx, eventID, activityID, winners); err != nil {
			return err
		}
	}
	return r.client.Del(ctx, r.configKey(eventID)).Err()
}

func (r *EventRepository) fromCache(ctx context.Context, key string) (domain.Event, bool) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil || len(data) == 0 {
		return domain.Event{}, false
	}
	var event domain.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.Event{}, false
	}
	return event, true
}

func (r *EventRepository) configKey(eventID string) string {
	return "event:" + eventID + ":config"
}

func (r *EventRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
