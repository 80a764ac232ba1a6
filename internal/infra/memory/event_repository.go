package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

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

// EventRepository caches event configuration with TTL to avoid repeated
// backing-store hits. Status and winner writes go through to the loader
// (when it can persist them) and invalidate the cached copy.
type EventRepository struct {
	loader EventLoader
	writer EventWriter // nil when the loader cannot persist writes
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedEvent
}

type cachedEvent struct {
	event     domain.Event
	expiresAt time.Time
}

func NewEventRepository(loader EventLoader, ttl time.Duration) *EventRepository {
	writer, _ := loader.(EventWriter)
	return &EventRepository{
		loader: loader,
		writer: writer,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedEvent),
	}
}

func (r *EventRepository) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[eventID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.event, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(eventID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[eventID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.event, nil
		}
		r.mu.RUnlock()

		event, err := r.loader.LoadEvent(ctx, eventID)
		if err != nil {
			return domain.Event{}, err
		}

		r.mu.Lock()
		r.cache[eventID] = cachedEvent{
			event:     event,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
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
	r.invalidate(eventID)
	return nil
}

func (r *EventRepository) SetRaffleWinners(ctx context.Context, eventID, activityID string, winners []domain.RaffleWinner) error {
	if r.writer != nil {
		if err := r.writer.WriteRaffleWinners(ctx, eventID, activityID, winners); err != nil {
			return err
		}
	}
	r.invalidate(eventID)
	return nil
}

func (r *EventRepository) invalidate(eventID string) {
	r.mu.Lock()
	delete(r.cache, eventID)
	r.mu.Unlock()
}

func (r *EventRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticEventLoader is a loader backed by an in-memory map, useful for
// demos and tests. It also persists engine writes into the map so the
// lifecycle is observable without a database.
type StaticEventLoader struct {
	mu     sync.RWMutex
	events map[string]domain.Event
}

func NewStaticEventLoader(events map[string]domain.Event) *StaticEventLoader {
	copied := make(map[string]domain.Event, len(events))
	for id, ev := range events {
		copied[id] = ev
	}
	return &StaticEventLoader{events: copied}
}

func (l *StaticEventLoader) LoadEvent(_ context.Context, eventID string) (domain.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if event, ok := l.events[eventID]; ok {
		return event, nil
	}
	return domain.Event{}, domain.ErrEventNotFound
}

func (l *StaticEventLoader) WriteActivityStatus(_ context.Context, eventID, activityID string, status domain.ActivityStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	event, ok := l.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	// copy-on-write so events handed out earlier never change underfoot
	event.Activities = append([]domain.Activity(nil), event.Activities...)
	for i := range event.Activities {
		if event.Activities[i].ID == activityID {
			event.Activities[i].Status = status
			event.UpdatedAt = time.Now()
			l.events[eventID] = event
			return nil
		}
	}
	return domain.ErrActivityNotFound
}

func (l *StaticEventLoader) WriteRaffleWinners(_ context.Context, eventID, activityID string, winners []domain.RaffleWinner) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	event, ok := l.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	event.Activities = append([]domain.Activity(nil), event.Activities...)
	for i := range event.Activities {
		a := &event.Activities[i]
		if a.ID == activityID {
			if a.Raffle == nil {
				return fmt.Errorf("%w: activity is not a raffle", domain.ErrInvalidState)
			}
			raffle := *a.Raffle
			raffle.Winners = winners
			a.Raffle = &raffle
			l.events[eventID] = event
			return nil
		}
	}
	return domain.ErrActivityNotFound
}
