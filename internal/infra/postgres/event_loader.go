package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"live-event-service/internal/domain"
)

// EventLoader loads event JSONB from Postgres and writes the engine's
// terminal state back into the same document.
type EventLoader struct {
	pool *pgxpool.Pool
}

func NewEventLoader(pool *pgxpool.Pool) *EventLoader {
	return &EventLoader{pool: pool}
}

func (l *EventLoader) LoadEvent(ctx context.Context, eventID string) (domain.Event, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM events WHERE id=$1`, eventID).Scan(&raw)
	if err != nil {
		return domain.Event{}, fmt.Errorf("load event: %w", err)
	}
	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return domain.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}

func (l *EventLoader) WriteActivityStatus(ctx context.Context, eventID, activityID string, status domain.ActivityStatus) error {
	return l.update(ctx, eventID, func(event *domain.Event) error {
		for i := range event.Activities {
			if event.Activities[i].ID == activityID {
				event.Activities[i].Status = status
				return nil
			}
		}
		return domain.ErrActivityNotFound
	})
}

func (l *EventLoader) WriteRaffleWinners(ctx context.Context, eventID, activityID string, winners []domain.RaffleWinner) error {
	return l.update(ctx, eventID, func(event *domain.Event) error {
		for i := range event.Activities {
			a := &event.Activities[i]
			if a.ID == activityID {
				if a.Raffle == nil {
					return fmt.Errorf("%w: activity is not a raffle", domain.ErrInvalidState)
				}
				a.Raffle.Winners = winners
				return nil
			}
		}
		return domain.ErrActivityNotFound
	})
}

// update applies a mutation to the event document inside a transaction,
// holding a row lock so concurrent writes cannot clobber each other.
func (l *EventLoader) update(ctx context.Context, eventID string, mutate func(*domain.Event) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	if err := tx.QueryRow(ctx, `SELECT data FROM events WHERE id=$1 FOR UPDATE`, eventID).Scan(&raw); err != nil {
		return fmt.Errorf("lock event: %w", err)
	}
	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}
	if err := mutate(&event); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE events SET data=$2 WHERE id=$1`, eventID, data); err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return tx.Commit(ctx)
}
