package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"live-event-service/internal/domain"
)

// EventRepository loads event configuration (from cache/backing store) and
// persists the terminal state the engine produces.
type EventRepository interface {
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
	SetActivityStatus(ctx context.Context, eventID, activityID string, status domain.ActivityStatus) error
	SetRaffleWinners(ctx context.Context, eventID, activityID string, winners []domain.RaffleWinner) error
}

// ScoringConfig parameterizes quiz scoring. Zero values fall back to defaults.
type ScoringConfig struct {
	BaseScore        int
	SpeedBonusMax    int
	StreakBonus      int
	StreakThresholds []int
}

func (c ScoringConfig) withDefaults() ScoringConfig {
	if c.BaseScore <= 0 {
		c.BaseScore = 1000
	}
	if c.SpeedBonusMax <= 0 {
		c.SpeedBonusMax = 500
	}
	if c.StreakBonus <= 0 {
		c.StreakBonus = 100
	}
	if len(c.StreakThresholds) == 0 {
		c.StreakThresholds = []int{3, 5, 10}
	}
	return c
}

// Orchestrator coordinates activity lifecycles across event rooms: it
// guards the one-active-activity invariant, delegates question/vote/draw
// logic to the per-type engine code, and emits broadcasts through the
// Broadcaster.
type Orchestrator struct {
	rooms   RoomRepository
	events  EventRepository
	b       Broadcaster
	scoring ScoringConfig
	now     func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// Option customizes an Orchestrator; used by tests to inject clocks and RNGs.
type Option func(*Orchestrator)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithRand replaces the raffle RNG source for deterministic draws.
func WithRand(src rand.Source) Option {
	return func(o *Orchestrator) { o.rnd = rand.New(src) }
}

func NewOrchestrator(rooms RoomRepository, events EventRepository, b Broadcaster, scoring ScoringConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rooms:   rooms,
		events:  events,
		b:       b,
		scoring: scoring.withDefaults(),
		now:     time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Join registers a participant in an event room. A non-empty participantID
// resumes an existing identity on reconnect; otherwise a fresh one is
// generated. The returned snapshot reflects the same state the next
// broadcast will build on.
func (o *Orchestrator) Join(ctx context.Context, eventID, participantID, displayName string) (domain.Participant, Snapshot, error) {
	if _, err := o.events.GetEvent(ctx, eventID); err != nil {
		return domain.Participant{}, Snapshot{}, err
	}

	if participantID == "" {
		participantID = uuid.New().String()
	}

	// A concurrent Leave can delete the room between GetOrCreate and the
	// join below, orphaning the new participant. Re-check after joining
	// that the store still holds the same room; once the participant is
	// in the roster, DeleteIfEmpty sees a non-empty room and keeps it.
	for {
		room := o.rooms.GetOrCreate(eventID)

		room.mu.Lock()
		p := room.joinLocked(domain.Participant{
			ID:          participantID,
			EventID:     eventID,
			DisplayName: displayName,
			JoinedAt:    o.now(),
		})
		snap := o.snapshotLocked(room)
		room.mu.Unlock()

		if current, ok := o.rooms.Get(eventID); ok && current == room {
			return p, snap, nil
		}
	}
}

// Leave removes a participant from the room roster. Scores and join order
// are retained so a reconnect resumes where the participant left off.
func (o *Orchestrator) Leave(_ context.Context, eventID, participantID string) {
	room, ok := o.rooms.Get(eventID)
	if !ok {
		return
	}
	room.mu.Lock()
	delete(room.participants, participantID)
	room.mu.Unlock()
	o.rooms.DeleteIfEmpty(eventID)
}

// ActiveActivity returns the currently active activity for an event, if any.
func (o *Orchestrator) ActiveActivity(eventID string) (domain.Activity, bool) {
	room, ok := o.rooms.Get(eventID)
	if !ok {
		return domain.Activity{}, false
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.run == nil {
		return domain.Activity{}, false
	}
	return room.run.activity, true
}

// Activate transitions a ready activity to active. If another activity is
// active in the same event it is deactivated first, and its
// activity-deactivated broadcast is emitted strictly before the new
// activity-activated. The whole transition happens under the room lock, so
// concurrent activations serialize and the one-active invariant holds.
func (o *Orchestrator) Activate(ctx context.Context, organizerID, eventID, activityID string) (domain.Activity, error) {
	event, err := o.authorize(ctx, organizerID, eventID)
	if err != nil {
		return domain.Activity{}, err
	}
	act, ok := event.FindActivity(activityID)
	if !ok {
		return domain.Activity{}, domain.ErrActivityNotFound
	}

	room := o.rooms.GetOrCreate(eventID)
	room.mu.Lock()

	if room.run != nil && room.run.activity.ID == activityID {
		room.mu.Unlock()
		return domain.Activity{}, fmt.Errorf("%w: activity already active", domain.ErrInvalidState)
	}
	if act.Status != domain.ActivityReady {
		room.mu.Unlock()
		return domain.Activity{}, fmt.Errorf("%w: activity is %s, not ready", domain.ErrInvalidState, act.Status)
	}

	run, err := newActivityRun(act)
	if err != nil {
		room.mu.Unlock()
		return domain.Activity{}, err
	}

	var previousID string
	if room.run != nil {
		previousID = room.run.activity.ID
		room.timerGen++
		room.run = nil
		o.b.Broadcast(eventID, EventActivityDeactivated, ActivityRefPayload{ActivityID: previousID})
	}

	act.Status = domain.ActivityActive
	run.activity = act
	room.run = run
	o.b.Broadcast(eventID, EventActivityActivated, run.announcement())
	switch {
	case run.poll != nil:
		o.b.Broadcast(eventID, EventPollStarted, *run.announcement().Poll)
	case run.raffle != nil:
		o.b.Broadcast(eventID, EventRaffleStarted, *run.announcement().Raffle)
		if run.raffle.cfg.EntryMethod == domain.EntryAutomatic {
			o.enterAllLocked(room, run.raffle)
		}
	}
	room.mu.Unlock()

	if previousID != "" {
		if err := o.events.SetActivityStatus(ctx, eventID, previousID, domain.ActivityReady); err != nil {
			return act, fmt.Errorf("persist deactivated status: %w", err)
		}
	}
	if err := o.events.SetActivityStatus(ctx, eventID, activityID, domain.ActivityActive); err != nil {
		return act, fmt.Errorf("persist active status: %w", err)
	}
	return act, nil
}

// Deactivate stops the active activity and returns it to ready, so the
// organizer can re-activate it later. Ending an activity for good goes
// through EndQuiz/EndPoll/EndRaffle instead.
func (o *Orchestrator) Deactivate(ctx context.Context, organizerID, eventID, activityID string) error {
	if _, err := o.authorize(ctx, organizerID, eventID); err != nil {
		return err
	}
	room, ok := o.rooms.Get(eventID)
	if !ok {
		return fmt.Errorf("%w: no activity is active", domain.ErrInvalidState)
	}

	room.mu.Lock()
	if room.run == nil || room.run.activity.ID != activityID {
		room.mu.Unlock()
		return fmt.Errorf("%w: activity is not active", domain.ErrInvalidState)
	}
	room.timerGen++
	room.run = nil
	o.b.Broadcast(eventID, EventActivityDeactivated, ActivityRefPayload{ActivityID: activityID})
	o.b.Broadcast(eventID, EventWaitingForActivity, WaitingPayload{Message: DefaultWaitingMessage})
	room.mu.Unlock()

	return o.events.SetActivityStatus(ctx, eventID, activityID, domain.ActivityReady)
}

// finishLocked clears the active run after an engine-driven end and tells
// the room it is back to waiting. Called with the room lock held.
func (o *Orchestrator) finishLocked(room *Room) {
	room.timerGen++
	room.run = nil
	o.b.Broadcast(room.eventID, EventWaitingForActivity, WaitingPayload{Message: DefaultWaitingMessage})
}

// authorize checks the organizer identity against the event owner. Full
// authentication lives with the HTTP collaborator; the engine only refuses
// to act on an absent or mismatched identity.
func (o *Orchestrator) authorize(ctx context.Context, organizerID, eventID string) (domain.Event, error) {
	if organizerID == "" {
		return domain.Event{}, domain.ErrUnauthorized
	}
	event, err := o.events.GetEvent(ctx, eventID)
	if err != nil {
		return domain.Event{}, err
	}
	if event.OrganizerID != organizerID {
		return domain.Event{}, domain.ErrUnauthorized
	}
	return event, nil
}

// activeRun fetches the room and its active run, checking the activity ID.
// On success the room lock is held; the caller must unlock.
func (o *Orchestrator) activeRun(eventID, activityID string) (*Room, *activityRun, error) {
	room, ok := o.rooms.Get(eventID)
	if !ok {
		return nil, nil, domain.ErrEventNotFound
	}
	room.mu.Lock()
	if room.run == nil || room.run.activity.ID != activityID {
		room.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: activity is not active", domain.ErrInvalidState)
	}
	return room, room.run, nil
}
