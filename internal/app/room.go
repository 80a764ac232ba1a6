package app

import (
	"fmt"
	"sync"

	"live-event-service/internal/domain"
)

// RoomRepository abstracts how event rooms are stored (in-memory, Redis-backed).
type RoomRepository interface {
	GetOrCreate(eventID string) *Room
	Get(eventID string) (*Room, bool)
	DeleteIfEmpty(eventID string)
}

// Room holds the authoritative runtime state of one event: the roster of
// joined participants and the currently active activity, if any. All
// mutations go through the orchestrator under r.mu, which is the
// single-writer discipline for the event. Broadcasts are emitted while the
// lock is held, so every connection observes them in production order.
type Room struct {
	eventID string

	mu           sync.Mutex
	participants map[string]*domain.Participant
	joinOrders   map[string]int // survives leave so rank tie-breaks stay stable
	joinSeq      int
	run          *activityRun

	// timerGen tags the countdown a timer goroutine belongs to. Any
	// transition that invalidates a running countdown bumps it; a tick whose
	// generation no longer matches is stale and discarded.
	timerGen uint64
}

// NewRoom creates an empty room for an event.
func NewRoom(eventID string) *Room {
	return &Room{
		eventID:      eventID,
		participants: make(map[string]*domain.Participant),
		joinOrders:   make(map[string]int),
	}
}

// EventID returns the event this room belongs to.
func (r *Room) EventID() string {
	return r.eventID
}

// IsEmpty reports whether the room has no participants and no active activity.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants) == 0 && r.run == nil
}

// activityRun is the runtime state of the single active activity in a room.
// Exactly one of quiz, poll, raffle is non-nil, matching activity.Type.
type activityRun struct {
	activity domain.Activity
	quiz     *quizRun
	poll     *pollRun
	raffle   *raffleRun
}

// newActivityRun validates the activity configuration and builds its runtime
// state. Validation happens before any shared state changes, so a bad
// configuration can never half-activate.
func newActivityRun(act domain.Activity) (*activityRun, error) {
	run := &activityRun{activity: act}
	switch act.Type {
	case domain.ActivityQuiz:
		if act.Quiz == nil || len(act.Quiz.Questions) == 0 {
			return nil, fmt.Errorf("%w: cannot start quiz with zero questions", domain.ErrInvalidState)
		}
		run.quiz = newQuizRun(*act.Quiz)
	case domain.ActivityPoll:
		if act.Poll == nil || len(act.Poll.Options) < 2 {
			return nil, fmt.Errorf("%w: poll needs at least two options", domain.ErrInvalidState)
		}
		run.poll = newPollRun(*act.Poll)
	case domain.ActivityRaffle:
		if act.Raffle == nil {
			return nil, fmt.Errorf("%w: raffle configuration missing", domain.ErrInvalidState)
		}
		run.raffle = newRaffleRun(*act.Raffle)
	default:
		return nil, fmt.Errorf("%w: unknown activity type %q", domain.ErrInvalidState, act.Type)
	}
	return run, nil
}

// announcement builds the participant-facing activity-activated payload.
func (ar *activityRun) announcement() ActivityAnnouncement {
	ann := ActivityAnnouncement{
		ID:   ar.activity.ID,
		Name: ar.activity.Name,
		Type: ar.activity.Type,
	}
	switch {
	case ar.quiz != nil:
		ann.Quiz = &QuizAnnouncement{
			QuestionCount:  len(ar.quiz.cfg.Questions),
			ScoringEnabled: ar.quiz.cfg.ScoringEnabled,
		}
	case ar.poll != nil:
		ann.Poll = &PollAnnouncement{
			Question:           ar.poll.cfg.Question,
			Options:            ar.poll.cfg.Options,
			AllowMultipleVotes: ar.poll.cfg.AllowMultipleVotes,
			ShowResultsLive:    ar.poll.cfg.ShowResultsLive,
		}
	case ar.raffle != nil:
		ann.Raffle = &RaffleAnnouncement{
			Prize:       ar.raffle.cfg.Prize,
			EntryMethod: ar.raffle.cfg.EntryMethod,
			WinnerCount: ar.raffle.cfg.WinnerCount,
		}
	}
	return ann
}

// joinLocked registers or refreshes a participant. Join order is assigned
// once per identity and reused on reconnect.
func (r *Room) joinLocked(p domain.Participant) domain.Participant {
	order, seen := r.joinOrders[p.ID]
	if !seen {
		r.joinSeq++
		order = r.joinSeq
		r.joinOrders[p.ID] = order
	}
	p.JoinOrder = order
	if existing, ok := r.participants[p.ID]; ok {
		existing.DisplayName = p.DisplayName
		return *existing
	}
	stored := p
	r.participants[p.ID] = &stored
	return stored
}

// rosterLocked returns the current participants in join order.
func (r *Room) rosterLocked() []*domain.Participant {
	roster := make([]*domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		roster = append(roster, p)
	}
	for i := 1; i < len(roster); i++ {
		for j := i; j > 0 && roster[j-1].JoinOrder > roster[j].JoinOrder; j-- {
			roster[j-1], roster[j] = roster[j], roster[j-1]
		}
	}
	return roster
}
