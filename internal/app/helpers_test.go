package app_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"live-event-service/internal/app"
	"live-event-service/internal/domain"
	"live-event-service/internal/infra/memory"
)

const (
	testEventID   = "event-1"
	testOrganizer = "org-1"
)

// recordedEvent captures one broadcast or unicast for assertions.
type recordedEvent struct {
	EventID       string
	ParticipantID string // empty for room-wide broadcasts
	Type          string
	Payload       any
}

// recorder is an app.Broadcaster that remembers everything in order.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Broadcast(eventID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{EventID: eventID, Type: event, Payload: payload})
}

func (r *recorder) SendTo(eventID, participantID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{EventID: eventID, ParticipantID: participantID, Type: event, Payload: payload})
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) last(event string) (recordedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == event {
			return r.events[i], true
		}
	}
	return recordedEvent{}, false
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == event {
			n++
		}
	}
	return n
}

// indexOf returns the position of the first occurrence, or -1.
func (r *recorder) indexOf(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.events {
		if e.Type == event {
			return i
		}
	}
	return -1
}

// waitFor polls until the event shows up or the deadline passes.
func (r *recorder) waitFor(t *testing.T, event string, timeout time.Duration) recordedEvent {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e, ok := r.last(event); ok {
			return e
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; saw %v", event, r.types())
	return recordedEvent{}
}

func quizActivity(id string, cfg domain.QuizConfig) domain.Activity {
	return domain.Activity{
		ID:      id,
		EventID: testEventID,
		Name:    "Quiz " + id,
		Type:    domain.ActivityQuiz,
		Status:  domain.ActivityReady,
		Quiz:    &cfg,
	}
}

func pollActivity(id string, cfg domain.PollConfig) domain.Activity {
	return domain.Activity{
		ID:      id,
		EventID: testEventID,
		Name:    "Poll " + id,
		Type:    domain.ActivityPoll,
		Status:  domain.ActivityReady,
		Poll:    &cfg,
	}
}

func raffleActivity(id string, cfg domain.RaffleConfig) domain.Activity {
	return domain.Activity{
		ID:      id,
		EventID: testEventID,
		Name:    "Raffle " + id,
		Type:    domain.ActivityRaffle,
		Status:  domain.ActivityReady,
		Raffle:  &cfg,
	}
}

// twoQuestionQuiz is the default quiz fixture: a timed question and an
// untimed follow-up.
func twoQuestionQuiz() domain.QuizConfig {
	return domain.QuizConfig{
		ScoringEnabled: true,
		SpeedBonus:     true,
		StreakTracking: true,
		Questions: []domain.Question{
			{
				ID:   "q1",
				Text: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4", Correct: true},
					{ID: "o3", Text: "5"},
				},
				TimerSeconds: 10,
				OrderIndex:   1,
			},
			{
				ID:   "q2",
				Text: "Which planet is closest to the sun?",
				Options: []domain.Option{
					{ID: "o1", Text: "Venus"},
					{ID: "o2", Text: "Mercury", Correct: true},
				},
				OrderIndex: 2,
			},
		},
	}
}

type fixture struct {
	orch   *app.Orchestrator
	rec    *recorder
	loader *memory.StaticEventLoader
}

// newFixture wires an orchestrator over in-memory infrastructure with the
// given activities attached to the test event.
func newFixture(t *testing.T, activities ...domain.Activity) *fixture {
	t.Helper()
	return newSeededFixture(t, 42, activities...)
}

// newSeededFixture pins the raffle RNG so draw tests are reproducible.
func newSeededFixture(t *testing.T, seed int64, activities ...domain.Activity) *fixture {
	t.Helper()
	loader := memory.NewStaticEventLoader(map[string]domain.Event{
		testEventID: {
			ID:          testEventID,
			OrganizerID: testOrganizer,
			Name:        "Test Event",
			Status:      domain.EventLive,
			Activities:  activities,
		},
	})
	rec := &recorder{}
	orch := app.NewOrchestrator(
		memory.NewRoomStore(),
		memory.NewEventRepository(loader, time.Minute),
		rec,
		app.ScoringConfig{BaseScore: 1000, SpeedBonusMax: 500, StreakBonus: 100, StreakThresholds: []int{3, 5, 10}},
		app.WithRand(rand.NewSource(seed)),
	)
	return &fixture{orch: orch, rec: rec, loader: loader}
}

func (f *fixture) join(t *testing.T, id, name string) domain.Participant {
	t.Helper()
	p, _, err := f.orch.Join(context.Background(), testEventID, id, name)
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return p
}

func (f *fixture) activate(t *testing.T, activityID string) {
	t.Helper()
	if _, err := f.orch.Activate(context.Background(), testOrganizer, testEventID, activityID); err != nil {
		t.Fatalf("activate %s: %v", activityID, err)
	}
}

// activityStatus reads the persisted status from the backing loader,
// bypassing the cache.
func (f *fixture) activityStatus(t *testing.T, activityID string) domain.ActivityStatus {
	t.Helper()
	event, err := f.loader.LoadEvent(context.Background(), testEventID)
	if err != nil {
		t.Fatalf("load event: %v", err)
	}
	act, ok := event.FindActivity(activityID)
	if !ok {
		t.Fatalf("activity %s not found", activityID)
	}
	return act.Status
}
