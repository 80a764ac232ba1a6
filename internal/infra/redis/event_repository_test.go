package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"live-event-service/internal/domain"
	"live-event-service/internal/infra/memory"
)

func TestEventRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{
		StaticEventLoader: memory.NewStaticEventLoader(map[string]domain.Event{
			"event-1": sampleEvent(),
		}),
	}
	repo := NewEventRepository(client, loader, time.Minute)

	if _, err := repo.GetEvent(context.Background(), "event-1"); err != nil {
		t.Fatalf("get event: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("event:event-1:config") {
		t.Fatal("expected cached config key in redis")
	}

	// Second call should hit the cache, loader not incremented.
	if _, err := repo.GetEvent(context.Background(), "event-1"); err != nil {
		t.Fatalf("get event 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestEventRepositoryWriteInvalidatesKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := memory.NewStaticEventLoader(map[string]domain.Event{
		"event-1": sampleEvent(),
	})
	repo := NewEventRepository(client, loader, time.Minute)
	ctx := context.Background()

	if _, err := repo.GetEvent(ctx, "event-1"); err != nil {
		t.Fatalf("get event: %v", err)
	}
	if err := repo.SetActivityStatus(ctx, "event-1", "quiz-1", domain.ActivityCompleted); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if mr.Exists("event:event-1:config") {
		t.Fatal("expected cached key to be invalidated after write")
	}

	event, err := repo.GetEvent(ctx, "event-1")
	if err != nil {
		t.Fatalf("get event after write: %v", err)
	}
	act, ok := event.FindActivity("quiz-1")
	if !ok || act.Status != domain.ActivityCompleted {
		t.Fatalf("status = %+v, want completed", act)
	}
}

// countingLoader embeds the concrete loader so its writer methods
// promote and the repository keeps writing through to the store.
type countingLoader struct {
	*memory.StaticEventLoader
	calls int
}

func (l *countingLoader) LoadEvent(ctx context.Context, eventID string) (domain.Event, error) {
	l.calls++
	return l.StaticEventLoader.LoadEvent(ctx, eventID)
}

func sampleEvent() domain.Event {
	return domain.Event{
		ID:          "event-1",
		OrganizerID: "org-1",
		Name:        "Launch Party",
		Status:      domain.EventLive,
		Activities: []domain.Activity{
			{
				ID:      "quiz-1",
				EventID: "event-1",
				Name:    "Warmup Quiz",
				Type:    domain.ActivityQuiz,
				Status:  domain.ActivityReady,
				Quiz: &domain.QuizConfig{
					ScoringEnabled: true,
					Questions: []domain.Question{
						{
							ID:   "q1",
							Text: "What is 2 + 2?",
							Options: []domain.Option{
								{ID: "o1", Text: "3"},
								{ID: "o2", Text: "4", Correct: true},
							},
							OrderIndex: 1,
						},
					},
				},
			},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
