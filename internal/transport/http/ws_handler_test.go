package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"live-event-service/internal/app"
	"live-event-service/internal/domain"
	"live-event-service/internal/infra/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *app.Orchestrator) {
	t.Helper()
	logger := zap.NewNop()
	hub := NewHub(logger)
	orch := app.NewOrchestrator(
		memory.NewRoomStore(),
		memory.NewEventRepository(memory.NewStaticEventLoader(sampleEvent()), time.Minute),
		hub,
		app.ScoringConfig{},
	)
	wsHandler := NewWSHandler(orch, hub, 64, logger)
	restHandler := NewRESTHandler(orch, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	restHandler.Mount(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, orch
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(conn *websocket.Conn, t *testing.T, msgType string, payload map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

// waitForType drains broadcasts until the wanted type arrives.
func waitForType(conn *websocket.Conn, t *testing.T, want string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == want {
			return payload
		}
	}
	t.Fatalf("never received %s", want)
	return nil
}

func sampleEvent() map[string]domain.Event {
	return map[string]domain.Event{
		"event-1": {
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
						SpeedBonus:     true,
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
						},
					},
				},
				{
					ID:      "poll-1",
					EventID: "event-1",
					Name:    "Snack Poll",
					Type:    domain.ActivityPoll,
					Status:  domain.ActivityReady,
					Poll: &domain.PollConfig{
						Question: "Pick a snack",
						Options: []domain.PollOption{
							{ID: "a", Text: "Chips"},
							{ID: "b", Text: "Fruit"},
						},
						ShowResultsLive: true,
					},
				},
			},
		},
	}
}

func TestWebSocketJoinAndAnswerFlow(t *testing.T) {
	server, orch := newTestServer(t)
	conn := dial(t, server)

	send(conn, t, "join-event", map[string]any{
		"eventId":         "event-1",
		"participantName": "Alice",
	})
	_, joined := readNext(conn, t, "joined")
	participant, _ := joined["participant"].(map[string]any)
	if participant == nil || participant["id"] == "" {
		t.Fatalf("joined payload = %v", joined)
	}
	snapshot, _ := joined["snapshot"].(map[string]any)
	if snapshot == nil || snapshot["waiting"] != true {
		t.Fatalf("expected waiting snapshot, got %v", snapshot)
	}

	ctx := context.Background()
	if _, err := orch.Activate(ctx, "org-1", "event-1", "quiz-1"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := orch.DisplayQuestion(ctx, "org-1", "event-1", "quiz-1"); err != nil {
		t.Fatalf("display question: %v", err)
	}
	waitForType(conn, t, "activity-activated")
	question := waitForType(conn, t, "question-displayed")
	if question["activityId"] != "quiz-1" {
		t.Fatalf("question-displayed = %v", question)
	}

	send(conn, t, "submit-answer", map[string]any{
		"activityId":   "quiz-1",
		"questionId":   "q1",
		"answerId":     "o2",
		"responseTime": 2000,
	})
	result := waitForType(conn, t, "answer-result")
	if result["correct"] != true {
		t.Fatalf("answer-result = %v", result)
	}
	// base 1000 plus floor(500 * 8000/10000)
	if got, _ := result["awarded"].(float64); int(got) != 1400 {
		t.Fatalf("awarded = %v, want 1400", result["awarded"])
	}
}

func TestWebSocketRejectsBadHandshake(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server)

	send(conn, t, "submit-answer", map[string]any{"questionId": "q1"})
	typ, payload := readNext(conn, t, "error")
	if typ != "error" || payload["message"] == "" {
		t.Fatalf("expected handshake error, got %s %v", typ, payload)
	}
}

func TestWebSocketJoinUnknownEvent(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server)

	send(conn, t, "join-event", map[string]any{
		"eventId":         "missing",
		"participantName": "Alice",
	})
	readNext(conn, t, "error")
}

func TestWebSocketVoteFlow(t *testing.T) {
	server, orch := newTestServer(t)
	conn := dial(t, server)

	send(conn, t, "join-event", map[string]any{
		"eventId":         "event-1",
		"participantName": "Alice",
	})
	readNext(conn, t, "joined")

	if _, err := orch.Activate(context.Background(), "org-1", "event-1", "poll-1"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitForType(conn, t, "poll-started")

	send(conn, t, "vote", map[string]any{
		"activityId": "poll-1",
		"optionIds":  []string{"a"},
	})
	results := waitForType(conn, t, "poll-results-updated")
	if got, _ := results["totalVotes"].(float64); int(got) != 1 {
		t.Fatalf("poll-results-updated = %v", results)
	}
}

// A reconnect with the same participant ID must resume the identity instead
// of creating a second roster entry.
func TestWebSocketReconnectResumesIdentity(t *testing.T) {
	server, orch := newTestServer(t)
	conn := dial(t, server)

	send(conn, t, "join-event", map[string]any{
		"eventId":         "event-1",
		"participantName": "Alice",
	})
	_, joined := readNext(conn, t, "joined")
	participant := joined["participant"].(map[string]any)
	participantID, _ := participant["id"].(string)
	conn.Close()

	// wait for the server side to process the disconnect
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := orch.Snapshot("event-1")
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if snap.Participants == 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	again := dial(t, server)
	send(again, t, "join-event", map[string]any{
		"eventId":         "event-1",
		"participantName": "Alice",
		"participantId":   participantID,
	})
	_, rejoined := readNext(again, t, "joined")
	back := rejoined["participant"].(map[string]any)
	if back["id"] != participantID {
		t.Fatalf("rejoined as %v, want %s", back["id"], participantID)
	}
	snapshot := rejoined["snapshot"].(map[string]any)
	if got, _ := snapshot["participants"].(float64); int(got) != 1 {
		t.Fatalf("participants = %v, want 1", snapshot["participants"])
	}
}
