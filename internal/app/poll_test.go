package app_test

import (
	"context"
	"errors"
	"testing"

	"live-event-service/internal/app"
	"live-event-service/internal/domain"
)

func lunchPoll(allowMultiple, liveResults bool) domain.PollConfig {
	return domain.PollConfig{
		Question: "Where should we eat?",
		Options: []domain.PollOption{
			{ID: "a", Text: "Pizza"},
			{ID: "b", Text: "Sushi"},
			{ID: "c", Text: "Tacos"},
		},
		AllowMultipleVotes: allowMultiple,
		ShowResultsLive:    liveResults,
	}
}

func (f *fixture) vote(t *testing.T, participantID string, optionIDs ...string) domain.PollResults {
	t.Helper()
	res, err := f.orch.SubmitVote(context.Background(), testEventID, "poll-1", participantID, optionIDs)
	if err != nil {
		t.Fatalf("vote %v: %v", optionIDs, err)
	}
	return res
}

func countFor(t *testing.T, res domain.PollResults, optionID string) int {
	t.Helper()
	for _, c := range res.Counts {
		if c.OptionID == optionID {
			return c.Votes
		}
	}
	t.Fatalf("option %s missing from results %+v", optionID, res)
	return 0
}

func TestVoteAggregation(t *testing.T) {
	f := newFixture(t, pollActivity("poll-1", lunchPoll(false, true)))
	p1 := f.join(t, "", "Ada")
	p2 := f.join(t, "", "Grace")
	p3 := f.join(t, "", "Edsger")
	f.activate(t, "poll-1")

	f.vote(t, p1.ID, "a")
	f.vote(t, p2.ID, "a")
	res := f.vote(t, p3.ID, "b")

	if countFor(t, res, "a") != 2 || countFor(t, res, "b") != 1 || countFor(t, res, "c") != 0 {
		t.Fatalf("counts = %+v", res.Counts)
	}
	if res.TotalVotes != 3 || res.Voters != 3 {
		t.Fatalf("totalVotes/voters = %d/%d", res.TotalVotes, res.Voters)
	}
	// live results go out on every accepted vote
	if got := f.rec.count(app.EventPollResultsUpdated); got != 3 {
		t.Fatalf("poll-results-updated broadcasts = %d, want 3", got)
	}
}

func TestSingleChoiceRejectsMultipleOptions(t *testing.T) {
	f := newFixture(t, pollActivity("poll-1", lunchPoll(false, true)))
	p := f.join(t, "", "Ada")
	f.activate(t, "poll-1")

	_, err := f.orch.SubmitVote(context.Background(), testEventID, "poll-1", p.ID, []string{"a", "b"})
	if !errors.Is(err, domain.ErrMultipleChoicesNotAllowed) {
		t.Fatalf("want ErrMultipleChoicesNotAllowed, got %v", err)
	}
}

func TestSingleChoiceFirstVoteIsFinal(t *testing.T) {
	f := newFixture(t, pollActivity("poll-1", lunchPoll(false, true)))
	p := f.join(t, "", "Ada")
	f.activate(t, "poll-1")

	f.vote(t, p.ID, "a")
	_, err := f.orch.SubmitVote(context.Background(), testEventID, "poll-1", p.ID, []string{"b"})
	if !errors.Is(err, domain.ErrDuplicateVote) {
		t.Fatalf("want ErrDuplicateVote, got %v", err)
	}
}

func TestMultiChoiceRevoteReplaces(t *testing.T) {
	f := newFixture(t, pollActivity("poll-1", lunchPoll(true, true)))
	p := f.join(t, "", "Ada")
	f.activate(t, "poll-1")

	f.vote(t, p.ID, "a")
	res := f.vote(t, p.ID, "b", "c")

	if countFor(t, res, "a") != 0 {
		t.Fatalf("replaced option still counted: %+v", res.Counts)
	}
	if countFor(t, res, "b") != 1 || countFor(t, res, "c") != 1 {
		t.Fatalf("counts = %+v", res.Counts)
	}
	if res.TotalVotes != 2 || res.Voters != 1 {
		t.Fatalf("totalVotes/voters = %d/%d", res.TotalVotes, res.Voters)
	}
}

func TestVoteValidation(t *testing.T) {
	f := newFixture(t, pollActivity("poll-1", lunchPoll(true, true)))
	p := f.join(t, "", "Ada")
	f.activate(t, "poll-1")
	ctx := context.Background()

	if _, err := f.orch.SubmitVote(ctx, testEventID, "poll-1", p.ID, nil); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("empty selection: want ErrOptionNotFound, got %v", err)
	}
	if _, err := f.orch.SubmitVote(ctx, testEventID, "poll-1", p.ID, []string{"nope"}); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("unknown option: want ErrOptionNotFound, got %v", err)
	}
	if _, err := f.orch.SubmitVote(ctx, testEventID, "poll-1", p.ID, []string{"a", "a"}); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("repeated option: want ErrOptionNotFound, got %v", err)
	}
	if _, err := f.orch.SubmitVote(ctx, testEventID, "poll-1", "ghost", []string{"a"}); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("unjoined voter: want ErrParticipantNotFound, got %v", err)
	}
}

func TestDeferredResultsWithheldUntilEnd(t *testing.T) {
	f := newFixture(t, pollActivity("poll-1", lunchPoll(false, false)))
	p := f.join(t, "", "Ada")
	f.activate(t, "poll-1")

	f.vote(t, p.ID, "a")
	if got := f.rec.count(app.EventPollResultsUpdated); got != 0 {
		t.Fatalf("deferred poll leaked %d live updates", got)
	}

	// the snapshot must not expose tallies either
	snap, err := f.orch.Snapshot(testEventID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Activity == nil || snap.Activity.Poll == nil {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Activity.Poll.Results != nil {
		t.Fatal("deferred poll exposed results in the snapshot")
	}

	if err := f.orch.EndPoll(context.Background(), testOrganizer, testEventID, "poll-1"); err != nil {
		t.Fatalf("end poll: %v", err)
	}
	payload, ok := f.rec.last(app.EventPollEnded)
	if !ok {
		t.Fatal("no poll-ended broadcast")
	}
	final := payload.Payload.(domain.PollResults)
	if final.TotalVotes != 1 || countFor(t, final, "a") != 1 {
		t.Fatalf("final results = %+v", final)
	}
	if status := f.activityStatus(t, "poll-1"); status != domain.ActivityCompleted {
		t.Fatalf("persisted status = %s, want completed", status)
	}
}

func TestVoteOnWrongActivity(t *testing.T) {
	f := newFixture(t,
		pollActivity("poll-1", lunchPoll(false, true)),
		quizActivity("quiz-1", twoQuestionQuiz()),
	)
	p := f.join(t, "", "Ada")
	f.activate(t, "quiz-1")

	_, err := f.orch.SubmitVote(context.Background(), testEventID, "poll-1", p.ID, []string{"a"})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
}
