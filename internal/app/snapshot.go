package app

import (
	"live-event-service/internal/domain"
)

// Snapshot is the point-in-time public state a reconnecting client needs
// before it resumes live event consumption. It is built under the room lock
// from the same state the broadcasts are produced from, so a snapshot is
// never older than the last broadcast.
type Snapshot struct {
	EventID      string            `json:"eventId"`
	Participants int               `json:"participants"`
	Waiting      bool              `json:"waiting"`
	Activity     *ActivitySnapshot `json:"activity,omitempty"`
}

// ActivitySnapshot is the public state of the active activity.
type ActivitySnapshot struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Type   domain.ActivityType `json:"type"`
	Quiz   *QuizSnapshot       `json:"quiz,omitempty"`
	Poll   *PollSnapshot       `json:"poll,omitempty"`
	Raffle *RaffleSnapshot     `json:"raffle,omitempty"`
}

// QuizSnapshot carries the open question (if any) and current standings.
type QuizSnapshot struct {
	Question         *domain.PublicQuestion `json:"question,omitempty"`
	Number           int                    `json:"number"`
	Total            int                    `json:"total"`
	RemainingSeconds int                    `json:"remainingSeconds"`
	Leaderboard      domain.Leaderboard     `json:"leaderboard"`
}

// PollSnapshot carries the poll question and, when results are public,
// the current tallies.
type PollSnapshot struct {
	Question string              `json:"question"`
	Options  []domain.PollOption `json:"options"`
	Results  *domain.PollResults `json:"results,omitempty"`
}

// RaffleSnapshot carries the raffle state including any announced winners.
type RaffleSnapshot struct {
	Prize       string                `json:"prize"`
	EntryMethod domain.EntryMethod    `json:"entryMethod"`
	EntryCount  int                   `json:"entryCount"`
	Drawing     bool                  `json:"drawing"`
	Winners     []domain.RaffleWinner `json:"winners,omitempty"`
}

// Snapshot returns the current public state of an event room.
func (o *Orchestrator) Snapshot(eventID string) (Snapshot, error) {
	room, ok := o.rooms.Get(eventID)
	if !ok {
		return Snapshot{EventID: eventID, Waiting: true}, nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return o.snapshotLocked(room), nil
}

func (o *Orchestrator) snapshotLocked(room *Room) Snapshot {
	snap := Snapshot{
		EventID:      room.eventID,
		Participants: len(room.participants),
		Waiting:      room.run == nil,
	}
	if room.run == nil {
		return snap
	}

	run := room.run
	as := &ActivitySnapshot{
		ID:   run.activity.ID,
		Name: run.activity.Name,
		Type: run.activity.Type,
	}
	switch {
	case run.quiz != nil:
		qs := &QuizSnapshot{
			Total:       len(run.quiz.cfg.Questions),
			Leaderboard: o.leaderboardLocked(room, run.quiz),
		}
		if question, ok := run.quiz.current(); ok {
			qs.Number = run.quiz.index + 1
			if run.quiz.phase == phaseDisplayed {
				pub := question.Public()
				qs.Question = &pub
				qs.RemainingSeconds = run.quiz.remaining
			}
		}
		as.Quiz = qs
	case run.poll != nil:
		ps := &PollSnapshot{
			Question: run.poll.cfg.Question,
			Options:  run.poll.cfg.Options,
		}
		if run.poll.cfg.ShowResultsLive {
			results := run.poll.results(run.activity.ID)
			ps.Results = &results
		}
		as.Poll = ps
	case run.raffle != nil:
		as.Raffle = &RaffleSnapshot{
			Prize:       run.raffle.cfg.Prize,
			EntryMethod: run.raffle.cfg.EntryMethod,
			EntryCount:  len(run.raffle.order),
			Drawing:     run.raffle.phase == raffleDrawing,
			Winners:     run.raffle.winners,
		}
	}
	snap.Activity = as
	return snap
}
