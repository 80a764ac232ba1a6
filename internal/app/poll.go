package app

import (
	"context"
	"fmt"

	"live-event-service/internal/domain"
)

// pollRun is the runtime state of an active poll: one vote record per
// participant plus the per-option tallies derived from them.
type pollRun struct {
	cfg    domain.PollConfig
	votes  map[string][]string // participantID -> selected option IDs
	counts map[string]int
}

func newPollRun(cfg domain.PollConfig) *pollRun {
	return &pollRun{
		cfg:    cfg,
		votes:  make(map[string][]string),
		counts: make(map[string]int),
	}
}

func (p *pollRun) hasOption(optionID string) bool {
	for _, opt := range p.cfg.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

func (p *pollRun) results(activityID string) domain.PollResults {
	counts := make([]domain.PollOptionCount, 0, len(p.cfg.Options))
	total := 0
	for _, opt := range p.cfg.Options {
		n := p.counts[opt.ID]
		counts = append(counts, domain.PollOptionCount{OptionID: opt.ID, Text: opt.Text, Votes: n})
		total += n
	}
	return domain.PollResults{
		ActivityID: activityID,
		Question:   p.cfg.Question,
		Counts:     counts,
		TotalVotes: total,
		Voters:     len(p.votes),
	}
}

// SubmitVote records or replaces a participant's vote. Single-choice polls
// accept exactly one option and the first vote is final; multi-choice polls
// let a re-vote replace the previous selection in one step, so the tallies
// never double-count a participant.
func (o *Orchestrator) SubmitVote(_ context.Context, eventID, activityID, participantID string, optionIDs []string) (domain.PollResults, error) {
	room, ok := o.rooms.Get(eventID)
	if !ok {
		return domain.PollResults{}, domain.ErrEventNotFound
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.run == nil || room.run.poll == nil {
		return domain.PollResults{}, fmt.Errorf("%w: no poll is active", domain.ErrInvalidState)
	}
	if activityID != "" && activityID != room.run.activity.ID {
		return domain.PollResults{}, fmt.Errorf("%w: poll is not active", domain.ErrInvalidState)
	}
	poll := room.run.poll
	activityID = room.run.activity.ID
	if _, joined := room.participants[participantID]; !joined {
		return domain.PollResults{}, domain.ErrParticipantNotFound
	}

	if len(optionIDs) == 0 {
		return domain.PollResults{}, domain.ErrOptionNotFound
	}
	if len(optionIDs) > 1 && !poll.cfg.AllowMultipleVotes {
		return domain.PollResults{}, domain.ErrMultipleChoicesNotAllowed
	}
	seen := make(map[string]bool, len(optionIDs))
	for _, id := range optionIDs {
		if !poll.hasOption(id) {
			return domain.PollResults{}, domain.ErrOptionNotFound
		}
		if seen[id] {
			return domain.PollResults{}, fmt.Errorf("%w: option selected twice", domain.ErrOptionNotFound)
		}
		seen[id] = true
	}

	previous, voted := poll.votes[participantID]
	if voted && !poll.cfg.AllowMultipleVotes {
		return domain.PollResults{}, domain.ErrDuplicateVote
	}
	for _, id := range previous {
		poll.counts[id]--
	}
	poll.votes[participantID] = append([]string(nil), optionIDs...)
	for _, id := range optionIDs {
		poll.counts[id]++
	}

	results := poll.results(activityID)
	if poll.cfg.ShowResultsLive {
		o.b.Broadcast(eventID, EventPollResultsUpdated, results)
	}
	return results, nil
}

// EndPoll closes the poll and broadcasts the final tallies regardless of
// the live-results flag.
func (o *Orchestrator) EndPoll(ctx context.Context, organizerID, eventID, activityID string) error {
	if _, err := o.authorize(ctx, organizerID, eventID); err != nil {
		return err
	}
	room, run, err := o.activeRun(eventID, activityID)
	if err != nil {
		return err
	}
	if run.poll == nil {
		room.mu.Unlock()
		return fmt.Errorf("%w: active activity is not a poll", domain.ErrInvalidState)
	}

	o.b.Broadcast(eventID, EventPollEnded, run.poll.results(activityID))
	o.finishLocked(room)
	room.mu.Unlock()

	return o.events.SetActivityStatus(ctx, eventID, activityID, domain.ActivityCompleted)
}
