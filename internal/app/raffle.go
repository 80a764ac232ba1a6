package app

import (
	"context"
	"fmt"
	"math/rand"

	"live-event-service/internal/domain"
)

type rafflePhase int

const (
	raffleOpen rafflePhase = iota
	raffleDrawing
	raffleEnded
)

// raffleRun is the runtime state of an active raffle. Entries are
// append-only while the raffle is open; the order slice preserves entry
// order as the draw input.
type raffleRun struct {
	cfg     domain.RaffleConfig
	phase   rafflePhase
	entered map[string]bool
	order   []string
	winners []domain.RaffleWinner
}

func newRaffleRun(cfg domain.RaffleConfig) *raffleRun {
	if cfg.WinnerCount <= 0 {
		cfg.WinnerCount = 1
	}
	return &raffleRun{
		cfg:     cfg,
		entered: make(map[string]bool),
	}
}

// enterLocked records an entry, idempotently. Returns false when the
// participant was already entered.
func (rr *raffleRun) enterLocked(participantID string) bool {
	if rr.entered[participantID] {
		return false
	}
	rr.entered[participantID] = true
	rr.order = append(rr.order, participantID)
	return true
}

// enterAllLocked enters the whole current roster, used for the automatic
// entry method at activation. Each entrant still gets a unicast confirmation.
func (o *Orchestrator) enterAllLocked(room *Room, raffle *raffleRun) {
	for _, p := range room.rosterLocked() {
		if raffle.enterLocked(p.ID) {
			o.b.SendTo(room.eventID, p.ID, EventRaffleEntryConfirmed, ActivityRefPayload{ActivityID: room.run.activity.ID})
		}
	}
}

// EnterRaffle records a participant's entry. Duplicate attempts succeed
// silently; the confirmation is unicast to the entrant either way.
func (o *Orchestrator) EnterRaffle(_ context.Context, eventID, activityID, participantID string) error {
	room, ok := o.rooms.Get(eventID)
	if !ok {
		return domain.ErrEventNotFound
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.run == nil || room.run.raffle == nil {
		return fmt.Errorf("%w: no raffle is active", domain.ErrInvalidState)
	}
	if activityID != "" && activityID != room.run.activity.ID {
		return fmt.Errorf("%w: raffle is not active", domain.ErrInvalidState)
	}
	raffle := room.run.raffle
	if raffle.phase != raffleOpen {
		return fmt.Errorf("%w: raffle entries are closed", domain.ErrInvalidState)
	}
	if _, joined := room.participants[participantID]; !joined {
		return domain.ErrParticipantNotFound
	}

	raffle.enterLocked(participantID)
	o.b.SendTo(eventID, participantID, EventRaffleEntryConfirmed, ActivityRefPayload{ActivityID: room.run.activity.ID})
	return nil
}

// DrawWinners closes entries and draws a uniform random sample of entrants
// without replacement. raffle-drawing goes out before the result is known
// so clients can animate; the winner list follows in the same lock scope,
// so no other room event can interleave between the two.
func (o *Orchestrator) DrawWinners(ctx context.Context, organizerID, eventID, activityID string, count int) ([]domain.RaffleWinner, error) {
	if _, err := o.authorize(ctx, organizerID, eventID); err != nil {
		return nil, err
	}
	room, run, err := o.activeRun(eventID, activityID)
	if err != nil {
		return nil, err
	}
	if run.raffle == nil {
		room.mu.Unlock()
		return nil, fmt.Errorf("%w: active activity is not a raffle", domain.ErrInvalidState)
	}
	raffle := run.raffle
	if raffle.phase != raffleOpen {
		room.mu.Unlock()
		return nil, fmt.Errorf("%w: winners already drawn", domain.ErrInvalidState)
	}

	raffle.phase = raffleDrawing
	o.b.Broadcast(eventID, EventRaffleDrawing, ActivityRefPayload{ActivityID: activityID})

	if count <= 0 {
		count = raffle.cfg.WinnerCount
	}
	o.rndMu.Lock()
	drawn := sampleWithoutReplacement(o.rnd, raffle.order, count)
	o.rndMu.Unlock()

	winners := make([]domain.RaffleWinner, 0, len(drawn))
	for _, id := range drawn {
		w := domain.RaffleWinner{ParticipantID: id}
		if p, ok := room.participants[id]; ok {
			w.DisplayName = p.DisplayName
		}
		winners = append(winners, w)
	}
	raffle.winners = winners
	o.b.Broadcast(eventID, EventRaffleWinnersAnnounced, RaffleWinnersPayload{
		ActivityID: activityID,
		Winners:    winners,
	})
	room.mu.Unlock()

	if err := o.events.SetRaffleWinners(ctx, eventID, activityID, winners); err != nil {
		return winners, fmt.Errorf("persist winners: %w", err)
	}
	return winners, nil
}

// EndRaffle closes the raffle. Draw and end are separate operations so the
// caller controls any pause between them; the engine imposes no timing.
func (o *Orchestrator) EndRaffle(ctx context.Context, organizerID, eventID, activityID string) error {
	if _, err := o.authorize(ctx, organizerID, eventID); err != nil {
		return err
	}
	room, run, err := o.activeRun(eventID, activityID)
	if err != nil {
		return err
	}
	if run.raffle == nil {
		room.mu.Unlock()
		return fmt.Errorf("%w: active activity is not a raffle", domain.ErrInvalidState)
	}

	run.raffle.phase = raffleEnded
	o.b.Broadcast(eventID, EventRaffleEnded, ActivityRefPayload{ActivityID: activityID})
	o.finishLocked(room)
	room.mu.Unlock()

	return o.events.SetActivityStatus(ctx, eventID, activityID, domain.ActivityCompleted)
}

// sampleWithoutReplacement draws min(n, len(pool)) distinct elements with a
// partial Fisher-Yates shuffle. The input slice is not modified.
func sampleWithoutReplacement(rnd *rand.Rand, pool []string, n int) []string {
	candidates := append([]string(nil), pool...)
	if n > len(candidates) {
		n = len(candidates)
	}
	for i := 0; i < n; i++ {
		j := i + rnd.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	return candidates[:n]
}
