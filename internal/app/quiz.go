package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"live-event-service/internal/domain"
)

type questionPhase int

const (
	phasePending questionPhase = iota
	phaseDisplayed
	phaseEnded
)

// quizRun is the runtime state of an active quiz: the question cursor, the
// per-question answer books, and the engine-owned scores.
type quizRun struct {
	cfg         domain.QuizConfig
	index       int // -1 until the first question is displayed
	phase       questionPhase
	displayedAt time.Time
	remaining   int

	answers map[string]map[string]bool // questionID -> participantID
	counts  map[string]map[string]int  // questionID -> optionID -> picks
	scores  map[string]*participantScore
}

// participantScore accumulates engine-owned scoring state. Clients never
// write these fields; they mutate only through scoreAnswer.
type participantScore struct {
	total    int
	streak   int
	correct  int
	timeMs   int64
	answered int
}

func newQuizRun(cfg domain.QuizConfig) *quizRun {
	sortQuestions(cfg.Questions)
	return &quizRun{
		cfg:     cfg,
		index:   -1,
		phase:   phasePending,
		answers: make(map[string]map[string]bool),
		counts:  make(map[string]map[string]int),
		scores:  make(map[string]*participantScore),
	}
}

func sortQuestions(qs []domain.Question) {
	sort.SliceStable(qs, func(i, j int) bool {
		return qs[i].OrderIndex < qs[j].OrderIndex
	})
}

func (q *quizRun) current() (domain.Question, bool) {
	if q.index < 0 || q.index >= len(q.cfg.Questions) {
		return domain.Question{}, false
	}
	return q.cfg.Questions[q.index], true
}

func (q *quizRun) knows(questionID string) bool {
	for _, question := range q.cfg.Questions {
		if question.ID == questionID {
			return true
		}
	}
	return false
}

// requireQuiz locks the room and returns its active quiz run. The caller
// must unlock the room.
func (o *Orchestrator) requireQuiz(eventID, activityID string) (*Room, *quizRun, error) {
	room, run, err := o.activeRun(eventID, activityID)
	if err != nil {
		return nil, nil, err
	}
	if run.quiz == nil {
		room.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: active activity is not a quiz", domain.ErrInvalidState)
	}
	return room, run.quiz, nil
}

// DisplayQuestion advances the quiz cursor and broadcasts the next question.
// The previous question must have ended first. When the question carries a
// timer, a countdown goroutine starts ticking once per second.
func (o *Orchestrator) DisplayQuestion(ctx context.Context, organizerID, eventID, activityID string) (domain.PublicQuestion, error) {
	if _, err := o.authorize(ctx, organizerID, eventID); err != nil {
		return domain.PublicQuestion{}, err
	}
	room, quiz, err := o.requireQuiz(eventID, activityID)
	if err != nil {
		return domain.PublicQuestion{}, err
	}
	defer room.mu.Unlock()

	if quiz.phase == phaseDisplayed {
		return domain.PublicQuestion{}, fmt.Errorf("%w: current question is still open", domain.ErrInvalidState)
	}
	if quiz.index+1 >= len(quiz.cfg.Questions) {
		return domain.PublicQuestion{}, domain.ErrOutOfQuestions
	}

	quiz.index++
	question := quiz.cfg.Questions[quiz.index]
	quiz.phase = phaseDisplayed
	quiz.displayedAt = o.now()
	quiz.remaining = question.TimerSeconds
	room.timerGen++

	pub := question.Public()
	o.b.Broadcast(eventID, EventQuestionDisplayed, QuestionDisplayedPayload{
		ActivityID:   activityID,
		Question:     pub,
		Number:       quiz.index + 1,
		Total:        len(quiz.cfg.Questions),
		StartedAtMs:  quiz.displayedAt.UnixMilli(),
		TimerSeconds: question.TimerSeconds,
	})
	if question.TimerSeconds > 0 {
		go o.runCountdown(room, room.timerGen, question.ID)
	}
	return pub, nil
}

// runCountdown ticks the current question once per second and auto-ends it
// at zero. Each tick re-checks the generation under the room lock, so a
// countdown whose question has moved on simply stops without firing.
func (o *Orchestrator) runCountdown(room *Room, gen uint64, questionID string) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		room.mu.Lock()
		if room.timerGen != gen || room.run == nil || room.run.quiz == nil || room.run.quiz.phase != phaseDisplayed {
			room.mu.Unlock()
			return
		}
		quiz := room.run.quiz
		quiz.remaining--
		o.b.Broadcast(room.eventID, EventTimerTick, TimerTickPayload{
			QuestionID: questionID,
			Remaining:  quiz.remaining,
		})
		if quiz.remaining <= 0 {
			o.endQuestionLocked(room, quiz)
			room.mu.Unlock()
			return
		}
		room.mu.Unlock()
	}
}

// SubmitAnswer records a participant's answer for the current question and
// applies scoring at submission time. A participant gets exactly one
// accepted submission per question; the result goes back to the submitter
// only and is never broadcast.
func (o *Orchestrator) SubmitAnswer(_ context.Context, eventID, participantID string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	room, ok := o.rooms.Get(eventID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrEventNotFound
	}
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.run == nil || room.run.quiz == nil {
		return domain.AnswerResult{}, fmt.Errorf("%w: no quiz is active", domain.ErrInvalidState)
	}
	if sub.ActivityID != "" && sub.ActivityID != room.run.activity.ID {
		return domain.AnswerResult{}, fmt.Errorf("%w: activity is not active", domain.ErrInvalidState)
	}
	quiz := room.run.quiz
	if _, joined := room.participants[participantID]; !joined {
		return domain.AnswerResult{}, domain.ErrParticipantNotFound
	}

	question, displayed := quiz.current()
	if !displayed {
		return domain.AnswerResult{}, fmt.Errorf("%w: no question displayed", domain.ErrInvalidState)
	}
	if sub.QuestionID != question.ID {
		if quiz.knows(sub.QuestionID) {
			return domain.AnswerResult{}, domain.ErrQuestionClosed
		}
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	if quiz.phase != phaseDisplayed {
		return domain.AnswerResult{}, domain.ErrQuestionClosed
	}
	if quiz.answers[question.ID][participantID] {
		return domain.AnswerResult{}, domain.ErrDuplicateAnswer
	}

	var option *domain.Option
	for i := range question.Options {
		if question.Options[i].ID == sub.OptionID {
			option = &question.Options[i]
			break
		}
	}
	if option == nil {
		return domain.AnswerResult{}, domain.ErrOptionNotFound
	}

	if quiz.answers[question.ID] == nil {
		quiz.answers[question.ID] = make(map[string]bool)
	}
	quiz.answers[question.ID][participantID] = true
	if quiz.counts[question.ID] == nil {
		quiz.counts[question.ID] = make(map[string]int)
	}
	quiz.counts[question.ID][option.ID]++

	result := domain.AnswerResult{QuestionID: question.ID, Correct: option.Correct}
	if quiz.cfg.ScoringEnabled {
		sc := quiz.scores[participantID]
		if sc == nil {
			sc = &participantScore{}
			quiz.scores[participantID] = sc
		}
		result.Awarded = o.scoreAnswer(quiz, question, sc, option.Correct, sub.ResponseTimeMs)
		result.Streak = sc.streak
		result.TotalScore = sc.total
	}
	return result, nil
}

// scoreAnswer applies the scoring rules to one accepted submission and
// returns the points awarded.
func (o *Orchestrator) scoreAnswer(quiz *quizRun, question domain.Question, sc *participantScore, correct bool, responseTimeMs int64) int {
	limitMs := int64(question.TimerSeconds) * 1000
	rt := responseTimeMs
	if rt < 0 {
		rt = 0
	}
	if limitMs > 0 && rt > limitMs {
		rt = limitMs
	}
	sc.answered++
	sc.timeMs += rt

	if !correct {
		sc.streak = 0
		return 0
	}

	awarded := o.scoring.BaseScore
	if quiz.cfg.SpeedBonus && limitMs > 0 {
		// floor(max * (1 - rt/limit)), never below the base score
		bonus := int(int64(o.scoring.SpeedBonusMax) * (limitMs - rt) / limitMs)
		if bonus > 0 {
			awarded += bonus
		}
	}
	sc.streak++
	if quiz.cfg.StreakTracking {
		for _, threshold := range o.scoring.StreakThresholds {
			if sc.streak == threshold {
				awarded += o.scoring.StreakBonus
			}
		}
	}
	sc.correct++
	sc.total += awarded
	return awarded
}

// EndQuestion closes the current question early. No-op timer ticks are
// prevented by bumping the timer generation inside endQuestionLocked.
func (o *Orchestrator) EndQuestion(ctx context.Context, organizerID, eventID, activityID string) error {
	if _, err := o.authorize(ctx, organizerID, eventID); err != nil {
		return err
	}
	room, quiz, err := o.requireQuiz(eventID, activityID)
	if err != nil {
		return err
	}
	defer room.mu.Unlock()

	if quiz.phase != phaseDisplayed {
		return fmt.Errorf("%w: no question is open", domain.ErrInvalidState)
	}
	o.endQuestionLocked(room, quiz)
	return nil
}

// endQuestionLocked transitions displayed -> ended and emits, in order:
// question-ended, answer-statistics, leaderboard-updated.
func (o *Orchestrator) endQuestionLocked(room *Room, quiz *quizRun) {
	question, _ := quiz.current()
	quiz.phase = phaseEnded
	room.timerGen++

	// a missed question breaks a streak the same way a wrong answer does
	if quiz.cfg.ScoringEnabled {
		submitted := quiz.answers[question.ID]
		for id, sc := range quiz.scores {
			if !submitted[id] {
				sc.streak = 0
			}
		}
	}

	o.b.Broadcast(room.eventID, EventQuestionEnded, QuestionEndedPayload{
		QuestionID:      question.ID,
		CorrectOptionID: question.CorrectOptionID(),
	})

	counts := make(map[string]int, len(question.Options))
	answered := 0
	for _, opt := range question.Options {
		n := quiz.counts[question.ID][opt.ID]
		counts[opt.ID] = n
		answered += n
	}
	o.b.Broadcast(room.eventID, EventAnswerStatistics, AnswerStatisticsPayload{
		QuestionID: question.ID,
		Counts:     counts,
		Answered:   answered,
	})

	o.b.Broadcast(room.eventID, EventLeaderboardUpdated, o.leaderboardLocked(room, quiz))
}

// EndQuiz completes the quiz: it broadcasts the final standings and frees
// the room for the next activity.
func (o *Orchestrator) EndQuiz(ctx context.Context, organizerID, eventID, activityID string) error {
	if _, err := o.authorize(ctx, organizerID, eventID); err != nil {
		return err
	}
	room, quiz, err := o.requireQuiz(eventID, activityID)
	if err != nil {
		return err
	}

	final := o.leaderboardLocked(room, quiz)
	top := final.Entries
	if len(top) > 3 {
		top = top[:3]
	}
	o.b.Broadcast(eventID, EventQuizEnded, QuizEndedPayload{
		ActivityID:  activityID,
		Leaderboard: final,
		TopThree:    top,
	})
	o.finishLocked(room)
	room.mu.Unlock()

	return o.events.SetActivityStatus(ctx, eventID, activityID, domain.ActivityCompleted)
}

// leaderboardLocked ranks the current roster: score descending, cumulative
// answer time ascending, then join order. Recomputing on the same state
// always yields the same order.
func (o *Orchestrator) leaderboardLocked(room *Room, quiz *quizRun) domain.Leaderboard {
	roster := room.rosterLocked()
	entries := make([]domain.LeaderboardEntry, 0, len(roster))
	for _, p := range roster {
		entry := domain.LeaderboardEntry{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
		}
		if sc := quiz.scores[p.ID]; sc != nil {
			entry.Score = sc.total
			entry.Streak = sc.streak
			entry.CorrectCount = sc.correct
			entry.TotalTimeMs = sc.timeMs
		}
		entries = append(entries, entry)
	}

	// roster is already in join order, so the stable sort keeps that as the
	// final tie-break.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].TotalTimeMs < entries[j].TotalTimeMs
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return domain.Leaderboard{
		ActivityID: room.run.activity.ID,
		Entries:    entries,
		UpdatedAt:  o.now(),
	}
}
