package app

import "live-event-service/internal/domain"

// Broadcaster fans out server events to every connection in an event room,
// or to a single participant. Implementations must never block the caller;
// slow connections are the transport's problem, not the engine's.
type Broadcaster interface {
	Broadcast(eventID, event string, payload any)
	SendTo(eventID, participantID, event string, payload any)
}

// Broadcast event names. These form the wire vocabulary between the engine
// and connected clients.
const (
	EventActivityActivated      = "activity-activated"
	EventActivityDeactivated    = "activity-deactivated"
	EventWaitingForActivity     = "waiting-for-activity"
	EventQuestionDisplayed      = "question-displayed"
	EventTimerTick              = "timer-tick"
	EventQuestionEnded          = "question-ended"
	EventAnswerStatistics       = "answer-statistics"
	EventLeaderboardUpdated     = "leaderboard-updated"
	EventQuizEnded              = "quiz-ended"
	EventPollStarted            = "poll-started"
	EventPollResultsUpdated     = "poll-results-updated"
	EventPollEnded              = "poll-ended"
	EventRaffleStarted          = "raffle-started"
	EventRaffleEntryConfirmed   = "raffle-entry-confirmed"
	EventRaffleDrawing          = "raffle-drawing"
	EventRaffleWinnersAnnounced = "raffle-winners-announced"
	EventRaffleEnded            = "raffle-ended"
)

// DefaultWaitingMessage is broadcast when no activity is active.
const DefaultWaitingMessage = "Waiting for the organizer to start the next activity"

// ActivityAnnouncement is the public payload of activity-activated.
type ActivityAnnouncement struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Type   domain.ActivityType `json:"type"`
	Quiz   *QuizAnnouncement   `json:"quiz,omitempty"`
	Poll   *PollAnnouncement   `json:"poll,omitempty"`
	Raffle *RaffleAnnouncement `json:"raffle,omitempty"`
}

type QuizAnnouncement struct {
	QuestionCount  int  `json:"questionCount"`
	ScoringEnabled bool `json:"scoringEnabled"`
}

type PollAnnouncement struct {
	Question           string              `json:"question"`
	Options            []domain.PollOption `json:"options"`
	AllowMultipleVotes bool                `json:"allowMultipleVotes"`
	ShowResultsLive    bool                `json:"showResultsLive"`
}

type RaffleAnnouncement struct {
	Prize       string             `json:"prize"`
	EntryMethod domain.EntryMethod `json:"entryMethod"`
	WinnerCount int                `json:"winnerCount"`
}

// ActivityRefPayload identifies an activity in lifecycle broadcasts.
type ActivityRefPayload struct {
	ActivityID string `json:"activityId"`
}

// WaitingPayload accompanies waiting-for-activity.
type WaitingPayload struct {
	Message string `json:"message"`
}

// QuestionDisplayedPayload carries a question to participants. The correct
// option never appears here.
type QuestionDisplayedPayload struct {
	ActivityID   string                `json:"activityId"`
	Question     domain.PublicQuestion `json:"question"`
	Number       int                   `json:"number"`
	Total        int                   `json:"total"`
	StartedAtMs  int64                 `json:"startedAtMs"`
	TimerSeconds int                   `json:"timerSeconds"`
}

type TimerTickPayload struct {
	QuestionID string `json:"questionId"`
	Remaining  int    `json:"remaining"`
}

// QuestionEndedPayload reveals the correct option once submissions close.
type QuestionEndedPayload struct {
	QuestionID      string `json:"questionId"`
	CorrectOptionID string `json:"correctOptionId"`
}

// AnswerStatisticsPayload carries per-option selection counts.
type AnswerStatisticsPayload struct {
	QuestionID string         `json:"questionId"`
	Counts     map[string]int `json:"counts"`
	Answered   int            `json:"answered"`
}

// QuizEndedPayload carries the final standings.
type QuizEndedPayload struct {
	ActivityID  string                    `json:"activityId"`
	Leaderboard domain.Leaderboard        `json:"leaderboard"`
	TopThree    []domain.LeaderboardEntry `json:"topThree"`
}

// RaffleWinnersPayload carries the ordered winner list.
type RaffleWinnersPayload struct {
	ActivityID string                `json:"activityId"`
	Winners    []domain.RaffleWinner `json:"winners"`
}
