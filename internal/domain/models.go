package domain

import "time"

// EventStatus is the lifecycle of an event as a whole.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventSetup     EventStatus = "setup"
	EventLive      EventStatus = "live"
	EventCompleted EventStatus = "completed"
)

// ActivityStatus is the lifecycle of a single activity inside an event.
type ActivityStatus string

const (
	ActivityDraft     ActivityStatus = "draft"
	ActivityReady     ActivityStatus = "ready"
	ActivityActive    ActivityStatus = "active"
	ActivityCompleted ActivityStatus = "completed"
)

// ActivityType discriminates the activity payload union.
type ActivityType string

const (
	ActivityQuiz   ActivityType = "quiz"
	ActivityPoll   ActivityType = "poll"
	ActivityRaffle ActivityType = "raffle"
)

// EntryMethod controls how participants get into a raffle.
type EntryMethod string

const (
	EntryAutomatic EntryMethod = "automatic"
	EntryManual    EntryMethod = "manual"
)

// Event holds an organizer's live event and its configured activities.
type Event struct {
	ID          string      `json:"id"`
	OrganizerID string      `json:"organizerId"`
	Name        string      `json:"name"`
	Status      EventStatus `json:"status"`
	Visibility  string      `json:"visibility"`
	Activities  []Activity  `json:"activities"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// FindActivity returns the activity with the given ID, if present.
func (e Event) FindActivity(activityID string) (Activity, bool) {
	for _, a := range e.Activities {
		if a.ID == activityID {
			return a, true
		}
	}
	return Activity{}, false
}

// Activity is a tagged union: the pointer matching Type is set, the others
// are nil.
type Activity struct {
	ID      string         `json:"id"`
	EventID string         `json:"eventId"`
	Name    string         `json:"name"`
	Type    ActivityType   `json:"type"`
	Status  ActivityStatus `json:"status"`
	Quiz    *QuizConfig    `json:"quiz,omitempty"`
	Poll    *PollConfig    `json:"poll,omitempty"`
	Raffle  *RaffleConfig  `json:"raffle,omitempty"`
}

// QuizConfig is the quiz payload of an activity.
type QuizConfig struct {
	Questions      []Question `json:"questions"`
	ScoringEnabled bool       `json:"scoringEnabled"`
	SpeedBonus     bool       `json:"speedBonus"`
	StreakTracking bool       `json:"streakTracking"`
}

// PollConfig is the poll payload of an activity.
type PollConfig struct {
	Question           string       `json:"question"`
	Options            []PollOption `json:"options"`
	AllowMultipleVotes bool         `json:"allowMultipleVotes"`
	ShowResultsLive    bool         `json:"showResultsLive"`
}

// PollOption is a single votable option.
type PollOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// RaffleConfig is the raffle payload of an activity. Winners is filled in
// once a draw has happened and the terminal state is persisted.
type RaffleConfig struct {
	Prize       string         `json:"prize"`
	EntryMethod EntryMethod    `json:"entryMethod"`
	WinnerCount int            `json:"winnerCount"`
	Winners     []RaffleWinner `json:"winners,omitempty"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	Options      []Option `json:"options"`
	TimerSeconds int      `json:"timerSeconds"` // zero means no countdown
	OrderIndex   int      `json:"orderIndex"`
}

// Option represents a possible answer for a question. Correct never leaves
// the server while the question is open; broadcast views strip it.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
	Style   string `json:"style,omitempty"`
}

// PublicQuestion is the participant-safe view of a question.
type PublicQuestion struct {
	ID           string         `json:"id"`
	Text         string         `json:"text"`
	ImageURL     string         `json:"imageUrl,omitempty"`
	Options      []PublicOption `json:"options"`
	TimerSeconds int            `json:"timerSeconds"`
}

// PublicOption omits the correctness flag.
type PublicOption struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

// Public strips correctness flags for broadcast to participants.
func (q Question) Public() PublicQuestion {
	opts := make([]PublicOption, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, PublicOption{ID: o.ID, Text: o.Text, Style: o.Style})
	}
	return PublicQuestion{
		ID:           q.ID,
		Text:         q.Text,
		ImageURL:     q.ImageURL,
		Options:      opts,
		TimerSeconds: q.TimerSeconds,
	}
}

// CorrectOptionID returns the ID of the correct option, falling back to the
// first option when no correctness flag is set.
func (q Question) CorrectOptionID() string {
	for _, o := range q.Options {
		if o.Correct {
			return o.ID
		}
	}
	if len(q.Options) > 0 {
		return q.Options[0].ID
	}
	return ""
}

// Participant is an ephemeral identity created when a client joins an event.
type Participant struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
	JoinOrder   int       `json:"-"`
}

// AnswerSubmission models a participant's answer to a quiz question.
type AnswerSubmission struct {
	ActivityID     string `json:"activityId"`
	QuestionID     string `json:"questionId"`
	OptionID       string `json:"optionId"`
	ResponseTimeMs int64  `json:"responseTimeMs"`
}

// AnswerResult is returned to the submitting participant only.
type AnswerResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Awarded    int    `json:"awarded"`
	Streak     int    `json:"streak"`
	TotalScore int    `json:"totalScore"`
}

// LeaderboardEntry is a ranked view of one participant's quiz standing.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
	Streak        int    `json:"streak"`
	CorrectCount  int    `json:"correctCount"`
	TotalTimeMs   int64  `json:"totalTimeMs"`
}

// Leaderboard captures the ordered scoreboard for a quiz activity.
type Leaderboard struct {
	ActivityID string             `json:"activityId"`
	Entries    []LeaderboardEntry `json:"entries"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// PollResults aggregates vote counts per option.
type PollResults struct {
	ActivityID string            `json:"activityId"`
	Question   string            `json:"question"`
	Counts     []PollOptionCount `json:"counts"`
	TotalVotes int               `json:"totalVotes"`
	Voters     int               `json:"voters"`
}

// PollOptionCount pairs an option with its tally.
type PollOptionCount struct {
	OptionID string `json:"optionId"`
	Text     string `json:"text"`
	Votes    int    `json:"votes"`
}

// RaffleWinner is one drawn entrant, in draw order.
type RaffleWinner struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
}
