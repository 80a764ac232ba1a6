package domain

import "errors"

var (
	// ErrEventNotFound indicates the event could not be loaded.
	ErrEventNotFound = errors.New("event not found")
	// ErrActivityNotFound indicates an unknown activity ID for the event.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found in event")

	// ErrInvalidState is returned when an operation is not valid for the
	// current activity or question state.
	ErrInvalidState = errors.New("operation not valid in current state")
	// ErrUnauthorized is returned when the caller is not the event organizer.
	ErrUnauthorized = errors.New("organizer identity required")

	// ErrDuplicateAnswer rejects a second submission for the same question.
	ErrDuplicateAnswer = errors.New("answer already submitted for question")
	// ErrQuestionClosed rejects submissions after a question has ended.
	ErrQuestionClosed = errors.New("question is closed")
	// ErrOutOfQuestions signals the quiz has no further question to display.
	ErrOutOfQuestions = errors.New("no more questions")

	// ErrDuplicateVote rejects a re-vote when the poll allows a single final vote.
	ErrDuplicateVote = errors.New("vote already recorded")
	// ErrMultipleChoicesNotAllowed rejects multi-option votes on single-choice polls.
	ErrMultipleChoicesNotAllowed = errors.New("poll allows a single selection")
)
