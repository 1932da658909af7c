package activity

import "errors"

// Ingestion error taxonomy. Handlers map these to HTTP statuses; anything
// else coming out of the pipeline is a server-side failure. A duplicate
// external source id is deliberately absent: webhook replays resolve as
// updates, not errors.
var (
	ErrChallengeOrTypeNotFound = errors.New("challenge or activity type not found")
	ErrNotParticipant          = errors.New("user has not joined this challenge")
	ErrOutOfChallengeWindow    = errors.New("logged date is outside the challenge window")
	ErrTypeNotLoggableThisWeek = errors.New("activity type is not loggable this week")
	ErrCapExceeded             = errors.New("activity type cap reached for this challenge")
	ErrActivityNotFound        = errors.New("activity not found")
)
