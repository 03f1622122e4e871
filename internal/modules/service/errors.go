package service

import "errors"

// Configuration errors abort a chat call before any generation starts.
// Generation errors are recovered locally and never surface here.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionInactive = errors.New("session has ended")
	ErrSessionBusy     = errors.New("another chat is already running for this session")

	ErrNoCoaches         = errors.New("no active coaches resolved for session")
	ErrCoachCountBounds  = errors.New("coach count must be between 2 and 5")
	ErrModeratorMissing  = errors.New("moderated session requires a resolvable moderator")
	ErrPresetNotFound    = errors.New("preset not found")
	ErrUnauthorized      = errors.New("unauthorized access to session")
	ErrEmptyContent      = errors.New("message content is empty")
	ErrInvalidRoundCount = errors.New("max_rounds must be between 1 and 3")
)
