package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryStatus enumerates lifecycle states of a retry queue entry.
type EntryStatus string

const (
	EntryStatusQueued    EntryStatus = "queued"
	EntryStatusRunning   EntryStatus = "running"
	EntryStatusPaused    EntryStatus = "paused"
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusCancelled EntryStatus = "cancelled"
)

// Terminal reports whether no further transitions are permitted.
func (s EntryStatus) Terminal() bool {
	return s == EntryStatusCompleted || s == EntryStatusCancelled
}

// CanTransitionTo encodes the entry state machine:
// queued -> running -> completed, queued <-> paused, and any non-terminal
// state -> cancelled. A running entry may go back to queued when its
// dispatch fails and the attempt must be rescheduled.
func (s EntryStatus) CanTransitionTo(next EntryStatus) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case EntryStatusRunning:
		return s == EntryStatusQueued
	case EntryStatusCompleted:
		return s == EntryStatusRunning
	case EntryStatusPaused:
		return s == EntryStatusQueued
	case EntryStatusQueued:
		return s == EntryStatusPaused || s == EntryStatusRunning
	case EntryStatusCancelled:
		return true
	}
	return false
}

// RetryQueueEntry is a pending retry for a single lead. At most one entry
// exists per (campaign, lead) pair; re-enqueueing replaces the previous one.
type RetryQueueEntry struct {
	ID            uuid.UUID
	CampaignID    uuid.UUID
	LeadID        uuid.UUID
	AttemptsSoFar int
	MaxAttempts   int
	LastOutcome   OutcomeStatus
	NextAttemptAt time.Time
	Status        EntryStatus
	EnqueuedAt    time.Time
	UpdatedAt     time.Time
}
