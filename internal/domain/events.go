package domain

import "time"

// EventType names a session state change pushed to participants.
type EventType string

const (
	EventPlayerJoined     EventType = "player_joined"
	EventRoundOpened      EventType = "round_opened"
	EventRoundClosed      EventType = "round_closed"
	EventRoundScored      EventType = "round_scored"
	EventSessionCompleted EventType = "session_completed"
	EventSessionEnded     EventType = "session_ended"
)

// Event is one notification. Version increases monotonically per session so
// viewers can drop duplicates and stale deliveries.
type Event struct {
	SessionID string    `json:"sessionId"`
	Type      EventType `json:"type"`
	Version   uint64    `json:"version"`
	Payload   any       `json:"payload"`
	At        time.Time `json:"at"`
}

// RoundScoredPayload is carried by EventRoundScored.
type RoundScoredPayload struct {
	Summary     RoundSummary `json:"summary"`
	Leaderboard Leaderboard  `json:"leaderboard"`
}
