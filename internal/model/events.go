package model

import "time"

// EventType names a push notification
type EventType string

const (
	EventChallengeReceived EventType = "challenge_received"
	EventChallengeResolved EventType = "challenge_resolved"
	EventSessionCreated    EventType = "session_created"
	EventSessionUpdated    EventType = "session_updated"
)

// Event is a push notification for one player.
// It only carries identifiers; recipients re-read the authoritative document.
type Event struct {
	Type        EventType
	Recipient   PlayerID
	ChallengeID ChallengeID
	SessionID   SessionID
	State       ChallengeState // Challenge events only
	Version     int64
	Timestamp   time.Time
}
