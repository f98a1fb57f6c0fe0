package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Player is a stable player identity. Never mutated once created.
type Player struct {
	ID          PlayerID
	DisplayName string
	CreatedAt   time.Time
}

// PresenceStatus is a player's claimed liveness
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// PresenceRecord tracks whether a player is currently online.
// There is at most one record per player.
type PresenceRecord struct {
	Player     Player
	SecretHash string // bcrypt hash of the secret that claims this identity
	Status     PresenceStatus
	LastSeen   time.Time
	Version    int64 // Incremented on every committed update
}

// IsOnline returns true if the record claims the player is online
func (r *PresenceRecord) IsOnline() bool {
	return r.Status == PresenceOnline
}

// IsStale returns true if the record has not been refreshed within timeout of now
func (r *PresenceRecord) IsStale(now time.Time, timeout time.Duration) bool {
	return r.LastSeen.Before(now.Add(-timeout))
}

// Clone returns a copy of the record
func (r *PresenceRecord) Clone() *PresenceRecord {
	c := *r
	return &c
}
