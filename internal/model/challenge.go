package model

import "time"

// ChallengeID uniquely identifies a challenge
type ChallengeID string

// ChallengeState is the handshake state of a challenge
type ChallengeState string

const (
	ChallengePending   ChallengeState = "pending"
	ChallengeAccepted  ChallengeState = "accepted"
	ChallengeDeclined  ChallengeState = "declined"
	ChallengeExpired   ChallengeState = "expired"
	ChallengeCancelled ChallengeState = "cancelled"
)

// IsTerminal returns true for every state other than pending
func (s ChallengeState) IsTerminal() bool {
	return s != ChallengePending
}

// Decision is an opponent's answer to a challenge
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// Challenge is an invitation from one player to another to start a game
type Challenge struct {
	ID           ChallengeID
	ChallengerID PlayerID
	OpponentID   PlayerID
	State        ChallengeState
	Rules        Rules
	SessionID    SessionID // Set when accepted
	CreatedAt    time.Time
	ResolvedAt   *time.Time
	Version      int64
}

// PairKey returns a key identifying the unordered pair of players
func (c *Challenge) PairKey() string {
	return PairKey(c.ChallengerID, c.OpponentID)
}

// Involves returns true if the player is either side of the challenge
func (c *Challenge) Involves(playerID PlayerID) bool {
	return c.ChallengerID == playerID || c.OpponentID == playerID
}

// Clone returns a deep copy of the challenge
func (c *Challenge) Clone() *Challenge {
	cp := *c
	cp.Rules = c.Rules.Clone()
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}

// PairKey returns an order-independent key for two players
func PairKey(a, b PlayerID) string {
	if b < a {
		a, b = b, a
	}
	return string(a) + "|" + string(b)
}
