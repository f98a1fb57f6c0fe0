package model

import "time"

// SessionID uniquely identifies a game session
type SessionID string

// Phase is the lifecycle stage of a game session
type Phase string

const (
	PhasePlacement  Phase = "placement"   // Players committing fleets
	PhaseInProgress Phase = "in_progress" // Players alternating shots
	PhaseFinished   Phase = "finished"    // Terminal, inspection only
)

// FinishReason records why a session ended
type FinishReason string

const (
	FinishFleetDestroyed FinishReason = "fleet_destroyed"
	FinishForfeit        FinishReason = "forfeit"
)

// Rules are the pre-agreed parameters of a match
type Rules struct {
	GridSize int
	Fleet    []int // Required ship lengths
}

// DefaultRules returns the classic 10x10 grid with a {5,4,3,3,2} fleet
func DefaultRules() Rules {
	return Rules{
		GridSize: 10,
		Fleet:    []int{5, 4, 3, 3, 2},
	}
}

// Clone returns a deep copy of the rules
func (r Rules) Clone() Rules {
	fleet := make([]int, len(r.Fleet))
	copy(fleet, r.Fleet)
	return Rules{GridSize: r.GridSize, Fleet: fleet}
}

// FleetCells returns the number of cells the fleet occupies
func (r Rules) FleetCells() int {
	total := 0
	for _, l := range r.Fleet {
		total += l
	}
	return total
}

// Fleet is a player's committed placement
type Fleet struct {
	TransitionID TransitionID
	Ships        []Ship
	PlacedAt     time.Time
}

// Clone returns a deep copy of the fleet
func (f *Fleet) Clone() *Fleet {
	if f == nil {
		return nil
	}
	ships := make([]Ship, len(f.Ships))
	copy(ships, f.Ships)
	return &Fleet{TransitionID: f.TransitionID, Ships: ships, PlacedAt: f.PlacedAt}
}

// MoveKind distinguishes entries in the move log
type MoveKind string

const (
	MoveShot    MoveKind = "shot"
	MoveForfeit MoveKind = "forfeit"
)

// ShotResult is the outcome of a shot
type ShotResult string

const (
	ShotHit  ShotResult = "hit"
	ShotMiss ShotResult = "miss"
)

// Move is one applied entry of a session's move log
type Move struct {
	Index        int
	TransitionID TransitionID
	Kind         MoveKind
	PlayerID     PlayerID
	Target       Position   // Shots only
	Result       ShotResult // Shots only
	SunkLength   int        // Length of the ship this shot sank, 0 if none
	At           time.Time
}

// GameSession is one authoritative match between two players
type GameSession struct {
	ID           SessionID
	ChallengeID  ChallengeID
	PlayerA      PlayerID // The challenger, moves first
	PlayerB      PlayerID
	Rules        Rules
	Boards       [2]Board  // Indexed by seat: 0 = PlayerA, 1 = PlayerB
	Fleets       [2]*Fleet // nil until the seat has placed
	Turn         PlayerID  // Empty outside the in-progress phase
	Phase        Phase
	Winner       PlayerID // Empty unless finished
	FinishReason FinishReason
	MoveLog      []Move
	Version      int64 // Optimistic concurrency counter
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Players returns both participants in seat order
func (s *GameSession) Players() [2]PlayerID {
	return [2]PlayerID{s.PlayerA, s.PlayerB}
}

// SeatOf returns the seat index of a player
func (s *GameSession) SeatOf(playerID PlayerID) (int, bool) {
	switch playerID {
	case s.PlayerA:
		return 0, true
	case s.PlayerB:
		return 1, true
	default:
		return -1, false
	}
}

// IsParticipant returns true if the player is seated in this session
func (s *GameSession) IsParticipant(playerID PlayerID) bool {
	_, ok := s.SeatOf(playerID)
	return ok
}

// Opponent returns the other participant, or empty for a non-participant
func (s *GameSession) Opponent(playerID PlayerID) PlayerID {
	switch playerID {
	case s.PlayerA:
		return s.PlayerB
	case s.PlayerB:
		return s.PlayerA
	default:
		return ""
	}
}

// IsFinished returns true once the session reached its terminal phase
func (s *GameSession) IsFinished() bool {
	return s.Phase == PhaseFinished
}

// TransitionOwner returns the player who applied the transition with this ID
func (s *GameSession) TransitionOwner(id TransitionID) (PlayerID, bool) {
	if id == "" {
		return "", false
	}
	players := s.Players()
	for seat, f := range s.Fleets {
		if f != nil && f.TransitionID == id {
			return players[seat], true
		}
	}
	for _, m := range s.MoveLog {
		if m.TransitionID == id {
			return m.PlayerID, true
		}
	}
	return "", false
}

// HasTransition returns true if playerID already applied a transition with this ID
func (s *GameSession) HasTransition(id TransitionID, playerID PlayerID) bool {
	owner, ok := s.TransitionOwner(id)
	return ok && owner == playerID
}

// Clone returns a deep copy of the session
func (s *GameSession) Clone() *GameSession {
	cp := *s
	cp.Rules = s.Rules.Clone()
	for i := range s.Boards {
		cp.Boards[i] = s.Boards[i].Clone()
		cp.Fleets[i] = s.Fleets[i].Clone()
	}
	cp.MoveLog = make([]Move, len(s.MoveLog))
	copy(cp.MoveLog, s.MoveLog)
	return &cp
}

// SessionIDForChallenge derives the one session ID an accepted challenge can produce
func SessionIDForChallenge(id ChallengeID) SessionID {
	return SessionID("s_" + string(id))
}
