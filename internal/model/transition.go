package model

// TransitionID identifies a transition so that replays can be recognised
type TransitionID string

// TransitionKind is the kind of state change a player requests
type TransitionKind string

const (
	TransitionPlace   TransitionKind = "place"
	TransitionShoot   TransitionKind = "shoot"
	TransitionForfeit TransitionKind = "forfeit"
)

// Transition is a single player-issued change to a game session
type Transition struct {
	ID       TransitionID
	Kind     TransitionKind
	PlayerID PlayerID
	Ships    []Ship   // Place only
	Target   Position // Shoot only
}

// PlaceTransition builds a fleet placement transition
func PlaceTransition(id TransitionID, playerID PlayerID, ships []Ship) Transition {
	return Transition{ID: id, Kind: TransitionPlace, PlayerID: playerID, Ships: ships}
}

// ShootTransition builds a shot transition
func ShootTransition(id TransitionID, playerID PlayerID, target Position) Transition {
	return Transition{ID: id, Kind: TransitionShoot, PlayerID: playerID, Target: target}
}

// ForfeitTransition builds a forfeit transition
func ForfeitTransition(id TransitionID, playerID PlayerID) Transition {
	return Transition{ID: id, Kind: TransitionForfeit, PlayerID: playerID}
}
