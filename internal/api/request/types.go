package request

import (
	"fmt"

	"github.com/mcoot/battleship/internal/model"
)

// RegisterRequest is the request body for registering a display name.
// The secret set on first registration must be repeated to claim the name again.
type RegisterRequest struct {
	DisplayName string `json:"display_name"`
	Secret      string `json:"secret"`
}

// CreateChallengeRequest is the request body for challenging a player
type CreateChallengeRequest struct {
	OpponentID string `json:"opponent_id"`
}

// RespondRequest is the request body for answering a challenge
type RespondRequest struct {
	Decision string `json:"decision"`
}

// Position is a board cell
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Ship is one ship of a placement
type Ship struct {
	Row         int    `json:"row"`
	Col         int    `json:"col"`
	Length      int    `json:"length"`
	Orientation string `json:"orientation"`
}

// ToModel converts the ship
func (s Ship) ToModel() model.Ship {
	return model.Ship{
		Bow:         model.Position{Row: s.Row, Col: s.Col},
		Length:      s.Length,
		Orientation: model.Orientation(s.Orientation),
	}
}

// Guard carries the optional idempotency key and stale-screen guard of a submission
type Guard struct {
	TransitionID    string `json:"transition_id,omitempty"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

// PlacementRequest is the request body for committing a fleet
type PlacementRequest struct {
	Guard
	Ships  []Ship `json:"ships,omitempty"`
	Random bool   `json:"random,omitempty"`
}

// ModelShips converts the placement
func (r PlacementRequest) ModelShips() []model.Ship {
	ships := make([]model.Ship, len(r.Ships))
	for i, s := range r.Ships {
		ships[i] = s.ToModel()
	}
	return ships
}

// Validate checks the request shape
func (r PlacementRequest) Validate() error {
	if r.Random && len(r.Ships) > 0 {
		return fmt.Errorf("either ships or random, not both")
	}
	if !r.Random && len(r.Ships) == 0 {
		return fmt.Errorf("ships is required")
	}
	return nil
}

// ShotRequest is the request body for firing at a cell
type ShotRequest struct {
	Guard
	Row *int `json:"row"`
	Col *int `json:"col"`
}

// Validate checks the request shape
func (r ShotRequest) Validate() error {
	if r.Row == nil || r.Col == nil {
		return fmt.Errorf("row and col are required")
	}
	return nil
}

// ForfeitRequest is the request body for conceding
type ForfeitRequest struct {
	Guard
}

// TransitionRequest is the generic transition body
type TransitionRequest struct {
	Guard
	Kind   string    `json:"kind"`
	Ships  []Ship    `json:"ships,omitempty"`
	Target *Position `json:"target,omitempty"`
}

// ToModel converts the request into a transition for playerID
func (r TransitionRequest) ToModel(playerID model.PlayerID) (model.Transition, error) {
	id := model.TransitionID(r.TransitionID)
	switch model.TransitionKind(r.Kind) {
	case model.TransitionPlace:
		if len(r.Ships) == 0 {
			return model.Transition{}, fmt.Errorf("ships is required for place")
		}
		ships := make([]model.Ship, len(r.Ships))
		for i, s := range r.Ships {
			ships[i] = s.ToModel()
		}
		return model.PlaceTransition(id, playerID, ships), nil
	case model.TransitionShoot:
		if r.Target == nil {
			return model.Transition{}, fmt.Errorf("target is required for shoot")
		}
		return model.ShootTransition(id, playerID, model.Position{Row: r.Target.Row, Col: r.Target.Col}), nil
	case model.TransitionForfeit:
		return model.ForfeitTransition(id, playerID), nil
	default:
		return model.Transition{}, fmt.Errorf("kind must be place, shoot or forfeit")
	}
}
