// Package engine is the deterministic game session state machine.
// It performs no I/O; callers clone a session, apply a transition and persist the result.
package engine

import (
	"fmt"
	"time"

	"github.com/mcoot/battleship/internal/model"
)

// NewSession creates a session in the placement phase for an accepted challenge.
// The challenger takes seat A and moves first.
func NewSession(id model.SessionID, challenge *model.Challenge, now time.Time) *model.GameSession {
	rules := challenge.Rules.Clone()
	if rules.GridSize == 0 {
		rules = model.DefaultRules()
	}
	return &model.GameSession{
		ID:          id,
		ChallengeID: challenge.ID,
		PlayerA:     challenge.ChallengerID,
		PlayerB:     challenge.OpponentID,
		Rules:       rules,
		Boards:      [2]model.Board{model.NewBoard(rules.GridSize), model.NewBoard(rules.GridSize)},
		Phase:       model.PhasePlacement,
		MoveLog:     []model.Move{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Apply applies a transition to the session in place.
// It returns applied=false with no error when the transition was applied before.
// On error the session is left untouched.
func Apply(session *model.GameSession, t model.Transition, now time.Time) (bool, error) {
	if t.ID == "" {
		return false, fmt.Errorf("%w: transition id is required", model.ErrInvalidTransition)
	}
	seat, ok := session.SeatOf(t.PlayerID)
	if !ok {
		return false, model.ErrNotParticipant
	}
	if owner, ok := session.TransitionOwner(t.ID); ok {
		if owner != t.PlayerID {
			return false, fmt.Errorf("%w: transition id %s belongs to another player", model.ErrInvalidTransition, t.ID)
		}
		return false, nil
	}
	if session.IsFinished() {
		return false, model.ErrSessionFinished
	}

	var err error
	switch t.Kind {
	case model.TransitionPlace:
		err = applyPlacement(session, seat, t, now)
	case model.TransitionShoot:
		err = applyShot(session, seat, t, now)
	case model.TransitionForfeit:
		applyForfeit(session, seat, t, now)
	default:
		err = fmt.Errorf("%w: unknown kind %q", model.ErrInvalidTransition, t.Kind)
	}
	if err != nil {
		return false, err
	}
	session.UpdatedAt = now
	return true, nil
}

func applyPlacement(session *model.GameSession, seat int, t model.Transition, now time.Time) error {
	if session.Fleets[seat] != nil {
		return fmt.Errorf("%w: fleet already placed", model.ErrAlreadyResolved)
	}
	if session.Phase != model.PhasePlacement {
		return fmt.Errorf("%w: placement is closed", model.ErrInvalidTransition)
	}
	if err := ValidatePlacement(session.Rules, t.Ships); err != nil {
		return err
	}

	ships := make([]model.Ship, len(t.Ships))
	copy(ships, t.Ships)
	for _, ship := range ships {
		for _, pos := range ship.Cells() {
			session.Boards[seat].Set(pos, model.CellShip)
		}
	}
	session.Fleets[seat] = &model.Fleet{TransitionID: t.ID, Ships: ships, PlacedAt: now}

	if session.Fleets[0] != nil && session.Fleets[1] != nil {
		session.Phase = model.PhaseInProgress
		session.Turn = session.PlayerA
	}
	return nil
}

func applyShot(session *model.GameSession, seat int, t model.Transition, now time.Time) error {
	if session.Phase != model.PhaseInProgress {
		return fmt.Errorf("%w: fleets are not placed yet", model.ErrInvalidTransition)
	}
	if session.Turn != t.PlayerID {
		return model.ErrNotYourTurn
	}
	target := &session.Boards[1-seat]
	if !target.IsValidPosition(t.Target) {
		return fmt.Errorf("%w: (%d,%d)", model.ErrOutOfBounds, t.Target.Row, t.Target.Col)
	}
	if target.Get(t.Target).IsShot() {
		return fmt.Errorf("%w: (%d,%d)", model.ErrCellAlreadyShot, t.Target.Row, t.Target.Col)
	}

	move := model.Move{
		Index:        len(session.MoveLog),
		TransitionID: t.ID,
		Kind:         model.MoveShot,
		PlayerID:     t.PlayerID,
		Target:       t.Target,
		Result:       model.ShotMiss,
		At:           now,
	}
	if target.Get(t.Target) == model.CellShip {
		target.Set(t.Target, model.CellHit)
		move.Result = model.ShotHit
		move.SunkLength = sunkLength(target, session.Fleets[1-seat], t.Target)
	} else {
		target.Set(t.Target, model.CellMiss)
	}
	session.MoveLog = append(session.MoveLog, move)

	if target.Count(model.CellShip) == 0 {
		finish(session, t.PlayerID, model.FinishFleetDestroyed)
		return nil
	}
	session.Turn = session.Opponent(t.PlayerID)
	return nil
}

func applyForfeit(session *model.GameSession, seat int, t model.Transition, now time.Time) {
	session.MoveLog = append(session.MoveLog, model.Move{
		Index:        len(session.MoveLog),
		TransitionID: t.ID,
		Kind:         model.MoveForfeit,
		PlayerID:     t.PlayerID,
		At:           now,
	})
	finish(session, session.Players()[1-seat], model.FinishForfeit)
}

func finish(session *model.GameSession, winner model.PlayerID, reason model.FinishReason) {
	session.Phase = model.PhaseFinished
	session.Winner = winner
	session.FinishReason = reason
	session.Turn = ""
}

// sunkLength returns the length of the ship covering pos if every one of its cells is hit
func sunkLength(board *model.Board, fleet *model.Fleet, pos model.Position) int {
	if fleet == nil {
		return 0
	}
	for _, ship := range fleet.Ships {
		if !ship.Covers(pos) {
			continue
		}
		for _, cell := range ship.Cells() {
			if board.Get(cell) != model.CellHit {
				return 0
			}
		}
		return ship.Length
	}
	return 0
}
