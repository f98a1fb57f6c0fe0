package engine

import (
	"fmt"

	"github.com/mcoot/battleship/internal/model"
)

// Replay rebuilds both boards of a session from its fleets and move log
func Replay(session *model.GameSession) ([2]model.Board, error) {
	boards := [2]model.Board{
		model.NewBoard(session.Rules.GridSize),
		model.NewBoard(session.Rules.GridSize),
	}
	for seat, fleet := range session.Fleets {
		if fleet == nil {
			continue
		}
		for _, ship := range fleet.Ships {
			for _, pos := range ship.Cells() {
				boards[seat].Set(pos, model.CellShip)
			}
		}
	}

	for i, move := range session.MoveLog {
		if move.Index != i {
			return boards, fmt.Errorf("move log index %d found at position %d", move.Index, i)
		}
		if move.Kind != model.MoveShot {
			continue
		}
		seat, ok := session.SeatOf(move.PlayerID)
		if !ok {
			return boards, fmt.Errorf("move %d: %w", i, model.ErrNotParticipant)
		}
		if err := replayShot(&boards[1-seat], move); err != nil {
			return boards, fmt.Errorf("move %d: %w", i, err)
		}
	}
	return boards, nil
}

// Verify checks that the stored boards agree with a replay of the move log
func Verify(session *model.GameSession) error {
	boards, err := Replay(session)
	if err != nil {
		return err
	}
	for seat := range boards {
		if !boardsEqual(&boards[seat], &session.Boards[seat]) {
			return fmt.Errorf("board %d diverges from its move log", seat)
		}
	}
	return nil
}

// Repair overwrites the stored boards with a replay of the move log
func Repair(session *model.GameSession) error {
	boards, err := Replay(session)
	if err != nil {
		return err
	}
	session.Boards = boards
	return nil
}

// Project rebuilds one player's view from their own fleet and the shared move log.
// The opponent board only ever carries hits and misses.
func Project(rules model.Rules, playerID model.PlayerID, fleet []model.Ship, moves []model.Move) (own, opponent model.Board, err error) {
	own = model.NewBoard(rules.GridSize)
	opponent = model.NewBoard(rules.GridSize)
	for _, ship := range fleet {
		for _, pos := range ship.Cells() {
			own.Set(pos, model.CellShip)
		}
	}
	for i, move := range moves {
		if move.Kind != model.MoveShot {
			continue
		}
		board := &opponent
		if move.PlayerID != playerID {
			board = &own
		}
		if err := replayShot(board, move); err != nil {
			return own, opponent, fmt.Errorf("move %d: %w", i, err)
		}
	}
	return own, opponent, nil
}

func replayShot(board *model.Board, move model.Move) error {
	if !board.IsValidPosition(move.Target) {
		return model.ErrOutOfBounds
	}
	if board.Get(move.Target).IsShot() {
		return model.ErrCellAlreadyShot
	}
	if move.Result == model.ShotHit {
		board.Set(move.Target, model.CellHit)
	} else {
		board.Set(move.Target, model.CellMiss)
	}
	return nil
}

func boardsEqual(a, b *model.Board) bool {
	if a.Size != b.Size {
		return false
	}
	for row := 0; row < a.Size; row++ {
		for col := 0; col < a.Size; col++ {
			pos := model.Position{Row: row, Col: col}
			if a.Get(pos) != b.Get(pos) {
				return false
			}
		}
	}
	return true
}
