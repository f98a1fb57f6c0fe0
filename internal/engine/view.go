package engine

import (
	"github.com/mcoot/battleship/internal/model"
)

// View is one player's projection of a session
type View struct {
	SessionID      model.SessionID
	PlayerID       model.PlayerID
	OpponentID     model.PlayerID
	Rules          model.Rules
	Phase          model.Phase
	Turn           model.PlayerID
	Winner         model.PlayerID
	FinishReason   model.FinishReason
	Version        int64
	OwnBoard       model.Board
	OpponentBoard  model.Board // Hits and misses only
	OwnFleet       []model.Ship
	Placed         bool
	OpponentPlaced bool
	MoveCount      int
}

// ViewFor projects the session for a participant, hiding unrevealed opponent ships
func ViewFor(session *model.GameSession, playerID model.PlayerID) (*View, error) {
	seat, ok := session.SeatOf(playerID)
	if !ok {
		return nil, model.ErrNotParticipant
	}

	view := &View{
		SessionID:      session.ID,
		PlayerID:       playerID,
		OpponentID:     session.Opponent(playerID),
		Rules:          session.Rules.Clone(),
		Phase:          session.Phase,
		Turn:           session.Turn,
		Winner:         session.Winner,
		FinishReason:   session.FinishReason,
		Version:        session.Version,
		OwnBoard:       session.Boards[seat].Clone(),
		OpponentBoard:  Conceal(session.Boards[1-seat]),
		Placed:         session.Fleets[seat] != nil,
		OpponentPlaced: session.Fleets[1-seat] != nil,
		MoveCount:      len(session.MoveLog),
	}
	if fleet := session.Fleets[seat]; fleet != nil {
		view.OwnFleet = fleet.Clone().Ships
	}
	return view, nil
}

// Conceal returns a copy of the board with unrevealed ship cells shown as empty
func Conceal(board model.Board) model.Board {
	concealed := board.Clone()
	for row := range concealed.Cells {
		for col := range concealed.Cells[row] {
			if concealed.Cells[row][col] == model.CellShip {
				concealed.Cells[row][col] = model.CellEmpty
			}
		}
	}
	return concealed
}
