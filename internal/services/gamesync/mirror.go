package gamesync

import (
	"context"
	"fmt"
	"sync"

	"github.com/mcoot/battleship/internal/engine"
	"github.com/mcoot/battleship/internal/model"
)

// Source serves catch-up data for a session. The Synchronizer is one; the CLI
// implements another over HTTP.
type Source interface {
	CatchUp(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID, fromIndex int) (*CatchUp, error)
}

// MirrorState is a snapshot of a Mirror
type MirrorState struct {
	SessionID      model.SessionID
	PlayerID       model.PlayerID
	OpponentID     model.PlayerID
	Rules          model.Rules
	Version        int64
	Phase          model.Phase
	Turn           model.PlayerID
	Winner         model.PlayerID
	FinishReason   model.FinishReason
	OwnBoard       model.Board
	OpponentBoard  model.Board
	Moves          []model.Move
	OpponentPlaced bool
}

// Mirror is a player's local copy of a session, kept current by fetching only
// the moves it has not seen yet. When the fetched tail does not hash to the
// authority's digest the mirror discards its copy and reloads from scratch.
type Mirror struct {
	source    Source
	sessionID model.SessionID
	playerID  model.PlayerID

	mu      sync.Mutex
	state   MirrorState
	loaded  bool
	resyncs int
}

// NewMirror creates an empty mirror. Call Refresh to load it.
func NewMirror(source Source, sessionID model.SessionID, playerID model.PlayerID) *Mirror {
	return &Mirror{
		source:    source,
		sessionID: sessionID,
		playerID:  playerID,
		state:     MirrorState{SessionID: sessionID, PlayerID: playerID},
	}
}

// Refresh pulls new moves from the source. It reports whether anything changed.
func (m *Mirror) Refresh(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := len(m.state.Moves)
	cu, err := m.source.CatchUp(ctx, m.sessionID, m.playerID, from)
	if err != nil {
		return false, err
	}

	moves, ok := m.extend(cu, from)
	if !ok {
		return true, m.resync(ctx)
	}

	changed := !m.loaded || cu.Version != m.state.Version || len(moves) != from
	if err := m.adopt(cu, moves); err != nil {
		return false, err
	}
	return changed, nil
}

// extend appends the fetched tail and checks the result against the authority
func (m *Mirror) extend(cu *CatchUp, from int) ([]model.Move, bool) {
	if m.loaded && cu.Version < m.state.Version {
		return nil, false
	}
	if cu.FromIndex != from || cu.Total != from+len(cu.Moves) {
		return nil, false
	}
	moves := make([]model.Move, 0, cu.Total)
	moves = append(moves, m.state.Moves...)
	moves = append(moves, cu.Moves...)
	for i, move := range moves {
		if move.Index != i {
			return nil, false
		}
	}
	return moves, engine.Digest(moves) == cu.Digest
}

func (m *Mirror) resync(ctx context.Context) error {
	m.resyncs++
	cu, err := m.source.CatchUp(ctx, m.sessionID, m.playerID, 0)
	if err != nil {
		return err
	}
	if cu.FromIndex != 0 || cu.Total != len(cu.Moves) || engine.Digest(cu.Moves) != cu.Digest {
		return fmt.Errorf("%w: full reload of session %s does not match its digest", model.ErrOutOfSync, m.sessionID)
	}
	return m.adopt(cu, cu.Moves)
}

func (m *Mirror) adopt(cu *CatchUp, moves []model.Move) error {
	own, opponent, err := engine.Project(cu.Rules, m.playerID, cu.OwnFleet, moves)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrOutOfSync, err)
	}

	opponentID := cu.PlayerB
	if m.playerID == cu.PlayerB {
		opponentID = cu.PlayerA
	}
	m.loaded = true
	m.state = MirrorState{
		SessionID:      cu.SessionID,
		PlayerID:       m.playerID,
		OpponentID:     opponentID,
		Rules:          cu.Rules,
		Version:        cu.Version,
		Phase:          cu.Phase,
		Turn:           cu.Turn,
		Winner:         cu.Winner,
		FinishReason:   cu.FinishReason,
		OwnBoard:       own,
		OpponentBoard:  opponent,
		Moves:          moves,
		OpponentPlaced: cu.OpponentPlaced,
	}
	return nil
}

// State returns a copy of the mirrored session
func (m *Mirror) State() MirrorState {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state
	st.Rules = m.state.Rules.Clone()
	st.OwnBoard = m.state.OwnBoard.Clone()
	st.OpponentBoard = m.state.OpponentBoard.Clone()
	st.Moves = make([]model.Move, len(m.state.Moves))
	copy(st.Moves, m.state.Moves)
	return st
}

// Resyncs returns how many times the mirror had to reload from scratch
func (m *Mirror) Resyncs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resyncs
}
