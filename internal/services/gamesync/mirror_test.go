package gamesync

import (
	"context"
	"errors"

	"github.com/mcoot/battleship/internal/model"
)

func (s *SyncSuite) commit(t model.Transition) {
	_, err := s.sync.Commit(s.ctx, s.sessionID, t)
	s.Require().NoError(err)
}

func (s *SyncSuite) TestMirrorFollowsSession() {
	mirror := NewMirror(s.sync, s.sessionID, "alice")

	changed, err := mirror.Refresh(s.ctx)
	s.Require().NoError(err)
	s.True(changed)
	st := mirror.State()
	s.Equal(model.PhasePlacement, st.Phase)
	s.Equal(model.PlayerID("bob"), st.OpponentID)

	s.placeBoth()
	s.commit(model.ShootTransition("a1", "alice", model.Position{Row: 1, Col: 0}))
	s.commit(model.ShootTransition("b1", "bob", model.Position{Row: 0, Col: 1}))

	changed, err = mirror.Refresh(s.ctx)
	s.Require().NoError(err)
	s.True(changed)

	st = mirror.State()
	s.Equal(model.PhaseInProgress, st.Phase)
	s.Equal(int64(4), st.Version)
	s.Len(st.Moves, 2)
	s.Equal(model.CellHit, st.OpponentBoard.Get(model.Position{Row: 1, Col: 0}))
	s.Equal(model.CellShip, st.OwnBoard.Get(model.Position{Row: 0, Col: 0}))
	s.Equal(model.CellHit, st.OwnBoard.Get(model.Position{Row: 0, Col: 1}))
	s.Equal(0, mirror.Resyncs())

	changed, err = mirror.Refresh(s.ctx)
	s.Require().NoError(err)
	s.False(changed)
}

func (s *SyncSuite) TestMirrorResyncsAfterDivergence() {
	s.placeBoth()
	s.commit(model.ShootTransition("a1", "alice", model.Position{Row: 1, Col: 0}))

	mirror := NewMirror(s.sync, s.sessionID, "bob")
	_, err := mirror.Refresh(s.ctx)
	s.Require().NoError(err)

	// Corrupt the local copy as a lost update would
	mirror.state.Moves[0].Result = model.ShotMiss

	s.commit(model.ShootTransition("b1", "bob", model.Position{Row: 3, Col: 3}))
	_, err = mirror.Refresh(s.ctx)
	s.Require().NoError(err)

	s.Equal(1, mirror.Resyncs())
	st := mirror.State()
	s.Len(st.Moves, 2)
	s.Equal(model.ShotHit, st.Moves[0].Result)
	s.Equal(model.CellHit, st.OwnBoard.Get(model.Position{Row: 1, Col: 0}))
	s.Equal(model.CellMiss, st.OpponentBoard.Get(model.Position{Row: 3, Col: 3}))
}

// lyingSource serves catch-ups whose digest never matches
type lyingSource struct {
	Source
}

func (l lyingSource) CatchUp(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID, fromIndex int) (*CatchUp, error) {
	cu, err := l.Source.CatchUp(ctx, sessionID, playerID, fromIndex)
	if err != nil {
		return nil, err
	}
	cu.Digest++
	return cu, nil
}

func (s *SyncSuite) TestMirrorReportsPersistentDivergence() {
	s.placeBoth()
	s.commit(model.ShootTransition("a1", "alice", model.Position{Row: 3, Col: 3}))

	mirror := NewMirror(lyingSource{Source: s.sync}, s.sessionID, "alice")
	_, err := mirror.Refresh(s.ctx)
	s.ErrorIs(err, model.ErrOutOfSync)
}

type failingSource struct{}

func (failingSource) CatchUp(ctx context.Context, sessionID model.SessionID, playerID model.PlayerID, fromIndex int) (*CatchUp, error) {
	return nil, errors.New("connection refused")
}

func (s *SyncSuite) TestMirrorSurfacesSourceErrors() {
	mirror := NewMirror(failingSource{}, s.sessionID, "alice")
	_, err := mirror.Refresh(s.ctx)
	s.Error(err)
	s.Equal(0, mirror.Resyncs())
}
