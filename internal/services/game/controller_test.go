package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/battleship/internal/dependencies/mocks"
	"github.com/mcoot/battleship/internal/engine"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/services/gamesync"
	"github.com/mcoot/battleship/internal/storage/memory"
	"github.com/mcoot/battleship/internal/testutil"
)

// standardFleet lays the default fleet out on rows 0-4, flush left
func standardFleet() []model.Ship {
	lengths := model.DefaultRules().Fleet
	ships := make([]model.Ship, len(lengths))
	for i, l := range lengths {
		ships[i] = model.Ship{Bow: model.Position{Row: i, Col: 0}, Length: l, Orientation: model.Horizontal}
	}
	return ships
}

type ControllerSuite struct {
	suite.Suite
	storage    *memory.Storage
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	publisher  *mocks.MockPublisher
	controller *Controller
	challenge  *model.Challenge
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.publisher = mocks.NewMockPublisher()
	synchronizer := gamesync.New(s.storage, s.publisher, s.clock, gamesync.DefaultConfig(), testutil.NopLogger())
	s.controller = NewController(s.storage, synchronizer, s.clock, s.random, testutil.NopLogger())
	s.ctx = context.Background()
	s.challenge = &model.Challenge{
		ID:           "c1",
		ChallengerID: "alice",
		OpponentID:   "bob",
		State:        model.ChallengeAccepted,
		Rules:        model.DefaultRules(),
	}
}

func (s *ControllerSuite) createSession() *model.GameSession {
	session, err := s.controller.CreateSession(s.ctx, s.challenge)
	s.Require().NoError(err)
	return session
}

func (s *ControllerSuite) placeBoth(id model.SessionID) {
	_, err := s.controller.SubmitPlacement(s.ctx, id, "alice", standardFleet(), Options{})
	s.Require().NoError(err)
	_, err = s.controller.SubmitPlacement(s.ctx, id, "bob", standardFleet(), Options{})
	s.Require().NoError(err)
}

func (s *ControllerSuite) shoot(id model.SessionID, playerID model.PlayerID, row, col int) *model.GameSession {
	result, err := s.controller.SubmitShot(s.ctx, id, playerID, model.Position{Row: row, Col: col}, Options{})
	s.Require().NoError(err)
	s.Require().True(result.Applied)
	return result.Session
}

// CreateSession tests

func (s *ControllerSuite) TestCreateSessionStartsPlacement() {
	session := s.createSession()

	s.Equal(model.SessionID("s_c1"), session.ID)
	s.Equal(model.PlayerID("alice"), session.PlayerA)
	s.Equal(model.PlayerID("bob"), session.PlayerB)
	s.Equal(model.PhasePlacement, session.Phase)
	s.Equal(10, session.Rules.GridSize)
	s.Equal(int64(0), session.Version)
}

func (s *ControllerSuite) TestCreateSessionIsIdempotent() {
	first := s.createSession()
	s.placeBoth(first.ID)

	second := s.createSession()
	s.Equal(first.ID, second.ID)
	s.Equal(model.PhaseInProgress, second.Phase)

	sessions, err := s.controller.ListForPlayer(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(sessions, 1)
}

func (s *ControllerSuite) TestCreateSessionRequiresAcceptedChallenge() {
	s.challenge.State = model.ChallengePending
	_, err := s.controller.CreateSession(s.ctx, s.challenge)
	s.ErrorIs(err, model.ErrInvalidTransition)
}

// Placement tests

func (s *ControllerSuite) TestRandomPlacementIsLegal() {
	session := s.createSession()

	result, err := s.controller.SubmitRandomPlacement(s.ctx, session.ID, "bob", Options{})
	s.Require().NoError(err)
	s.Require().NotNil(result.Session.Fleets[1])
	s.NoError(engine.ValidatePlacement(session.Rules, result.Session.Fleets[1].Ships))
}

func (s *ControllerSuite) TestInvalidPlacementLeavesSessionUntouched() {
	session := s.createSession()

	_, err := s.controller.SubmitPlacement(s.ctx, session.ID, "alice", standardFleet()[:3], Options{})
	s.ErrorIs(err, model.ErrInvalidPlacement)

	stored, err := s.controller.GetSession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Nil(stored.Fleets[0])
	s.Equal(int64(0), stored.Version)
}

// Submission tests

func (s *ControllerSuite) TestSubmitGeneratesTransitionID() {
	session := s.createSession()
	s.random.QueueUUID("generated-id")

	result, err := s.controller.SubmitPlacement(s.ctx, session.ID, "alice", standardFleet(), Options{})
	s.Require().NoError(err)
	s.Equal(model.TransitionID("generated-id"), result.Session.Fleets[0].TransitionID)
}

func (s *ControllerSuite) TestResubmittingTransitionIDIsNoOp() {
	session := s.createSession()
	s.placeBoth(session.ID)
	opts := Options{TransitionID: "shot-1"}

	first, err := s.controller.SubmitShot(s.ctx, session.ID, "alice", model.Position{Row: 9, Col: 9}, opts)
	s.Require().NoError(err)
	s.True(first.Applied)

	second, err := s.controller.SubmitShot(s.ctx, session.ID, "alice", model.Position{Row: 9, Col: 9}, opts)
	s.Require().NoError(err)
	s.False(second.Applied)
	s.Len(second.Session.MoveLog, 1)
	s.Equal(model.PlayerID("bob"), second.Session.Turn)
}

func (s *ControllerSuite) TestExpectedVersionIsNotRetried() {
	session := s.createSession()
	s.placeBoth(session.ID)
	stale := int64(1)

	_, err := s.controller.SubmitShot(s.ctx, session.ID, "alice", model.Position{Row: 0, Col: 0}, Options{ExpectedVersion: &stale})
	s.ErrorIs(err, model.ErrVersionConflict)

	current := int64(2)
	result, err := s.controller.SubmitShot(s.ctx, session.ID, "alice", model.Position{Row: 0, Col: 0}, Options{ExpectedVersion: &current})
	s.Require().NoError(err)
	s.Equal(int64(3), result.Session.Version)
}

func (s *ControllerSuite) TestShotRules() {
	session := s.createSession()

	_, err := s.controller.SubmitShot(s.ctx, session.ID, "alice", model.Position{Row: 0, Col: 0}, Options{})
	s.ErrorIs(err, model.ErrInvalidTransition)

	s.placeBoth(session.ID)

	_, err = s.controller.SubmitShot(s.ctx, session.ID, "bob", model.Position{Row: 0, Col: 0}, Options{})
	s.ErrorIs(err, model.ErrNotYourTurn)

	_, err = s.controller.SubmitShot(s.ctx, session.ID, "alice", model.Position{Row: 10, Col: 0}, Options{})
	s.ErrorIs(err, model.ErrOutOfBounds)

	s.shoot(session.ID, "alice", 0, 0)
	s.shoot(session.ID, "bob", 9, 9)

	_, err = s.controller.SubmitShot(s.ctx, session.ID, "alice", model.Position{Row: 0, Col: 0}, Options{})
	s.ErrorIs(err, model.ErrCellAlreadyShot)
}

func (s *ControllerSuite) TestForfeitEndsSession() {
	session := s.createSession()
	s.placeBoth(session.ID)

	result, err := s.controller.Forfeit(s.ctx, session.ID, "alice", Options{})
	s.Require().NoError(err)
	s.Equal(model.PhaseFinished, result.Session.Phase)
	s.Equal(model.PlayerID("bob"), result.Session.Winner)
	s.Equal(model.FinishForfeit, result.Session.FinishReason)

	_, err = s.controller.SubmitShot(s.ctx, session.ID, "bob", model.Position{Row: 0, Col: 0}, Options{})
	s.ErrorIs(err, model.ErrSessionFinished)
}

// View tests

func (s *ControllerSuite) TestViewHidesOpponentShips() {
	session := s.createSession()
	s.placeBoth(session.ID)
	s.shoot(session.ID, "alice", 0, 0)

	view, err := s.controller.View(s.ctx, session.ID, "bob")
	s.Require().NoError(err)
	s.Equal(model.CellHit, view.OwnBoard.Get(model.Position{Row: 0, Col: 0}))
	s.Equal(model.CellShip, view.OwnBoard.Get(model.Position{Row: 0, Col: 1}))
	s.Zero(view.OpponentBoard.Count(model.CellShip))

	_, err = s.controller.View(s.ctx, session.ID, "mallory")
	s.ErrorIs(err, model.ErrNotParticipant)
}

// Full game

func (s *ControllerSuite) TestFullGameChallengerSinksFleet() {
	session := s.createSession()
	s.placeBoth(session.ID)

	var targets []model.Position
	for _, ship := range standardFleet() {
		targets = append(targets, ship.Cells()...)
	}
	s.Require().Len(targets, 17)

	var last *model.GameSession
	for i, target := range targets {
		last = s.shoot(session.ID, "alice", target.Row, target.Col)
		s.Equal(model.ShotHit, last.MoveLog[len(last.MoveLog)-1].Result)
		if i == len(targets)-1 {
			break
		}
		s.Equal(model.PlayerID("bob"), last.Turn)
		// Bob misses along the bottom rows
		last = s.shoot(session.ID, "bob", 5+i/10, i%10)
		s.Equal(model.ShotMiss, last.MoveLog[len(last.MoveLog)-1].Result)
	}

	s.Equal(model.PhaseFinished, last.Phase)
	s.Equal(model.PlayerID("alice"), last.Winner)
	s.Equal(model.FinishFleetDestroyed, last.FinishReason)
	s.Len(last.MoveLog, 33)
	s.Equal(int64(2+33), last.Version)
	s.Equal(2, last.MoveLog[len(last.MoveLog)-1].SunkLength)
	s.NoError(engine.Verify(last))

	view, err := s.controller.View(s.ctx, session.ID, "alice")
	s.Require().NoError(err)
	s.Equal(17, view.OpponentBoard.Count(model.CellHit))
	s.Equal(16, view.OwnBoard.Count(model.CellMiss))
}
