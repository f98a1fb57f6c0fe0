// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/storage"
)

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// Suite runs the storage contract against a backend.
// Embedding suites set Storage in their SetupTest before calling Init.
type Suite struct {
	suite.Suite
	Storage storage.Storage
	Ctx     context.Context
}

// Init prepares shared state
func (s *Suite) Init(st storage.Storage) {
	s.Storage = st
	s.Ctx = context.Background()
}

func (s *Suite) presence(id model.PlayerID, name string, status model.PresenceStatus) *model.PresenceRecord {
	return &model.PresenceRecord{
		Player:   model.Player{ID: id, DisplayName: name, CreatedAt: baseTime},
		Status:   status,
		LastSeen: baseTime,
	}
}

func (s *Suite) challenge(id model.ChallengeID, from, to model.PlayerID, created time.Time) *model.Challenge {
	return &model.Challenge{
		ID:           id,
		ChallengerID: from,
		OpponentID:   to,
		State:        model.ChallengePending,
		Rules:        model.DefaultRules(),
		CreatedAt:    created,
	}
}

func (s *Suite) session(id model.SessionID, a, b model.PlayerID, created time.Time) *model.GameSession {
	rules := model.DefaultRules()
	return &model.GameSession{
		ID:          id,
		ChallengeID: model.ChallengeID("c-" + string(id)),
		PlayerA:     a,
		PlayerB:     b,
		Rules:       rules,
		Boards:      [2]model.Board{model.NewBoard(rules.GridSize), model.NewBoard(rules.GridSize)},
		Phase:       model.PhasePlacement,
		MoveLog:     []model.Move{},
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

// Presence tests

func (s *Suite) TestCreateAndGetPresence() {
	s.Require().NoError(s.Storage.CreatePresence(s.Ctx, s.presence("p1", "Alice", model.PresenceOnline)))

	rec, err := s.Storage.GetPresence(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal("Alice", rec.Player.DisplayName)
	s.Equal(model.PresenceOnline, rec.Status)
	s.True(rec.LastSeen.Equal(baseTime))

	byName, err := s.Storage.GetPresenceByName(s.Ctx, "Alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), byName.Player.ID)
}

func (s *Suite) TestGetPresenceNotFound() {
	_, err := s.Storage.GetPresence(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrPlayerNotFound)
	_, err = s.Storage.GetPresenceByName(s.Ctx, "Nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestCreatePresenceRejectsTakenName() {
	s.Require().NoError(s.Storage.CreatePresence(s.Ctx, s.presence("p1", "Alice", model.PresenceOnline)))
	err := s.Storage.CreatePresence(s.Ctx, s.presence("p2", "Alice", model.PresenceOnline))
	s.ErrorIs(err, model.ErrDisplayNameTaken)
}

func (s *Suite) TestUpdatePresenceBumpsVersion() {
	s.Require().NoError(s.Storage.CreatePresence(s.Ctx, s.presence("p1", "Alice", model.PresenceOnline)))

	rec, err := s.Storage.GetPresence(s.Ctx, "p1")
	s.Require().NoError(err)
	rec.Status = model.PresenceOffline
	s.Require().NoError(s.Storage.UpdatePresence(s.Ctx, rec, rec.Version))
	s.Equal(int64(1), rec.Version)

	stored, err := s.Storage.GetPresence(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Equal(model.PresenceOffline, stored.Status)
	s.Equal(int64(1), stored.Version)
}

func (s *Suite) TestUpdatePresenceStaleVersionConflicts() {
	s.Require().NoError(s.Storage.CreatePresence(s.Ctx, s.presence("p1", "Alice", model.PresenceOnline)))

	first, _ := s.Storage.GetPresence(s.Ctx, "p1")
	second, _ := s.Storage.GetPresence(s.Ctx, "p1")

	first.LastSeen = baseTime.Add(time.Minute)
	s.Require().NoError(s.Storage.UpdatePresence(s.Ctx, first, first.Version))

	second.Status = model.PresenceOffline
	err := s.Storage.UpdatePresence(s.Ctx, second, second.Version)
	s.ErrorIs(err, model.ErrVersionConflict)

	stored, _ := s.Storage.GetPresence(s.Ctx, "p1")
	s.Equal(model.PresenceOnline, stored.Status)
}

func (s *Suite) TestUpdatePresenceNotFound() {
	err := s.Storage.UpdatePresence(s.Ctx, s.presence("missing", "X", model.PresenceOnline), 0)
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestListPresenceByStatus() {
	s.Require().NoError(s.Storage.CreatePresence(s.Ctx, s.presence("p1", "Carol", model.PresenceOnline)))
	s.Require().NoError(s.Storage.CreatePresence(s.Ctx, s.presence("p2", "Alice", model.PresenceOnline)))
	s.Require().NoError(s.Storage.CreatePresence(s.Ctx, s.presence("p3", "Bob", model.PresenceOffline)))

	online, err := s.Storage.ListPresence(s.Ctx, model.PresenceOnline)
	s.Require().NoError(err)
	s.Require().Len(online, 2)
	s.Equal("Alice", online[0].Player.DisplayName)
	s.Equal("Carol", online[1].Player.DisplayName)

	offline, err := s.Storage.ListPresence(s.Ctx, model.PresenceOffline)
	s.Require().NoError(err)
	s.Require().Len(offline, 1)
	s.Equal("Bob", offline[0].Player.DisplayName)

	rec, _ := s.Storage.GetPresence(s.Ctx, "p1")
	rec.Status = model.PresenceOffline
	s.Require().NoError(s.Storage.UpdatePresence(s.Ctx, rec, rec.Version))

	online, err = s.Storage.ListPresence(s.Ctx, model.PresenceOnline)
	s.Require().NoError(err)
	s.Len(online, 1)
}

// Challenge tests

func (s *Suite) TestCreateAndGetChallenge() {
	s.Require().NoError(s.Storage.CreateChallenge(s.Ctx, s.challenge("c1", "p1", "p2", baseTime)))

	c, err := s.Storage.GetChallenge(s.Ctx, "c1")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), c.ChallengerID)
	s.Equal(model.ChallengePending, c.State)
	s.Equal([]int{5, 4, 3, 3, 2}, c.Rules.Fleet)
}

func (s *Suite) TestGetChallengeNotFound() {
	_, err := s.Storage.GetChallenge(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrChallengeNotFound)
}

func (s *Suite) TestCreateChallengeRejectsPendingPairInEitherDirection() {
	s.Require().NoError(s.Storage.CreateChallenge(s.Ctx, s.challenge("c1", "p1", "p2", baseTime)))

	err := s.Storage.CreateChallenge(s.Ctx, s.challenge("c2", "p1", "p2", baseTime))
	s.ErrorIs(err, model.ErrDuplicateChallenge)
	err = s.Storage.CreateChallenge(s.Ctx, s.challenge("c3", "p2", "p1", baseTime))
	s.ErrorIs(err, model.ErrDuplicateChallenge)

	s.NoError(s.Storage.CreateChallenge(s.Ctx, s.challenge("c4", "p1", "p3", baseTime)))
}

func (s *Suite) TestResolvedChallengeFreesPair() {
	c := s.challenge("c1", "p1", "p2", baseTime)
	s.Require().NoError(s.Storage.CreateChallenge(s.Ctx, c))

	c.State = model.ChallengeDeclined
	s.Require().NoError(s.Storage.UpdateChallenge(s.Ctx, c, 0))
	s.Equal(int64(1), c.Version)

	s.NoError(s.Storage.CreateChallenge(s.Ctx, s.challenge("c2", "p2", "p1", baseTime)))
}

func (s *Suite) TestConcurrentChallengeCreateHasOneWinner() {
	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := model.ChallengeID(fmt.Sprintf("c%d", i))
			errs[i] = s.Storage.CreateChallenge(s.Ctx, s.challenge(id, "p1", "p2", baseTime))
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			s.ErrorIs(err, model.ErrDuplicateChallenge)
		}
	}
	s.Equal(1, wins)

	pending, err := s.Storage.ListPendingChallenges(s.Ctx)
	s.Require().NoError(err)
	s.Len(pending, 1)
}

func (s *Suite) TestUpdateChallengeStaleVersionConflicts() {
	s.Require().NoError(s.Storage.CreateChallenge(s.Ctx, s.challenge("c1", "p1", "p2", baseTime)))

	accept, _ := s.Storage.GetChallenge(s.Ctx, "c1")
	cancel, _ := s.Storage.GetChallenge(s.Ctx, "c1")

	accept.State = model.ChallengeAccepted
	s.Require().NoError(s.Storage.UpdateChallenge(s.Ctx, accept, accept.Version))

	cancel.State = model.ChallengeCancelled
	s.ErrorIs(s.Storage.UpdateChallenge(s.Ctx, cancel, cancel.Version), model.ErrVersionConflict)

	stored, _ := s.Storage.GetChallenge(s.Ctx, "c1")
	s.Equal(model.ChallengeAccepted, stored.State)
}

func (s *Suite) TestListChallenges() {
	s.Require().NoError(s.Storage.CreateChallenge(s.Ctx, s.challenge("c1", "p1", "p2", baseTime)))
	s.Require().NoError(s.Storage.CreateChallenge(s.Ctx, s.challenge("c2", "p3", "p1", baseTime.Add(time.Minute))))
	s.Require().NoError(s.Storage.CreateChallenge(s.Ctx, s.challenge("c3", "p2", "p3", baseTime.Add(2*time.Minute))))

	forP1, err := s.Storage.ListChallengesForPlayer(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Require().Len(forP1, 2)
	s.Equal(model.ChallengeID("c2"), forP1[0].ID)
	s.Equal(model.ChallengeID("c1"), forP1[1].ID)

	c3, _ := s.Storage.GetChallenge(s.Ctx, "c3")
	c3.State = model.ChallengeExpired
	s.Require().NoError(s.Storage.UpdateChallenge(s.Ctx, c3, c3.Version))

	pending, err := s.Storage.ListPendingChallenges(s.Ctx)
	s.Require().NoError(err)
	s.Len(pending, 2)
}

// Session tests

func (s *Suite) TestCreateAndGetSession() {
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, s.session("s1", "p1", "p2", baseTime)))

	session, err := s.Storage.GetSession(s.Ctx, "s1")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("p1"), session.PlayerA)
	s.Equal(model.PhasePlacement, session.Phase)
	s.Equal(10, session.Boards[1].Size)
	s.Equal(model.CellEmpty, session.Boards[1].Get(model.Position{Row: 9, Col: 9}))
	s.Nil(session.Fleets[0])
}

func (s *Suite) TestGetSessionNotFound() {
	_, err := s.Storage.GetSession(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestCreateSessionIsCreateIfAbsent() {
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, s.session("s1", "p1", "p2", baseTime)))
	s.ErrorIs(s.Storage.CreateSession(s.Ctx, s.session("s1", "p1", "p2", baseTime)), model.ErrSessionExists)
}

func (s *Suite) TestUpdateSessionRoundTripsState() {
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, s.session("s1", "p1", "p2", baseTime)))

	session, _ := s.Storage.GetSession(s.Ctx, "s1")
	ship := model.Ship{Bow: model.Position{Row: 1, Col: 1}, Length: 2, Orientation: model.Vertical}
	session.Fleets[0] = &model.Fleet{TransitionID: "t1", Ships: []model.Ship{ship}, PlacedAt: baseTime}
	session.Boards[0].Set(model.Position{Row: 1, Col: 1}, model.CellShip)
	session.MoveLog = append(session.MoveLog, model.Move{
		Index: 0, TransitionID: "t2", Kind: model.MoveShot, PlayerID: "p1",
		Target: model.Position{Row: 2, Col: 3}, Result: model.ShotMiss, At: baseTime,
	})
	s.Require().NoError(s.Storage.UpdateSession(s.Ctx, session, 0))

	stored, err := s.Storage.GetSession(s.Ctx, "s1")
	s.Require().NoError(err)
	s.Equal(int64(1), stored.Version)
	s.Require().NotNil(stored.Fleets[0])
	s.Equal(ship, stored.Fleets[0].Ships[0])
	s.Equal(model.CellShip, stored.Boards[0].Get(model.Position{Row: 1, Col: 1}))
	s.Require().Len(stored.MoveLog, 1)
	s.Equal(model.TransitionID("t2"), stored.MoveLog[0].TransitionID)
	s.True(stored.HasTransition("t1", "p1"))
	s.True(stored.HasTransition("t2", "p1"))
	s.False(stored.HasTransition("t2", "p2"))
}

func (s *Suite) TestConcurrentSessionUpdatesHaveOneWinner() {
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, s.session("s1", "p1", "p2", baseTime)))

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := s.Storage.GetSession(s.Ctx, "s1")
			if err != nil {
				errs[i] = err
				return
			}
			session.UpdatedAt = baseTime.Add(time.Duration(i) * time.Second)
			errs[i] = s.Storage.UpdateSession(s.Ctx, session, 0)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			s.ErrorIs(err, model.ErrVersionConflict)
		}
	}
	s.Equal(1, wins)

	stored, _ := s.Storage.GetSession(s.Ctx, "s1")
	s.Equal(int64(1), stored.Version)
}

func (s *Suite) TestReturnedDocumentsAreCopies() {
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, s.session("s1", "p1", "p2", baseTime)))

	session, _ := s.Storage.GetSession(s.Ctx, "s1")
	session.Boards[0].Set(model.Position{Row: 0, Col: 0}, model.CellShip)

	again, _ := s.Storage.GetSession(s.Ctx, "s1")
	s.Equal(model.CellEmpty, again.Boards[0].Get(model.Position{Row: 0, Col: 0}))
}

func (s *Suite) TestListSessionsForPlayer() {
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, s.session("s1", "p1", "p2", baseTime)))
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, s.session("s2", "p3", "p1", baseTime.Add(time.Minute))))
	s.Require().NoError(s.Storage.CreateSession(s.Ctx, s.session("s3", "p2", "p3", baseTime)))

	sessions, err := s.Storage.ListSessionsForPlayer(s.Ctx, "p1")
	s.Require().NoError(err)
	s.Require().Len(sessions, 2)
	s.Equal(model.SessionID("s2"), sessions[0].ID)
	s.Equal(model.SessionID("s1"), sessions[1].ID)
}
