package memory

import (
	"context"
	"sync"

	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	presence     map[model.PlayerID]*model.PresenceRecord
	nameIndex    map[string]model.PlayerID
	challenges   map[model.ChallengeID]*model.Challenge
	pendingPairs map[string]model.ChallengeID
	sessions     map[model.SessionID]*model.GameSession
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		presence:     make(map[model.PlayerID]*model.PresenceRecord),
		nameIndex:    make(map[string]model.PlayerID),
		challenges:   make(map[model.ChallengeID]*model.Challenge),
		pendingPairs: make(map[string]model.ChallengeID),
		sessions:     make(map[model.SessionID]*model.GameSession),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Presence operations

func (s *Storage) CreatePresence(ctx context.Context, rec *model.PresenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nameIndex[rec.Player.DisplayName]; ok {
		return model.ErrDisplayNameTaken
	}
	s.presence[rec.Player.ID] = rec.Clone()
	s.nameIndex[rec.Player.DisplayName] = rec.Player.ID
	return nil
}

func (s *Storage) GetPresence(ctx context.Context, id model.PlayerID) (*model.PresenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.presence[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return rec.Clone(), nil
}

func (s *Storage) GetPresenceByName(ctx context.Context, displayName string) (*model.PresenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.nameIndex[displayName]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.presence[id].Clone(), nil
}

func (s *Storage) UpdatePresence(ctx context.Context, rec *model.PresenceRecord, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.presence[rec.Player.ID]
	if !ok {
		return model.ErrPlayerNotFound
	}
	if stored.Version != expectedVersion {
		return model.ErrVersionConflict
	}
	rec.Version = expectedVersion + 1
	updated := rec.Clone()
	// Identity is immutable
	updated.Player = stored.Player
	s.presence[rec.Player.ID] = updated
	return nil
}

func (s *Storage) ListPresence(ctx context.Context, status model.PresenceStatus) ([]*model.PresenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.PresenceRecord
	for _, rec := range s.presence {
		if rec.Status == status {
			result = append(result, rec.Clone())
		}
	}
	storage.SortPresence(result)
	return result, nil
}

// Challenge operations

func (s *Storage) CreateChallenge(ctx context.Context, challenge *model.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.challenges[challenge.ID]; ok {
		return model.ErrDuplicateChallenge
	}
	if challenge.State == model.ChallengePending {
		if _, ok := s.pendingPairs[challenge.PairKey()]; ok {
			return model.ErrDuplicateChallenge
		}
		s.pendingPairs[challenge.PairKey()] = challenge.ID
	}
	s.challenges[challenge.ID] = challenge.Clone()
	return nil
}

func (s *Storage) GetChallenge(ctx context.Context, id model.ChallengeID) (*model.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	challenge, ok := s.challenges[id]
	if !ok {
		return nil, model.ErrChallengeNotFound
	}
	return challenge.Clone(), nil
}

func (s *Storage) UpdateChallenge(ctx context.Context, challenge *model.Challenge, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.challenges[challenge.ID]
	if !ok {
		return model.ErrChallengeNotFound
	}
	if stored.Version != expectedVersion {
		return model.ErrVersionConflict
	}
	if stored.State == model.ChallengePending && challenge.State.IsTerminal() {
		if s.pendingPairs[stored.PairKey()] == stored.ID {
			delete(s.pendingPairs, stored.PairKey())
		}
	}
	challenge.Version = expectedVersion + 1
	s.challenges[challenge.ID] = challenge.Clone()
	return nil
}

func (s *Storage) ListChallengesForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.Challenge
	for _, challenge := range s.challenges {
		if challenge.Involves(playerID) {
			result = append(result, challenge.Clone())
		}
	}
	storage.SortChallenges(result)
	return result, nil
}

func (s *Storage) ListPendingChallenges(ctx context.Context) ([]*model.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.Challenge
	for _, challenge := range s.challenges {
		if challenge.State == model.ChallengePending {
			result = append(result, challenge.Clone())
		}
	}
	storage.SortChallenges(result)
	return result, nil
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, session *model.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return model.ErrSessionExists
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Storage) UpdateSession(ctx context.Context, session *model.GameSession, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[session.ID]
	if !ok {
		return model.ErrSessionNotFound
	}
	if stored.Version != expectedVersion {
		return model.ErrVersionConflict
	}
	session.Version = expectedVersion + 1
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *Storage) ListSessionsForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.GameSession
	for _, session := range s.sessions {
		if session.IsParticipant(playerID) {
			result = append(result, session.Clone())
		}
	}
	storage.SortSessions(result)
	return result, nil
}
