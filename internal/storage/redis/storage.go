package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Version-guarded updates run under WATCH/MULTI on the document key.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, storeErr(err)
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Client returns the underlying client so other components can share the pool
func (s *Storage) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// storeErr reports transport failures as an unavailable store
func storeErr(err error) error {
	if err == nil || model.KindOf(err) != model.KindInternal {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
}

// casErr maps a lost WATCH race to a version conflict
func casErr(err error) error {
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrVersionConflict
	}
	return storeErr(err)
}

func getJSON[T any](ctx context.Context, c getter, key string, notFound error) (*T, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound
		}
		return nil, storeErr(err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Storage) mgetJSON(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storeErr(err)
	}
	docs := make([]string, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue // Document may have expired
		}
		docs = append(docs, val.(string))
	}
	return docs, nil
}

func decodeAll[T any](docs []string) []*T {
	result := make([]*T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal([]byte(doc), &v); err != nil {
			continue // Skip invalid data
		}
		result = append(result, &v)
	}
	return result
}

// Presence operations

func (s *Storage) CreatePresence(ctx context.Context, rec *model.PresenceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	id := string(rec.Player.ID)
	nameKey := displayNameIndexKey(rec.Player.DisplayName)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, nameKey).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrDisplayNameTaken
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, nameKey, id, 0)
			pipe.Set(ctx, presenceKey(rec.Player.ID), data, 0)
			pipe.SAdd(ctx, playersIndexKey(), id)
			if rec.IsOnline() {
				pipe.SAdd(ctx, onlineIndexKey(), id)
			}
			return nil
		})
		return err
	}, nameKey)
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrDisplayNameTaken
	}
	return storeErr(err)
}

func (s *Storage) GetPresence(ctx context.Context, id model.PlayerID) (*model.PresenceRecord, error) {
	return getJSON[model.PresenceRecord](ctx, s.client, presenceKey(id), model.ErrPlayerNotFound)
}

func (s *Storage) GetPresenceByName(ctx context.Context, displayName string) (*model.PresenceRecord, error) {
	id, err := s.client.Get(ctx, displayNameIndexKey(displayName)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, storeErr(err)
	}
	return s.GetPresence(ctx, model.PlayerID(id))
}

func (s *Storage) UpdatePresence(ctx context.Context, rec *model.PresenceRecord, expectedVersion int64) error {
	key := presenceKey(rec.Player.ID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := getJSON[model.PresenceRecord](ctx, tx, key, model.ErrPlayerNotFound)
		if err != nil {
			return err
		}
		if stored.Version != expectedVersion {
			return model.ErrVersionConflict
		}

		updated := rec.Clone()
		updated.Player = stored.Player
		updated.Version = expectedVersion + 1
		data, err := json.Marshal(updated)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if updated.IsOnline() {
				pipe.SAdd(ctx, onlineIndexKey(), string(updated.Player.ID))
			} else {
				pipe.SRem(ctx, onlineIndexKey(), string(updated.Player.ID))
			}
			return nil
		})
		return err
	}, key)
	if err := casErr(err); err != nil {
		return err
	}
	rec.Version = expectedVersion + 1
	return nil
}

func (s *Storage) ListPresence(ctx context.Context, status model.PresenceStatus) ([]*model.PresenceRecord, error) {
	var ids []string
	var err error
	if status == model.PresenceOnline {
		ids, err = s.client.SMembers(ctx, onlineIndexKey()).Result()
	} else {
		ids, err = s.client.SDiff(ctx, playersIndexKey(), onlineIndexKey()).Result()
	}
	if err != nil {
		return nil, storeErr(err)
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, presenceKey(model.PlayerID(id)))
	}
	docs, err := s.mgetJSON(ctx, keys)
	if err != nil {
		return nil, err
	}

	var result []*model.PresenceRecord
	for _, rec := range decodeAll[model.PresenceRecord](docs) {
		if rec.Status == status {
			result = append(result, rec)
		}
	}
	storage.SortPresence(result)
	return result, nil
}

// Challenge operations

func (s *Storage) CreateChallenge(ctx context.Context, challenge *model.Challenge) error {
	data, err := json.Marshal(challenge)
	if err != nil {
		return err
	}

	key := challengeKey(challenge.ID)
	lockKey := pairLockKey(challenge.PairKey())
	pending := challenge.State == model.ChallengePending

	create := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrDuplicateChallenge
		}
		if pending {
			if err := checkPairFree(ctx, tx, lockKey); err != nil {
				return err
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if pending {
				pipe.Set(ctx, lockKey, string(challenge.ID), 0)
				pipe.SAdd(ctx, pendingIndexKey(), string(challenge.ID))
			}
			pipe.SAdd(ctx, playerChallengesIndexKey(challenge.ChallengerID), string(challenge.ID))
			pipe.SAdd(ctx, playerChallengesIndexKey(challenge.OpponentID), string(challenge.ID))
			return nil
		})
		return err
	}

	attempts := max(s.cfg.CreateAttempts, 1)
	for i := 0; i < attempts; i++ {
		err = s.client.Watch(ctx, create, key, lockKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return storeErr(err)
	}
	return model.ErrDuplicateChallenge
}

// checkPairFree fails if the pair lock points at a challenge that is still pending
func checkPairFree(ctx context.Context, tx *redis.Tx, lockKey string) error {
	holder, err := tx.Get(ctx, lockKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	held, err := getJSON[model.Challenge](ctx, tx, challengeKey(model.ChallengeID(holder)), model.ErrChallengeNotFound)
	if errors.Is(err, model.ErrChallengeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if held.State == model.ChallengePending {
		return model.ErrDuplicateChallenge
	}
	return nil
}

func (s *Storage) GetChallenge(ctx context.Context, id model.ChallengeID) (*model.Challenge, error) {
	return getJSON[model.Challenge](ctx, s.client, challengeKey(id), model.ErrChallengeNotFound)
}

func (s *Storage) UpdateChallenge(ctx context.Context, challenge *model.Challenge, expectedVersion int64) error {
	key := challengeKey(challenge.ID)
	lockKey := pairLockKey(challenge.PairKey())
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := getJSON[model.Challenge](ctx, tx, key, model.ErrChallengeNotFound)
		if err != nil {
			return err
		}
		if stored.Version != expectedVersion {
			return model.ErrVersionConflict
		}

		updated := challenge.Clone()
		updated.Version = expectedVersion + 1
		data, err := json.Marshal(updated)
		if err != nil {
			return err
		}

		resolving := stored.State == model.ChallengePending && updated.State.IsTerminal()
		releaseLock := false
		if resolving {
			holder, err := tx.Get(ctx, lockKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			releaseLock = holder == string(challenge.ID)
		}

		var ttl time.Duration
		if updated.State.IsTerminal() {
			ttl = s.cfg.ResolvedChallengeTTL
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			if releaseLock {
				pipe.Del(ctx, lockKey)
			}
			if resolving {
				pipe.SRem(ctx, pendingIndexKey(), string(challenge.ID))
			}
			return nil
		})
		return err
	}, key, lockKey)
	if err := casErr(err); err != nil {
		return err
	}
	challenge.Version = expectedVersion + 1
	return nil
}

func (s *Storage) listChallenges(ctx context.Context, indexKey string) ([]*model.Challenge, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, storeErr(err)
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, challengeKey(model.ChallengeID(id)))
	}
	docs, err := s.mgetJSON(ctx, keys)
	if err != nil {
		return nil, err
	}
	return decodeAll[model.Challenge](docs), nil
}

func (s *Storage) ListChallengesForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Challenge, error) {
	challenges, err := s.listChallenges(ctx, playerChallengesIndexKey(playerID))
	if err != nil {
		return nil, err
	}
	storage.SortChallenges(challenges)
	return challenges, nil
}

func (s *Storage) ListPendingChallenges(ctx context.Context) ([]*model.Challenge, error) {
	challenges, err := s.listChallenges(ctx, pendingIndexKey())
	if err != nil {
		return nil, err
	}
	var result []*model.Challenge
	for _, challenge := range challenges {
		if challenge.State == model.ChallengePending {
			result = append(result, challenge)
		}
	}
	storage.SortChallenges(result)
	return result, nil
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, session *model.GameSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	key := sessionKey(session.ID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return model.ErrSessionExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, playerSessionsIndexKey(session.PlayerA), string(session.ID))
			pipe.SAdd(ctx, playerSessionsIndexKey(session.PlayerB), string(session.ID))
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrSessionExists
	}
	return storeErr(err)
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.GameSession, error) {
	return getJSON[model.GameSession](ctx, s.client, sessionKey(id), model.ErrSessionNotFound)
}

func (s *Storage) UpdateSession(ctx context.Context, session *model.GameSession, expectedVersion int64) error {
	key := sessionKey(session.ID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := getJSON[struct{ Version int64 }](ctx, tx, key, model.ErrSessionNotFound)
		if err != nil {
			return err
		}
		if stored.Version != expectedVersion {
			return model.ErrVersionConflict
		}

		updated := session.Clone()
		updated.Version = expectedVersion + 1
		data, err := json.Marshal(updated)
		if err != nil {
			return err
		}

		var ttl time.Duration
		if updated.IsFinished() {
			ttl = s.cfg.FinishedSessionTTL
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, key)
	if err := casErr(err); err != nil {
		return err
	}
	session.Version = expectedVersion + 1
	return nil
}

func (s *Storage) ListSessionsForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.GameSession, error) {
	ids, err := s.client.SMembers(ctx, playerSessionsIndexKey(playerID)).Result()
	if err != nil {
		return nil, storeErr(err)
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, sessionKey(model.SessionID(id)))
	}
	docs, err := s.mgetJSON(ctx, keys)
	if err != nil {
		return nil, err
	}
	sessions := decodeAll[model.GameSession](docs)
	storage.SortSessions(sessions)
	return sessions, nil
}
