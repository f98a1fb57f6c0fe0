package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/storage"
)

const uniqueViolation = pq.ErrorCode("23505")

// Storage is a PostgreSQL-backed implementation of the storage interface.
// Version-guarded updates are conditional UPDATEs on the version column.
type Storage struct {
	db *sql.DB
}

// New opens a connection pool, verifies it and ensures the schema exists
func New(ctx context.Context, cfg Config) (*Storage, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", storeErr(err))
	}

	s := NewWithDB(db)
	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB creates a storage over an existing pool
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// Close closes the connection pool
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// storeErr reports failures to reach the database as an unavailable store.
// Errors raised by the server itself are returned unchanged.
func storeErr(err error) error {
	if err == nil || model.KindOf(err) != model.KindInternal {
		return err
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func getJSON[T any](ctx context.Context, db *sql.DB, query string, notFound error, args ...any) (*T, error) {
	var data []byte
	if err := db.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

func listJSON[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var result []*T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, storeErr(err)
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			continue // Skip invalid data
		}
		result = append(result, &v)
	}
	return result, storeErr(rows.Err())
}

// guardedUpdate runs a version-guarded UPDATE and tells a lost race apart from a missing row
func (s *Storage) guardedUpdate(ctx context.Context, table, idColumn, id string, notFound error, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storeErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	check := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)", table, idColumn)
	if err := s.db.QueryRowContext(ctx, check, id).Scan(&exists); err != nil {
		return storeErr(err)
	}
	if !exists {
		return notFound
	}
	return model.ErrVersionConflict
}

// Presence operations

func (s *Storage) CreatePresence(ctx context.Context, rec *model.PresenceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO presence (player_id, display_name, status, version, data) VALUES ($1, $2, $3, $4, $5)`,
		rec.Player.ID, rec.Player.DisplayName, rec.Status, rec.Version, string(data))
	if isUniqueViolation(err) {
		return model.ErrDisplayNameTaken
	}
	return storeErr(err)
}

func (s *Storage) GetPresence(ctx context.Context, id model.PlayerID) (*model.PresenceRecord, error) {
	return getJSON[model.PresenceRecord](ctx, s.db,
		`SELECT data FROM presence WHERE player_id = $1`, model.ErrPlayerNotFound, id)
}

func (s *Storage) GetPresenceByName(ctx context.Context, displayName string) (*model.PresenceRecord, error) {
	return getJSON[model.PresenceRecord](ctx, s.db,
		`SELECT data FROM presence WHERE display_name = $1`, model.ErrPlayerNotFound, displayName)
}

func (s *Storage) UpdatePresence(ctx context.Context, rec *model.PresenceRecord, expectedVersion int64) error {
	stored, err := s.GetPresence(ctx, rec.Player.ID)
	if err != nil {
		return err
	}
	updated := rec.Clone()
	updated.Player = stored.Player
	updated.Version = expectedVersion + 1
	data, err := json.Marshal(updated)
	if err != nil {
		return err
	}

	err = s.guardedUpdate(ctx, "presence", "player_id", string(rec.Player.ID), model.ErrPlayerNotFound,
		`UPDATE presence SET status = $1, version = $2, data = $3 WHERE player_id = $4 AND version = $5`,
		updated.Status, updated.Version, string(data), rec.Player.ID, expectedVersion)
	if err != nil {
		return err
	}
	rec.Version = updated.Version
	return nil
}

func (s *Storage) ListPresence(ctx context.Context, status model.PresenceStatus) ([]*model.PresenceRecord, error) {
	records, err := listJSON[model.PresenceRecord](ctx, s.db,
		`SELECT data FROM presence WHERE status = $1`, status)
	if err != nil {
		return nil, err
	}
	storage.SortPresence(records)
	return records, nil
}

// Challenge operations

func (s *Storage) CreateChallenge(ctx context.Context, challenge *model.Challenge) error {
	data, err := json.Marshal(challenge)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO challenges (id, challenger_id, opponent_id, pair_key, state, version, data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		challenge.ID, challenge.ChallengerID, challenge.OpponentID, challenge.PairKey(),
		challenge.State, challenge.Version, string(data))
	if isUniqueViolation(err) {
		return model.ErrDuplicateChallenge
	}
	return storeErr(err)
}

func (s *Storage) GetChallenge(ctx context.Context, id model.ChallengeID) (*model.Challenge, error) {
	return getJSON[model.Challenge](ctx, s.db,
		`SELECT data FROM challenges WHERE id = $1`, model.ErrChallengeNotFound, id)
}

func (s *Storage) UpdateChallenge(ctx context.Context, challenge *model.Challenge, expectedVersion int64) error {
	updated := challenge.Clone()
	updated.Version = expectedVersion + 1
	data, err := json.Marshal(updated)
	if err != nil {
		return err
	}

	err = s.guardedUpdate(ctx, "challenges", "id", string(challenge.ID), model.ErrChallengeNotFound,
		`UPDATE challenges SET state = $1, version = $2, data = $3 WHERE id = $4 AND version = $5`,
		updated.State, updated.Version, string(data), challenge.ID, expectedVersion)
	if isUniqueViolation(err) {
		return model.ErrDuplicateChallenge
	}
	if err != nil {
		return err
	}
	challenge.Version = updated.Version
	return nil
}

func (s *Storage) ListChallengesForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Challenge, error) {
	challenges, err := listJSON[model.Challenge](ctx, s.db,
		`SELECT data FROM challenges WHERE challenger_id = $1 OR opponent_id = $1`, playerID)
	if err != nil {
		return nil, err
	}
	storage.SortChallenges(challenges)
	return challenges, nil
}

func (s *Storage) ListPendingChallenges(ctx context.Context) ([]*model.Challenge, error) {
	challenges, err := listJSON[model.Challenge](ctx, s.db,
		`SELECT data FROM challenges WHERE state = $1`, model.ChallengePending)
	if err != nil {
		return nil, err
	}
	storage.SortChallenges(challenges)
	return challenges, nil
}

// Session operations

func (s *Storage) CreateSession(ctx context.Context, session *model.GameSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, player_a, player_b, version, data) VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.PlayerA, session.PlayerB, session.Version, string(data))
	if isUniqueViolation(err) {
		return model.ErrSessionExists
	}
	return storeErr(err)
}

func (s *Storage) GetSession(ctx context.Context, id model.SessionID) (*model.GameSession, error) {
	return getJSON[model.GameSession](ctx, s.db,
		`SELECT data FROM sessions WHERE id = $1`, model.ErrSessionNotFound, id)
}

func (s *Storage) UpdateSession(ctx context.Context, session *model.GameSession, expectedVersion int64) error {
	updated := session.Clone()
	updated.Version = expectedVersion + 1
	data, err := json.Marshal(updated)
	if err != nil {
		return err
	}

	err = s.guardedUpdate(ctx, "sessions", "id", string(session.ID), model.ErrSessionNotFound,
		`UPDATE sessions SET version = $1, data = $2 WHERE id = $3 AND version = $4`,
		updated.Version, string(data), session.ID, expectedVersion)
	if err != nil {
		return err
	}
	session.Version = updated.Version
	return nil
}

func (s *Storage) ListSessionsForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.GameSession, error) {
	sessions, err := listJSON[model.GameSession](ctx, s.db,
		`SELECT data FROM sessions WHERE player_a = $1 OR player_b = $1`, playerID)
	if err != nil {
		return nil, err
	}
	storage.SortSessions(sessions)
	return sessions, nil
}
