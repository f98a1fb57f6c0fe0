package postgres

import (
	"context"
	"fmt"
)

// Each document is stored whole as JSONB next to the columns used for
// lookups, the version guard and the pending-pair constraint.
const schema = `
CREATE TABLE IF NOT EXISTS presence (
	player_id    TEXT PRIMARY KEY,
	display_name TEXT UNIQUE NOT NULL,
	status       TEXT NOT NULL,
	version      BIGINT NOT NULL,
	data         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_presence_status ON presence(status);

CREATE TABLE IF NOT EXISTS challenges (
	id            TEXT PRIMARY KEY,
	challenger_id TEXT NOT NULL,
	opponent_id   TEXT NOT NULL,
	pair_key      TEXT NOT NULL,
	state         TEXT NOT NULL,
	version       BIGINT NOT NULL,
	data          JSONB NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_challenges_pending_pair ON challenges(pair_key) WHERE state = 'pending';
CREATE INDEX IF NOT EXISTS idx_challenges_challenger ON challenges(challenger_id);
CREATE INDEX IF NOT EXISTS idx_challenges_opponent ON challenges(opponent_id);

CREATE TABLE IF NOT EXISTS sessions (
	id       TEXT PRIMARY KEY,
	player_a TEXT NOT NULL,
	player_b TEXT NOT NULL,
	version  BIGINT NOT NULL,
	data     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_player_a ON sessions(player_a);
CREATE INDEX IF NOT EXISTS idx_sessions_player_b ON sessions(player_b);
`

// InitSchema creates the tables if they don't exist
func (s *Storage) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", storeErr(err))
	}
	return nil
}
