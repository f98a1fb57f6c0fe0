package redis

import (
	"fmt"

	"github.com/mcoot/battleship/internal/model"
)

// Key prefix for all battleship data
const keyPrefix = "bship"

// presenceKey returns the Redis key for a PresenceRecord
func presenceKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:presence:%s", keyPrefix, id)
}

// displayNameIndexKey returns the Redis key for the display name -> player_id index
func displayNameIndexKey(displayName string) string {
	return fmt.Sprintf("%s:idx:display_name:%s", keyPrefix, displayName)
}

// playersIndexKey returns the Redis key for the SET of every known player
func playersIndexKey() string {
	return fmt.Sprintf("%s:idx:players", keyPrefix)
}

// onlineIndexKey returns the Redis key for the SET of online players
func onlineIndexKey() string {
	return fmt.Sprintf("%s:idx:online", keyPrefix)
}

// challengeKey returns the Redis key for a Challenge
func challengeKey(id model.ChallengeID) string {
	return fmt.Sprintf("%s:challenge:%s", keyPrefix, id)
}

// pairLockKey returns the Redis key holding the pending challenge of a player pair
func pairLockKey(pairKey string) string {
	return fmt.Sprintf("%s:lock:pair:%s", keyPrefix, pairKey)
}

// pendingIndexKey returns the Redis key for the SET of pending challenge IDs
func pendingIndexKey() string {
	return fmt.Sprintf("%s:idx:pending", keyPrefix)
}

// playerChallengesIndexKey returns the Redis key for the SET of a player's challenges
func playerChallengesIndexKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:idx:player_challenges:%s", keyPrefix, playerID)
}

// sessionKey returns the Redis key for a GameSession
func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// playerSessionsIndexKey returns the Redis key for the SET of a player's sessions
func playerSessionsIndexKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:idx:player_sessions:%s", keyPrefix, playerID)
}
