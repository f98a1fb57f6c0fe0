package storage

import (
	"sort"

	"github.com/mcoot/battleship/internal/model"
)

// SortPresence orders records by display name, then ID
func SortPresence(records []*model.PresenceRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].Player, records[j].Player
		if a.DisplayName != b.DisplayName {
			return a.DisplayName < b.DisplayName
		}
		return a.ID < b.ID
	})
}

// SortChallenges orders challenges newest first
func SortChallenges(challenges []*model.Challenge) {
	sort.Slice(challenges, func(i, j int) bool {
		a, b := challenges[i], challenges[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// SortSessions orders sessions newest first
func SortSessions(sessions []*model.GameSession) {
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
