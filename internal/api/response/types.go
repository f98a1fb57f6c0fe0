package response

import (
	"strconv"
	"time"

	"github.com/mcoot/battleship/internal/engine"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/services/auth"
	"github.com/mcoot/battleship/internal/services/gamesync"
)

// Player represents a player in API responses
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:          string(p.ID),
		DisplayName: p.DisplayName,
	}
}

// PlayerList wraps a list of players
type PlayerList struct {
	Players []Player `json:"players"`
}

// PlayerListFromModel converts a slice of players
func PlayerListFromModel(players []model.Player) PlayerList {
	out := make([]Player, len(players))
	for i := range players {
		out[i] = PlayerFromModel(&players[i])
	}
	return PlayerList{Players: out}
}

// Presence is a player's liveness record
type Presence struct {
	Player   Player    `json:"player"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
	Version  int64     `json:"version"`
}

// PresenceFromModel converts model.PresenceRecord
func PresenceFromModel(r *model.PresenceRecord) Presence {
	return Presence{
		Player:   PlayerFromModel(&r.Player),
		Status:   string(r.Status),
		LastSeen: r.LastSeen,
		Version:  r.Version,
	}
}

// AuthResponse is the response for registration
type AuthResponse struct {
	Player       Player    `json:"player"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from an identity token
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Player:       PlayerFromModel(&s.Player),
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// Rules are the parameters of a match
type Rules struct {
	GridSize int   `json:"grid_size"`
	Fleet    []int `json:"fleet"`
}

// RulesFromModel converts model.Rules
func RulesFromModel(r model.Rules) Rules {
	return Rules{GridSize: r.GridSize, Fleet: append([]int(nil), r.Fleet...)}
}

// ToModel converts the rules back
func (r Rules) ToModel() model.Rules {
	return model.Rules{GridSize: r.GridSize, Fleet: append([]int(nil), r.Fleet...)}
}

// Challenge represents a challenge in API responses
type Challenge struct {
	ID           string     `json:"id"`
	ChallengerID string     `json:"challenger_id"`
	OpponentID   string     `json:"opponent_id"`
	State        string     `json:"state"`
	Rules        Rules      `json:"rules"`
	SessionID    string     `json:"session_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	Version      int64      `json:"version"`
}

// ChallengeFromModel converts model.Challenge
func ChallengeFromModel(c *model.Challenge) Challenge {
	return Challenge{
		ID:           string(c.ID),
		ChallengerID: string(c.ChallengerID),
		OpponentID:   string(c.OpponentID),
		State:        string(c.State),
		Rules:        RulesFromModel(c.Rules),
		SessionID:    string(c.SessionID),
		CreatedAt:    c.CreatedAt,
		ResolvedAt:   c.ResolvedAt,
		Version:      c.Version,
	}
}

// ChallengeList wraps a list of challenges
type ChallengeList struct {
	Challenges []Challenge `json:"challenges"`
}

// ChallengeListFromModel converts a slice of challenges
func ChallengeListFromModel(challenges []*model.Challenge) ChallengeList {
	out := make([]Challenge, len(challenges))
	for i, c := range challenges {
		out[i] = ChallengeFromModel(c)
	}
	return ChallengeList{Challenges: out}
}

// Ship is a placed ship
type Ship struct {
	Row         int    `json:"row"`
	Col         int    `json:"col"`
	Length      int    `json:"length"`
	Orientation string `json:"orientation"`
}

func shipsFromModel(ships []model.Ship) []Ship {
	if ships == nil {
		return nil
	}
	out := make([]Ship, len(ships))
	for i, s := range ships {
		out[i] = Ship{Row: s.Bow.Row, Col: s.Bow.Col, Length: s.Length, Orientation: string(s.Orientation)}
	}
	return out
}

func shipsToModel(ships []Ship) []model.Ship {
	if ships == nil {
		return nil
	}
	out := make([]model.Ship, len(ships))
	for i, s := range ships {
		out[i] = model.Ship{
			Bow:         model.Position{Row: s.Row, Col: s.Col},
			Length:      s.Length,
			Orientation: model.Orientation(s.Orientation),
		}
	}
	return out
}

// Move is one entry of a session's move log
type Move struct {
	Index        int       `json:"index"`
	TransitionID string    `json:"transition_id"`
	Kind         string    `json:"kind"`
	PlayerID     string    `json:"player_id"`
	Row          int       `json:"row"`
	Col          int       `json:"col"`
	Result       string    `json:"result,omitempty"`
	SunkLength   int       `json:"sunk_length,omitempty"`
	At           time.Time `json:"at"`
}

// MoveFromModel converts model.Move
func MoveFromModel(m model.Move) Move {
	return Move{
		Index:        m.Index,
		TransitionID: string(m.TransitionID),
		Kind:         string(m.Kind),
		PlayerID:     string(m.PlayerID),
		Row:          m.Target.Row,
		Col:          m.Target.Col,
		Result:       string(m.Result),
		SunkLength:   m.SunkLength,
		At:           m.At,
	}
}

// ToModel converts the move back
func (m Move) ToModel() model.Move {
	return model.Move{
		Index:        m.Index,
		TransitionID: model.TransitionID(m.TransitionID),
		Kind:         model.MoveKind(m.Kind),
		PlayerID:     model.PlayerID(m.PlayerID),
		Target:       model.Position{Row: m.Row, Col: m.Col},
		Result:       model.ShotResult(m.Result),
		SunkLength:   m.SunkLength,
		At:           m.At,
	}
}

func movesFromModel(moves []model.Move) []Move {
	out := make([]Move, len(moves))
	for i, m := range moves {
		out[i] = MoveFromModel(m)
	}
	return out
}

// Board is a grid of cell states, row-major
type Board [][]string

// BoardFromModel converts model.Board
func BoardFromModel(b model.Board) Board {
	cells := make(Board, len(b.Cells))
	for row := range b.Cells {
		cells[row] = make([]string, len(b.Cells[row]))
		for col, c := range b.Cells[row] {
			cells[row][col] = string(c)
		}
	}
	return cells
}

// SessionView is one player's projection of a game session
type SessionView struct {
	ID             string `json:"id"`
	PlayerID       string `json:"player_id"`
	OpponentID     string `json:"opponent_id"`
	Rules          Rules  `json:"rules"`
	Phase          string `json:"phase"`
	Turn           string `json:"turn,omitempty"`
	Winner         string `json:"winner,omitempty"`
	FinishReason   string `json:"finish_reason,omitempty"`
	Version        int64  `json:"version"`
	OwnBoard       Board  `json:"own_board"`
	OpponentBoard  Board  `json:"opponent_board"`
	OwnFleet       []Ship `json:"own_fleet,omitempty"`
	Placed         bool   `json:"placed"`
	OpponentPlaced bool   `json:"opponent_placed"`
	MoveCount      int    `json:"move_count"`
	LastMove       *Move  `json:"last_move,omitempty"`
}

// SessionViewFromModel converts engine.View. last may be nil.
func SessionViewFromModel(v *engine.View, last *model.Move) SessionView {
	view := SessionView{
		ID:             string(v.SessionID),
		PlayerID:       string(v.PlayerID),
		OpponentID:     string(v.OpponentID),
		Rules:          RulesFromModel(v.Rules),
		Phase:          string(v.Phase),
		Turn:           string(v.Turn),
		Winner:         string(v.Winner),
		FinishReason:   string(v.FinishReason),
		Version:        v.Version,
		OwnBoard:       BoardFromModel(v.OwnBoard),
		OpponentBoard:  BoardFromModel(v.OpponentBoard),
		OwnFleet:       shipsFromModel(v.OwnFleet),
		Placed:         v.Placed,
		OpponentPlaced: v.OpponentPlaced,
		MoveCount:      v.MoveCount,
	}
	if last != nil {
		m := MoveFromModel(*last)
		view.LastMove = &m
	}
	return view
}

// SessionSummary is a session as listed for a player
type SessionSummary struct {
	ID        string    `json:"id"`
	PlayerA   string    `json:"player_a"`
	PlayerB   string    `json:"player_b"`
	Phase     string    `json:"phase"`
	Turn      string    `json:"turn,omitempty"`
	Winner    string    `json:"winner,omitempty"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionSummaryFromModel converts model.GameSession
func SessionSummaryFromModel(s *model.GameSession) SessionSummary {
	return SessionSummary{
		ID:        string(s.ID),
		PlayerA:   string(s.PlayerA),
		PlayerB:   string(s.PlayerB),
		Phase:     string(s.Phase),
		Turn:      string(s.Turn),
		Winner:    string(s.Winner),
		Version:   s.Version,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// SessionList wraps a list of sessions
type SessionList struct {
	Sessions []SessionSummary `json:"sessions"`
}

// SessionListFromModel converts a slice of sessions
func SessionListFromModel(sessions []*model.GameSession) SessionList {
	out := make([]SessionSummary, len(sessions))
	for i, s := range sessions {
		out[i] = SessionSummaryFromModel(s)
	}
	return SessionList{Sessions: out}
}

// TransitionResult is returned by every submission endpoint
type TransitionResult struct {
	Applied bool        `json:"applied"`
	Session SessionView `json:"session"`
}

// CatchUp is the tail of a move log plus what a client needs to verify it.
// The digest is sent as a decimal string since it does not fit a JSON number.
type CatchUp struct {
	SessionID      string `json:"session_id"`
	PlayerA        string `json:"player_a"`
	PlayerB        string `json:"player_b"`
	Rules          Rules  `json:"rules"`
	Version        int64  `json:"version"`
	Phase          string `json:"phase"`
	Turn           string `json:"turn,omitempty"`
	Winner         string `json:"winner,omitempty"`
	FinishReason   string `json:"finish_reason,omitempty"`
	FromIndex      int    `json:"from"`
	Moves          []Move `json:"moves"`
	Total          int    `json:"total"`
	Digest         string `json:"digest"`
	OwnFleet       []Ship `json:"own_fleet,omitempty"`
	OpponentPlaced bool   `json:"opponent_placed"`
}

// CatchUpFromModel converts gamesync.CatchUp
func CatchUpFromModel(c *gamesync.CatchUp) CatchUp {
	return CatchUp{
		SessionID:      string(c.SessionID),
		PlayerA:        string(c.PlayerA),
		PlayerB:        string(c.PlayerB),
		Rules:          RulesFromModel(c.Rules),
		Version:        c.Version,
		Phase:          string(c.Phase),
		Turn:           string(c.Turn),
		Winner:         string(c.Winner),
		FinishReason:   string(c.FinishReason),
		FromIndex:      c.FromIndex,
		Moves:          movesFromModel(c.Moves),
		Total:          c.Total,
		Digest:         strconv.FormatUint(c.Digest, 10),
		OwnFleet:       shipsFromModel(c.OwnFleet),
		OpponentPlaced: c.OpponentPlaced,
	}
}

// ToModel converts the wire form back for a client-side mirror
func (c CatchUp) ToModel() (*gamesync.CatchUp, error) {
	digest, err := strconv.ParseUint(c.Digest, 10, 64)
	if err != nil {
		return nil, err
	}
	moves := make([]model.Move, len(c.Moves))
	for i, m := range c.Moves {
		moves[i] = m.ToModel()
	}
	return &gamesync.CatchUp{
		SessionID:      model.SessionID(c.SessionID),
		PlayerA:        model.PlayerID(c.PlayerA),
		PlayerB:        model.PlayerID(c.PlayerB),
		Rules:          c.Rules.ToModel(),
		Version:        c.Version,
		Phase:          model.Phase(c.Phase),
		Turn:           model.PlayerID(c.Turn),
		Winner:         model.PlayerID(c.Winner),
		FinishReason:   model.FinishReason(c.FinishReason),
		FromIndex:      c.FromIndex,
		Moves:          moves,
		Total:          c.Total,
		Digest:         digest,
		OwnFleet:       shipsToModel(c.OwnFleet),
		OpponentPlaced: c.OpponentPlaced,
	}, nil
}

// Health is the health check body
type Health struct {
	Status string `json:"status"`
}
