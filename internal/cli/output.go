package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mcoot/battleship/internal/api/response"
	"github.com/mcoot/battleship/internal/services/gamesync"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Player:
		o.printPlayer(v)
	case response.Presence:
		o.printPlayer(v.Player)
		o.printf("Status: %s (last seen %s)\n", v.Status, v.LastSeen.Format("15:04:05"))
	case response.AuthResponse:
		o.printPlayer(v.Player)
		o.printf("Token expires: %s\n", v.ExpiresAt.Format("2006-01-02 15:04"))
	case response.PlayerList:
		o.printPlayerList(v)
	case response.Challenge:
		o.printChallenge(v)
	case response.ChallengeList:
		o.printChallengeList(v)
	case response.SessionView:
		o.printSessionView(v)
	case response.SessionList:
		o.printSessionList(v)
	case response.TransitionResult:
		o.printTransitionResult(v)
	case response.CatchUp:
		o.printCatchUp(v)
	case gamesync.MirrorState:
		o.printMirrorState(v)
	case response.Health:
		o.printf("Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printPlayer(p response.Player) {
	o.printf("Player: %s (%s)\n", p.DisplayName, p.ID)
}

func (o *Output) printPlayerList(l response.PlayerList) {
	if len(l.Players) == 0 {
		o.printf("Nobody else is online\n")
		return
	}
	o.printf("Online (%d):\n", len(l.Players))
	for _, p := range l.Players {
		o.printf("  - %s (%s)\n", p.DisplayName, p.ID)
	}
}

func (o *Output) printChallenge(c response.Challenge) {
	o.printf("Challenge: %s\n", c.ID)
	o.printf("From: %s\n", c.ChallengerID)
	o.printf("To: %s\n", c.OpponentID)
	o.printf("State: %s\n", c.State)
	o.printf("Rules: %dx%d, fleet %v\n", c.Rules.GridSize, c.Rules.GridSize, c.Rules.Fleet)
	if c.SessionID != "" {
		o.printf("Session: %s\n", c.SessionID)
	}
}

func (o *Output) printChallengeList(l response.ChallengeList) {
	if len(l.Challenges) == 0 {
		o.printf("No challenges\n")
		return
	}
	for _, c := range l.Challenges {
		line := fmt.Sprintf("  %s  %s -> %s  %s", c.ID, c.ChallengerID, c.OpponentID, c.State)
		if c.SessionID != "" {
			line += "  session " + c.SessionID
		}
		o.printf("%s\n", line)
	}
}

func (o *Output) printSessionList(l response.SessionList) {
	if len(l.Sessions) == 0 {
		o.printf("No sessions\n")
		return
	}
	for _, s := range l.Sessions {
		status := s.Phase
		switch {
		case s.Winner != "":
			status += ", winner " + s.Winner
		case s.Turn != "":
			status += ", turn " + s.Turn
		}
		o.printf("  %s  %s vs %s  %s  v%d\n", s.ID, s.PlayerA, s.PlayerB, status, s.Version)
	}
}

func (o *Output) printSessionView(v response.SessionView) {
	o.printf("Session: %s (v%d)\n", v.ID, v.Version)
	o.printf("Opponent: %s\n", v.OpponentID)
	o.printf("Phase: %s\n", v.Phase)
	o.printStatus(v.PlayerID, v.Phase, v.Turn, v.Winner, v.FinishReason)
	if v.Phase == "placement" {
		o.printf("You placed: %t, opponent placed: %t\n", v.Placed, v.OpponentPlaced)
	}
	if v.LastMove != nil {
		o.printf("Last move: %s\n", describeMove(*v.LastMove))
	}
	o.printBoards(v.OwnBoard, v.OpponentBoard)
}

func (o *Output) printStatus(self, phase, turn, winner, reason string) {
	switch {
	case winner == self:
		o.printf("You won (%s)\n", reason)
	case winner != "":
		o.printf("You lost (%s)\n", reason)
	case phase == "in_progress" && turn == self:
		o.printf("Your turn\n")
	case phase == "in_progress":
		o.printf("Waiting for opponent\n")
	}
}

func (o *Output) printTransitionResult(r response.TransitionResult) {
	if !r.Applied {
		o.printf("Already applied, nothing changed\n")
	}
	o.printSessionView(r.Session)
}

func (o *Output) printCatchUp(c response.CatchUp) {
	o.printf("Session: %s (v%d), moves %d-%d of %d\n", c.SessionID, c.Version, c.FromIndex, c.FromIndex+len(c.Moves), c.Total)
	for _, m := range c.Moves {
		o.printf("  %3d  %s\n", m.Index, describeMove(m))
	}
}

func (o *Output) printMirrorState(s gamesync.MirrorState) {
	o.printf("Session: %s (v%d), %d moves\n", s.SessionID, s.Version, len(s.Moves))
	o.printf("Opponent: %s\n", s.OpponentID)
	o.printf("Phase: %s\n", s.Phase)
	o.printStatus(string(s.PlayerID), string(s.Phase), string(s.Turn), string(s.Winner), string(s.FinishReason))
	if n := len(s.Moves); n > 0 {
		o.printf("Last move: %s\n", describeMove(response.MoveFromModel(s.Moves[n-1])))
	}
	o.printBoards(response.BoardFromModel(s.OwnBoard), response.BoardFromModel(s.OpponentBoard))
}

func describeMove(m response.Move) string {
	if m.Kind == "forfeit" {
		return m.PlayerID + " forfeited"
	}
	desc := fmt.Sprintf("%s fired at (%d,%d): %s", m.PlayerID, m.Row, m.Col, m.Result)
	if m.SunkLength > 0 {
		desc += fmt.Sprintf(", sank a %d", m.SunkLength)
	}
	return desc
}

var cellGlyphs = map[string]string{
	"empty": ".",
	"ship":  "#",
	"hit":   "X",
	"miss":  "o",
}

// printBoards renders both grids side by side
func (o *Output) printBoards(own, opponent response.Board) {
	if len(own) == 0 {
		return
	}
	size := len(own)

	header := "   "
	for col := 0; col < size; col++ {
		header += fmt.Sprintf("%2d", col)
	}
	o.printf("\n%-*s    %s\n", 3+2*size, "  Your fleet", "  Opponent waters")
	o.printf("%s    %s\n", header, header)

	for row := 0; row < size; row++ {
		o.printf("%s    %s\n", boardRow(own, row), boardRow(opponent, row))
	}
}

func boardRow(b response.Board, row int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%2d ", row))
	if row >= len(b) {
		return sb.String()
	}
	for _, cell := range b[row] {
		glyph, ok := cellGlyphs[cell]
		if !ok {
			glyph = "?"
		}
		sb.WriteString(" " + glyph)
	}
	return sb.String()
}
