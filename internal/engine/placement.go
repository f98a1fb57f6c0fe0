package engine

import (
	"fmt"
	"sort"

	"github.com/mcoot/battleship/internal/dependencies/random"
	"github.com/mcoot/battleship/internal/model"
)

const randomPlacementAttempts = 200

// ValidatePlacement checks a fleet against the rules: the ship lengths must match
// the required fleet exactly, every cell must be on the grid and no two ships may overlap.
func ValidatePlacement(rules model.Rules, ships []model.Ship) error {
	if len(ships) != len(rules.Fleet) {
		return fmt.Errorf("%w: expected %d ships, got %d", model.ErrInvalidPlacement, len(rules.Fleet), len(ships))
	}

	want := sortedLengths(rules.Fleet)
	got := make([]int, 0, len(ships))
	for _, ship := range ships {
		got = append(got, ship.Length)
	}
	sort.Ints(got)
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("%w: ship lengths %v do not match fleet %v", model.ErrInvalidPlacement, got, want)
		}
	}

	board := model.NewBoard(rules.GridSize)
	for _, ship := range ships {
		if ship.Orientation != model.Horizontal && ship.Orientation != model.Vertical {
			return fmt.Errorf("%w: unknown orientation %q", model.ErrInvalidPlacement, ship.Orientation)
		}
		for _, pos := range ship.Cells() {
			if !board.IsValidPosition(pos) {
				return fmt.Errorf("%w: ship at (%d,%d) leaves the grid", model.ErrInvalidPlacement, ship.Bow.Row, ship.Bow.Col)
			}
			if board.Get(pos) == model.CellShip {
				return fmt.Errorf("%w: ships overlap at (%d,%d)", model.ErrInvalidPlacement, pos.Row, pos.Col)
			}
			board.Set(pos, model.CellShip)
		}
	}
	return nil
}

// RandomPlacement produces a valid fleet for the rules
func RandomPlacement(rules model.Rules, rnd random.Random) ([]model.Ship, error) {
	board := model.NewBoard(rules.GridSize)
	lengths := sortedLengths(rules.Fleet)
	ships := make([]model.Ship, 0, len(lengths))

	// Longest first
	for i := len(lengths) - 1; i >= 0; i-- {
		ship, ok := randomFit(&board, lengths[i], rnd)
		if !ok {
			ship, ok = firstFit(&board, lengths[i])
		}
		if !ok {
			return nil, fmt.Errorf("%w: fleet does not fit a %dx%d grid", model.ErrInvalidPlacement, rules.GridSize, rules.GridSize)
		}
		for _, pos := range ship.Cells() {
			board.Set(pos, model.CellShip)
		}
		ships = append(ships, ship)
	}
	return ships, nil
}

func randomFit(board *model.Board, length int, rnd random.Random) (model.Ship, bool) {
	for attempt := 0; attempt < randomPlacementAttempts; attempt++ {
		ship := model.Ship{
			Bow:         model.Position{Row: rnd.Intn(board.Size), Col: rnd.Intn(board.Size)},
			Length:      length,
			Orientation: model.Horizontal,
		}
		if rnd.Intn(2) == 1 {
			ship.Orientation = model.Vertical
		}
		if fits(board, ship) {
			return ship, true
		}
	}
	return model.Ship{}, false
}

func firstFit(board *model.Board, length int) (model.Ship, bool) {
	for _, orientation := range []model.Orientation{model.Horizontal, model.Vertical} {
		for row := 0; row < board.Size; row++ {
			for col := 0; col < board.Size; col++ {
				ship := model.Ship{Bow: model.Position{Row: row, Col: col}, Length: length, Orientation: orientation}
				if fits(board, ship) {
					return ship, true
				}
			}
		}
	}
	return model.Ship{}, false
}

func fits(board *model.Board, ship model.Ship) bool {
	for _, pos := range ship.Cells() {
		if !board.IsValidPosition(pos) || board.Get(pos) != model.CellEmpty {
			return false
		}
	}
	return true
}

func sortedLengths(fleet []int) []int {
	lengths := make([]int, len(fleet))
	copy(lengths, fleet)
	sort.Ints(lengths)
	return lengths
}
