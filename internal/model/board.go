package model

// Position identifies a cell on the board
type Position struct {
	Row int // 0-indexed from top
	Col int // 0-indexed from left
}

// CellState is the content of one board cell
type CellState string

const (
	CellEmpty CellState = "empty"
	CellShip  CellState = "ship"
	CellHit   CellState = "hit"
	CellMiss  CellState = "miss"
)

// IsShot returns true if the cell has already been fired upon
func (c CellState) IsShot() bool {
	return c == CellHit || c == CellMiss
}

// Board is one player's grid
type Board struct {
	Size  int
	Cells [][]CellState // Row-major: Cells[row][col]
}

// NewBoard creates an empty board of the given size
func NewBoard(size int) Board {
	cells := make([][]CellState, size)
	for i := range cells {
		cells[i] = make([]CellState, size)
		for j := range cells[i] {
			cells[i][j] = CellEmpty
		}
	}
	return Board{Size: size, Cells: cells}
}

// Get returns the state at the given position, or empty when out of bounds
func (b *Board) Get(pos Position) CellState {
	if !b.IsValidPosition(pos) {
		return CellEmpty
	}
	return b.Cells[pos.Row][pos.Col]
}

// Set updates the state at the given position
func (b *Board) Set(pos Position, state CellState) {
	if b.IsValidPosition(pos) {
		b.Cells[pos.Row][pos.Col] = state
	}
}

// IsValidPosition returns true if the position is within bounds
func (b *Board) IsValidPosition(pos Position) bool {
	return pos.Row >= 0 && pos.Row < b.Size && pos.Col >= 0 && pos.Col < b.Size
}

// Count returns the number of cells in the given state
func (b *Board) Count(state CellState) int {
	count := 0
	for row := 0; row < b.Size; row++ {
		for col := 0; col < b.Size; col++ {
			if b.Cells[row][col] == state {
				count++
			}
		}
	}
	return count
}

// Clone returns a deep copy of the board
func (b Board) Clone() Board {
	cells := make([][]CellState, len(b.Cells))
	for i := range b.Cells {
		cells[i] = make([]CellState, len(b.Cells[i]))
		copy(cells[i], b.Cells[i])
	}
	return Board{Size: b.Size, Cells: cells}
}

// Orientation is the direction a ship extends from its bow
type Orientation string

const (
	Horizontal Orientation = "horizontal" // extends to increasing columns
	Vertical   Orientation = "vertical"   // extends to increasing rows
)

// Ship is one placed ship
type Ship struct {
	Bow         Position
	Length      int
	Orientation Orientation
}

// Cells returns every position the ship covers
func (s Ship) Cells() []Position {
	cells := make([]Position, 0, s.Length)
	for i := 0; i < s.Length; i++ {
		pos := s.Bow
		if s.Orientation == Horizontal {
			pos.Col += i
		} else {
			pos.Row += i
		}
		cells = append(cells, pos)
	}
	return cells
}

// Covers returns true if the ship occupies the position
func (s Ship) Covers(pos Position) bool {
	for _, c := range s.Cells() {
		if c == pos {
			return true
		}
	}
	return false
}
