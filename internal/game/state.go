package game

import (
	"errors"
	"fmt"
)

// Board dimensions. The canonical game is played on a 7x7 grid.
const (
	Width  = 7
	Height = 7
)

// WinLength is the line length that wins a game.
const WinLength = 4

var (
	ErrColumnFull  = errors.New("column is full")
	ErrOutOfBounds = errors.New("column out of bounds")
)

// Cell is one square of the board: empty or owned by a side.
type Cell int8

const CellEmpty Cell = -1

// CellOf returns the cell value owned by side.
func CellOf(side Side) Cell { return Cell(side) }

// Side returns the owning side of the cell, if any.
func (c Cell) Side() (Side, bool) {
	if c == CellEmpty {
		return 0, false
	}
	return Side(c), true
}

// State is the full position of a game: the board plus whose turn is next.
// Board is indexed [y][x] with y=0 the top row; gravity pulls tokens to
// the highest y of a column.
type State struct {
	Board    [][]Cell
	NextSide Side
}

// NewState returns an empty board with `next` to move.
func NewState(next Side) *State {
	board := make([][]Cell, Height)
	for y := range board {
		row := make([]Cell, Width)
		for x := range row {
			row[x] = CellEmpty
		}
		board[y] = row
	}
	return &State{Board: board, NextSide: next}
}

// Clone returns a deep copy. The engine snapshots the state before every
// move so later mutation cannot corrupt an emitted log.
func (s *State) Clone() *State {
	board := make([][]Cell, len(s.Board))
	for y, row := range s.Board {
		board[y] = append([]Cell(nil), row...)
	}
	return &State{Board: board, NextSide: s.NextSide}
}

// Equal reports positional equality.
func (s *State) Equal(o *State) bool {
	if s.NextSide != o.NextSide || len(s.Board) != len(o.Board) {
		return false
	}
	for y := range s.Board {
		if len(s.Board[y]) != len(o.Board[y]) {
			return false
		}
		for x := range s.Board[y] {
			if s.Board[y][x] != o.Board[y][x] {
				return false
			}
		}
	}
	return true
}

func (s *State) LenX() int { return len(s.Board[0]) }
func (s *State) LenY() int { return len(s.Board) }

// ColumnFull reports whether the top cell of col is occupied.
func (s *State) ColumnFull(col int) bool {
	return s.Board[0][col] != CellEmpty
}

// DropToken places a token for NextSide at the lowest empty cell of col
// and advances the turn.
func (s *State) DropToken(col int) error {
	return s.DropTokenAs(col, s.NextSide)
}

// DropTokenAs places a token for an explicit side. The turn still
// advances from NextSide, matching the game's alternation rule.
func (s *State) DropTokenAs(col int, side Side) error {
	if col < 0 || col >= s.LenX() {
		return fmt.Errorf("%w: %d", ErrOutOfBounds, col)
	}
	if s.ColumnFull(col) {
		return fmt.Errorf("%w: %d", ErrColumnFull, col)
	}

	y := 0
	for y < s.LenY() && s.Board[y][col] == CellEmpty {
		y++
	}
	s.Board[y-1][col] = CellOf(side)
	s.NextSide = s.NextSide.Other()
	return nil
}

// Winners returns the set of winning sides. A completely filled board is
// a tie and returns both sides, even when a line of four is also present.
// Otherwise it returns every side owning a straight line of length >= 4.
func (s *State) Winners() []Side {
	if s.allFilled() {
		return []Side{Red, Blue}
	}

	var winners []Side
	for _, side := range []Side{Red, Blue} {
		if len(s.FindAllLines(WinLength, side)) > 0 {
			winners = append(winners, side)
		}
	}
	return winners
}

func (s *State) allFilled() bool {
	for _, row := range s.Board {
		for _, cell := range row {
			if cell == CellEmpty {
				return false
			}
		}
	}
	return true
}

// FindAllLines enumerates every line of exactly `length` cells all owned
// by `side`, across the four canonical directions. Scan ranges are
// direction-aware so each candidate segment fits on the board.
func (s *State) FindAllLines(length int, side Side) []Vector {
	var found []Vector
	for _, d := range [][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}} {
		found = append(found, s.findAllGeneric(d[0], d[1], length, side)...)
	}
	return found
}

func (s *State) findAllGeneric(dx, dy, length int, side Side) []Vector {
	var found []Vector
	for _, x := range scanRange(s.LenX(), length, dx) {
		for _, y := range scanRange(s.LenY(), length, dy) {
			vec := Vector{X: x, Y: y, DX: dx, DY: dy, Length: length}
			if s.lineOwnedBy(vec, side) {
				found = append(found, vec)
			}
		}
	}
	return found
}

func scanRange(boardLen, lineLen, d int) []int {
	var r []int
	switch d {
	case 1:
		for i := 0; i <= boardLen-lineLen; i++ {
			r = append(r, i)
		}
	case -1:
		for i := boardLen - 1; i >= lineLen-1; i-- {
			r = append(r, i)
		}
	default:
		for i := 0; i < boardLen; i++ {
			r = append(r, i)
		}
	}
	return r
}

func (s *State) lineOwnedBy(vec Vector, side Side) bool {
	want := CellOf(side)
	for i := 0; i < vec.Length; i++ {
		if s.Board[vec.Y+i*vec.DY][vec.X+i*vec.DX] != want {
			return false
		}
	}
	return true
}

// Line returns the cells covered by vec. The vector must be in bounds.
func (s *State) Line(vec Vector) []Cell {
	cells := make([]Cell, 0, vec.Length)
	for i := 0; i < vec.Length; i++ {
		cells = append(cells, s.Board[vec.Y+i*vec.DY][vec.X+i*vec.DX])
	}
	return cells
}

// VectorInBounds reports whether vec lies entirely on the board.
func (s *State) VectorInBounds(vec Vector) bool {
	return vec.InBounds(0, 0, s.LenX(), s.LenY())
}
