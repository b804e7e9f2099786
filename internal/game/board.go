package game

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Columns = 7
	Rows    = 6
	Center  = Columns / 2
)

// Piece is the content of a single cell.
type Piece uint8

const (
	Empty Piece = iota
	Human
	AI
)

var (
	ErrIllegalMove  = errors.New("illegal move")
	ErrInvalidInput = errors.New("invalid input")
)

// Opponent returns the other side. Empty has no opponent.
func (p Piece) Opponent() Piece {
	switch p {
	case Human:
		return AI
	case AI:
		return Human
	}
	return Empty
}

func (p Piece) Valid() bool {
	return p <= AI
}

func (p Piece) String() string {
	switch p {
	case Empty:
		return "empty"
	case Human:
		return "human"
	case AI:
		return "ai"
	}
	return fmt.Sprintf("piece(%d)", uint8(p))
}

// Board is a 6x7 grid with row 0 at the bottom. It is a value type, so
// assigning a Board copies every cell.
type Board [Rows][Columns]Piece

func (b *Board) IsLegal(col int) bool {
	return col >= 0 && col < Columns && b[Rows-1][col] == Empty
}

// LegalColumns returns the playable columns in ascending order.
func (b *Board) LegalColumns() []int {
	cols := make([]int, 0, Columns)
	for col := 0; col < Columns; col++ {
		if b.IsLegal(col) {
			cols = append(cols, col)
		}
	}
	return cols
}

// DropPiece places p in the lowest empty row of col and returns that row.
func (b *Board) DropPiece(col int, p Piece) (int, error) {
	if col < 0 || col >= Columns {
		return -1, fmt.Errorf("%w: column %d out of range", ErrIllegalMove, col)
	}
	for row := 0; row < Rows; row++ {
		if b[row][col] == Empty {
			b[row][col] = p
			return row, nil
		}
	}
	return -1, fmt.Errorf("%w: column %d is full", ErrIllegalMove, col)
}

func (b *Board) IsFull() bool {
	for col := 0; col < Columns; col++ {
		if b[Rows-1][col] == Empty {
			return false
		}
	}
	return true
}

func (b *Board) Count(p Piece) int {
	n := 0
	for row := 0; row < Rows; row++ {
		for col := 0; col < Columns; col++ {
			if b[row][col] == p {
				n++
			}
		}
	}
	return n
}

// ParseGrid converts a row-major grid (row 0 = bottom) of 0/1/2 values into a
// Board. Shape, cell domain and gravity are all checked.
func ParseGrid(grid [][]int) (Board, error) {
	var b Board
	if len(grid) != Rows {
		return b, fmt.Errorf("%w: board has %d rows, want %d", ErrInvalidInput, len(grid), Rows)
	}
	for row, cells := range grid {
		if len(cells) != Columns {
			return b, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidInput, row, len(cells), Columns)
		}
		for col, v := range cells {
			if v < int(Empty) || v > int(AI) {
				return b, fmt.Errorf("%w: cell (%d,%d) has value %d", ErrInvalidInput, row, col, v)
			}
			b[row][col] = Piece(v)
		}
	}
	for col := 0; col < Columns; col++ {
		for row := 1; row < Rows; row++ {
			if b[row][col] != Empty && b[row-1][col] == Empty {
				return b, fmt.Errorf("%w: floating piece at (%d,%d)", ErrInvalidInput, row, col)
			}
		}
	}
	return b, nil
}

// Grid is the inverse of ParseGrid.
func (b Board) Grid() [][]int {
	grid := make([][]int, Rows)
	for row := range grid {
		grid[row] = make([]int, Columns)
		for col := 0; col < Columns; col++ {
			grid[row][col] = int(b[row][col])
		}
	}
	return grid
}

// String renders the board top row first, "." for empty cells.
func (b Board) String() string {
	var sb strings.Builder
	for row := Rows - 1; row >= 0; row-- {
		for col := 0; col < Columns; col++ {
			switch b[row][col] {
			case Human:
				sb.WriteByte('X')
			case AI:
				sb.WriteByte('O')
			default:
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
