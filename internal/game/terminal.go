package game

// Cell addresses a board position by column and row (row 0 = bottom).
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// WinLine holds the two endpoints of a four-in-a-row.
type WinLine struct {
	Start Cell `json:"start"`
	End   Cell `json:"end"`
}

// direction steps for the scan: horizontal, vertical, rising and falling
// diagonals. The order decides which line is reported when a single drop
// completes more than one.
var directions = [4]direction{
	{1, 0},
	{0, 1},
	{1, 1},
	{1, -1},
}

type direction struct{ dc, dr int }

// bounds returns the range of window start cells that keep all four cells
// on the board: columns [0, colEnd), rows [rowStart, rowEnd).
func (d direction) bounds() (colEnd, rowStart, rowEnd int) {
	colEnd, rowStart, rowEnd = Columns-3*d.dc, 0, Rows
	switch d.dr {
	case 1:
		rowEnd = Rows - 3
	case -1:
		rowStart = 3
	}
	return colEnd, rowStart, rowEnd
}

// CheckWin reports whether p has four in a row and, if so, the first line
// found. Only one line is returned even when several are complete.
func (b *Board) CheckWin(p Piece) (bool, *WinLine) {
	if p == Empty {
		return false, nil
	}
	for _, d := range directions {
		colEnd, rowStart, rowEnd := d.bounds()
		for c := 0; c < colEnd; c++ {
			for r := rowStart; r < rowEnd; r++ {
				if b.lineOf(p, c, r, d.dc, d.dr) {
					return true, &WinLine{
						Start: Cell{Col: c, Row: r},
						End:   Cell{Col: c + 3*d.dc, Row: r + 3*d.dr},
					}
				}
			}
		}
	}
	return false, nil
}

func (b *Board) lineOf(p Piece, c, r, dc, dr int) bool {
	for i := 0; i < 4; i++ {
		if b[r+i*dr][c+i*dc] != p {
			return false
		}
	}
	return true
}

// Winner returns the side holding a four-in-a-row, or Empty.
func (b *Board) Winner() Piece {
	if won, _ := b.CheckWin(Human); won {
		return Human
	}
	if won, _ := b.CheckWin(AI); won {
		return AI
	}
	return Empty
}

func (b *Board) IsTerminal() bool {
	return b.Winner() != Empty || b.IsFull()
}

func (b *Board) IsDraw() bool {
	return b.IsFull() && b.Winner() == Empty
}
