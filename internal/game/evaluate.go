package game

const (
	centerWeight = 3
	fourWeight   = 1000
	threeWeight  = 10
	twoWeight    = 2
	threatWeight = -80
)

// EvaluateWindow scores a single run of four cells for p.
func EvaluateWindow(w [4]Piece, p Piece) int {
	opp := p.Opponent()
	own, theirs, empty := 0, 0, 0
	for _, cell := range w {
		switch cell {
		case p:
			own++
		case opp:
			theirs++
		default:
			empty++
		}
	}

	score := 0
	switch {
	case own == 4:
		score += fourWeight
	case own == 3 && empty == 1:
		score += threeWeight
	case own == 2 && empty == 2:
		score += twoWeight
	}
	if theirs == 3 && empty == 1 {
		score += threatWeight
	}
	return score
}

// ScorePosition is the static evaluation used at depth-limited leaves. It
// adds a center-column bonus to the sum over every four-cell window.
func ScorePosition(b *Board, p Piece) int {
	score := 0
	for row := 0; row < Rows; row++ {
		if b[row][Center] == p {
			score += centerWeight
		}
	}

	var w [4]Piece
	for _, d := range directions {
		colEnd, rowStart, rowEnd := d.bounds()
		for c := 0; c < colEnd; c++ {
			for r := rowStart; r < rowEnd; r++ {
				for i := 0; i < 4; i++ {
					w[i] = b[r+i*d.dr][c+i*d.dc]
				}
				score += EvaluateWindow(w, p)
			}
		}
	}
	return score
}
