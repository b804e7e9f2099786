package game

import (
	"math"
	"sort"
)

const (
	WinScore  = 10_000_000
	LossScore = -WinScore
	DrawScore = 0
)

// ScoreMap holds the searched value of every legal column at decision time.
type ScoreMap map[int]int

// Columns returns the keys in ascending order.
func (m ScoreMap) Columns() []int {
	cols := make([]int, 0, len(m))
	for col := range m {
		cols = append(cols, col)
	}
	sort.Ints(cols)
	return cols
}

// Best returns the highest scoring column, the lowest index on ties.
func (m ScoreMap) Best() (int, bool) {
	best, found := 0, false
	for _, col := range m.Columns() {
		if !found || m[col] > m[best] {
			best, found = col, true
		}
	}
	return best, found
}

// Searcher runs depth-limited minimax with alpha-beta pruning on behalf of
// Self. Leaves are always scored from Self's point of view.
type Searcher struct {
	Self  Piece
	nodes int
}

func NewSearcher(self Piece) *Searcher {
	return &Searcher{Self: self}
}

// Nodes returns how many positions were visited since the last
// AllScoresAtRoot call started.
func (s *Searcher) Nodes() int {
	return s.nodes
}

// Minimax returns the best column for the side to move and the value of the
// position. maximizing means it is Self's turn. The column is -1 at leaves.
// When all children tie, the first legal column is returned.
func (s *Searcher) Minimax(b Board, depth, alpha, beta int, maximizing bool) (int, int) {
	s.nodes++
	if depth <= 0 || b.IsTerminal() {
		return -1, s.leaf(&b)
	}

	legal := b.LegalColumns()
	column := legal[0]
	if maximizing {
		value := math.MinInt
		for _, col := range legal {
			child := b
			child.DropPiece(col, s.Self)
			if _, v := s.Minimax(child, depth-1, alpha, beta, false); v > value {
				value, column = v, col
			}
			alpha = max(alpha, value)
			if alpha >= beta {
				break
			}
		}
		return column, value
	}

	value := math.MaxInt
	for _, col := range legal {
		child := b
		child.DropPiece(col, s.Self.Opponent())
		if _, v := s.Minimax(child, depth-1, alpha, beta, true); v < value {
			value, column = v, col
		}
		beta = min(beta, value)
		if alpha >= beta {
			break
		}
	}
	return column, value
}

func (s *Searcher) leaf(b *Board) int {
	switch {
	case b.hasWon(s.Self):
		return WinScore
	case b.hasWon(s.Self.Opponent()):
		return LossScore
	case b.IsFull():
		return DrawScore
	}
	return ScorePosition(b, s.Self)
}

func (b *Board) hasWon(p Piece) bool {
	won, _ := b.CheckWin(p)
	return won
}

// AllScoresAtRoot plays Self into every legal column and searches the reply
// tree one ply shallower, keeping each column's value.
func (s *Searcher) AllScoresAtRoot(b Board, depth int) ScoreMap {
	s.nodes = 0
	scores := make(ScoreMap, Columns)
	for _, col := range b.LegalColumns() {
		child := b
		child.DropPiece(col, s.Self)
		_, scores[col] = s.Minimax(child, depth-1, math.MinInt, math.MaxInt, false)
	}
	return scores
}

// BestMove picks the highest valued root column. A board without legal
// columns yields column 0 and an empty map.
func (s *Searcher) BestMove(b Board, depth int) (int, ScoreMap) {
	scores := s.AllScoresAtRoot(b, depth)
	best, ok := scores.Best()
	if !ok {
		return 0, scores
	}
	return best, scores
}
