package game

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"lukechampine.com/frand"
)

type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

const mediumCenterScore = 50

// ParseDifficulty accepts exactly the three tier names; matching is case-sensitive.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case Easy, Medium, Hard:
		return d, nil
	}
	return "", fmt.Errorf("%w: unknown difficulty %q", ErrInvalidInput, s)
}

// Decision is the answer of every tier: a column plus a score for each column
// that was considered.
type Decision struct {
	Column     int
	Scores     ScoreMap
	Difficulty Difficulty
	Nodes      int
	Elapsed    time.Duration
}

// Policy maps a difficulty to a move strategy for one side.
type Policy struct {
	Self      Piece
	HardDepth int
	// Intn draws the Easy tier's column index; it must return a value in [0, n).
	Intn func(n int) int
}

func NewPolicy(self Piece, hardDepth int) *Policy {
	return &Policy{Self: self, HardDepth: hardDepth, Intn: frand.Intn}
}

func (p *Policy) Decide(b Board, d Difficulty) (Decision, error) {
	start := time.Now()
	var dec Decision
	switch d {
	case Easy:
		dec = p.random(b)
	case Medium:
		dec = p.center(b)
	case Hard:
		s := NewSearcher(p.Self)
		col, scores := s.BestMove(b, p.HardDepth)
		dec = Decision{Column: col, Scores: scores, Nodes: s.Nodes()}
	default:
		return Decision{}, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidInput, d)
	}
	dec.Difficulty = d
	dec.Elapsed = time.Since(start)
	return dec, nil
}

func (p *Policy) random(b Board) Decision {
	legal := b.LegalColumns()
	if len(legal) == 0 {
		return Decision{Column: 0, Scores: ScoreMap{}}
	}
	col := legal[p.Intn(len(legal))]
	return Decision{Column: col, Scores: ScoreMap{col: 0}}
}

func (p *Policy) center(b Board) Decision {
	if lo.Contains(b.LegalColumns(), Center) {
		return Decision{Column: Center, Scores: ScoreMap{Center: mediumCenterScore}}
	}
	return p.random(b)
}
