package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// boardColumns is the board width; column histograms have one bucket per
// column. Keep in sync with game.Columns.
const boardColumns = 7

// Metrics aggregates the event stream for the analytics consumer.
type Metrics struct {
	mu sync.Mutex

	decisions     map[string]int
	elapsedMs     map[string]float64
	nodes         map[string]int
	cacheHits     int
	columns       [boardColumns]int
	gamesPerMode  map[string]int
	winners       map[string]int
	gameDurations []float64
	gamesPerDay   map[string]int
}

func NewMetrics() *Metrics {
	return &Metrics{
		decisions:    make(map[string]int),
		elapsedMs:    make(map[string]float64),
		nodes:        make(map[string]int),
		gamesPerMode: make(map[string]int),
		winners:      make(map[string]int),
		gamesPerDay:  make(map[string]int),
	}
}

// Record decodes one envelope and folds it into the totals. Unknown event
// names are ignored.
func (m *Metrics) Record(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decode event: %w", err)
	}
	switch e.Event {
	case EventMoveDecided:
		var p MoveDecided
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return e, fmt.Errorf("decode %s: %w", e.Event, err)
		}
		m.recordDecision(p)
	case EventGameFinished:
		var p GameFinished
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return e, fmt.Errorf("decode %s: %w", e.Event, err)
		}
		m.recordGame(p, e.Timestamp)
	}
	return e, nil
}

func (m *Metrics) recordDecision(p MoveDecided) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[p.Difficulty]++
	m.elapsedMs[p.Difficulty] += p.ElapsedMs
	m.nodes[p.Difficulty] += p.Nodes
	if p.Cached {
		m.cacheHits++
	}
	if p.Column >= 0 && p.Column < len(m.columns) {
		m.columns[p.Column]++
	}
}

func (m *Metrics) recordGame(p GameFinished, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gamesPerMode[p.Mode]++
	if p.Winner != "" {
		m.winners[p.Winner]++
	}
	m.gameDurations = append(m.gameDurations, p.Duration)
	m.gamesPerDay[at.Format("2006-01-02")]++
}

// Summary is a point-in-time copy of the totals.
type Summary struct {
	Decisions      map[string]int
	AvgElapsedMs   map[string]float64
	AvgNodes       map[string]float64
	CacheHits      int
	Columns        [boardColumns]int
	GamesPerMode   map[string]int
	Winners        map[string]int
	AvgGameSeconds float64
	GamesPerDay    map[string]int
}

func (m *Metrics) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{
		Decisions:    make(map[string]int, len(m.decisions)),
		AvgElapsedMs: make(map[string]float64, len(m.decisions)),
		AvgNodes:     make(map[string]float64, len(m.decisions)),
		CacheHits:    m.cacheHits,
		Columns:      m.columns,
		GamesPerMode: make(map[string]int, len(m.gamesPerMode)),
		Winners:      make(map[string]int, len(m.winners)),
		GamesPerDay:  make(map[string]int, len(m.gamesPerDay)),
	}
	for d, n := range m.decisions {
		s.Decisions[d] = n
		s.AvgElapsedMs[d] = m.elapsedMs[d] / float64(n)
		s.AvgNodes[d] = float64(m.nodes[d]) / float64(n)
	}
	for k, v := range m.gamesPerMode {
		s.GamesPerMode[k] = v
	}
	for k, v := range m.winners {
		s.Winners[k] = v
	}
	for k, v := range m.gamesPerDay {
		s.GamesPerDay[k] = v
	}
	if len(m.gameDurations) > 0 {
		sum := 0.0
		for _, d := range m.gameDurations {
			sum += d
		}
		s.AvgGameSeconds = sum / float64(len(m.gameDurations))
	}
	return s
}

func (m *Metrics) Log(logger zerolog.Logger) {
	s := m.Summary()
	difficulties := make([]string, 0, len(s.Decisions))
	for d := range s.Decisions {
		difficulties = append(difficulties, d)
	}
	sort.Strings(difficulties)
	for _, d := range difficulties {
		logger.Info().
			Str("difficulty", d).
			Int("decisions", s.Decisions[d]).
			Float64("avgElapsedMs", s.AvgElapsedMs[d]).
			Float64("avgNodes", s.AvgNodes[d]).
			Msg("decision summary")
	}
	logger.Info().
		Int("cacheHits", s.CacheHits).
		Ints("columns", s.Columns[:]).
		Interface("gamesPerMode", s.GamesPerMode).
		Interface("winners", s.Winners).
		Interface("gamesPerDay", s.GamesPerDay).
		Float64("avgGameSeconds", s.AvgGameSeconds).
		Msg("game summary")
}
