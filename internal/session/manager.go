package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"connect4duel/internal/game"
)

type Mode string

const (
	PvP Mode = "PvP"
	PvA Mode = "PvA"
	AvA Mode = "AvA"
)

const (
	StatusActive    = "active"
	StatusFinished  = "finished"
	StatusAbandoned = "abandoned"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrInvalidTurn  = errors.New("not your turn")
	ErrGameFinished = errors.New("game already finished")
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case PvP, PvA, AvA:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", game.ErrInvalidInput, s)
}

// Depths configures the Hard tier for computer seats.
type Depths struct {
	Interactive int
	AvA         int
}

// GameState is a snapshot of one game. Snapshots are never mutated after
// they are handed out.
type GameState struct {
	ID           string
	Mode         Mode
	Difficulty   game.Difficulty
	Board        game.Board
	Turn         game.Piece
	Status       string
	Winner       game.Piece
	WinLine      *game.WinLine
	Moves        int
	LastDecision *game.Decision
	StartedAt    time.Time
	EndedAt      time.Time
	LastMoveAt   time.Time
}

// IsBotTurn reports whether the side to move is played by the computer.
func (g GameState) IsBotTurn() bool {
	if g.Status != StatusActive {
		return false
	}
	switch g.Mode {
	case AvA:
		return true
	case PvA:
		return g.Turn == game.AI
	}
	return false
}

// WinnerName labels the winning seat for the mode; empty on a draw.
func (g GameState) WinnerName() string {
	if g.Winner == game.Empty {
		return ""
	}
	first := g.Winner == game.Human
	switch g.Mode {
	case PvP:
		if first {
			return "player1"
		}
		return "player2"
	case AvA:
		if first {
			return "ai1"
		}
		return "ai2"
	}
	if first {
		return "human"
	}
	return "ai"
}

type session struct {
	mu    sync.Mutex
	state GameState
	bots  map[game.Piece]*game.Bot

	// clients counts attached sockets. lastSeen is the last move or
	// disconnect; the idle window runs from it once clients drops to zero.
	clients  int
	lastSeen time.Time
}

type Manager struct {
	mu        sync.RWMutex
	games     map[string]*session
	depths    Depths
	idleAfter time.Duration
	onFinish  func(GameState)
}

func NewManager(depths Depths, idleAfter time.Duration, onFinish func(GameState)) *Manager {
	return &Manager{
		games:     make(map[string]*session),
		depths:    depths,
		idleAfter: idleAfter,
		onFinish:  onFinish,
	}
}

// Start opens a game. Human (piece 1) always moves first. difficulty only
// applies to PvA; AvA seats are always Hard.
func (m *Manager) Start(mode Mode, difficulty game.Difficulty) (GameState, error) {
	bots := make(map[game.Piece]*game.Bot)
	switch mode {
	case PvP:
		difficulty = ""
	case PvA:
		if _, err := game.ParseDifficulty(string(difficulty)); err != nil {
			return GameState{}, err
		}
		bots[game.AI] = game.NewBot(game.AI, difficulty, m.depths.Interactive)
	case AvA:
		difficulty = game.Hard
		bots[game.Human] = game.NewBot(game.Human, game.Hard, m.depths.Interactive)
		bots[game.AI] = game.NewBot(game.AI, game.Hard, m.depths.AvA)
	default:
		return GameState{}, fmt.Errorf("%w: unknown mode %q", game.ErrInvalidInput, mode)
	}

	now := time.Now()
	s := &session{
		state: GameState{
			ID:         uuid.NewString(),
			Mode:       mode,
			Difficulty: difficulty,
			Turn:       game.Human,
			Status:     StatusActive,
			StartedAt:  now,
			LastMoveAt: now,
		},
		bots:     bots,
		lastSeen: now,
	}
	m.mu.Lock()
	m.games[s.state.ID] = s
	m.mu.Unlock()
	return s.state, nil
}

func (m *Manager) get(id string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}
	return s, nil
}

func (m *Manager) Get(id string) (GameState, error) {
	s, err := m.get(id)
	if err != nil {
		return GameState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// Attach records a connected client and returns the current state. Games
// with a client attached are never swept.
func (m *Manager) Attach(id string) (GameState, error) {
	s, err := m.get(id)
	if err != nil {
		return GameState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients++
	return s.state, nil
}

// Detach records a client leaving. For an active game the reconnect window
// starts now; a finished game is forgotten once its last client leaves.
func (m *Manager) Detach(id string) (GameState, error) {
	s, err := m.get(id)
	if err != nil {
		return GameState{}, err
	}
	s.mu.Lock()
	if s.clients > 0 {
		s.clients--
	}
	s.lastSeen = time.Now()
	st := s.state
	over := s.clients == 0 && st.Status != StatusActive
	s.mu.Unlock()

	if over {
		m.Remove(id)
	}
	return st, nil
}

// Move plays a human move for the side to move.
func (m *Manager) Move(id string, col int) (GameState, error) {
	s, err := m.get(id)
	if err != nil {
		return GameState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return s.state, err
	}
	if _, isBot := s.bots[s.state.Turn]; isBot {
		return s.state, ErrInvalidTurn
	}
	if err := m.apply(s, col); err != nil {
		return s.state, err
	}
	return s.state, nil
}

// Advance plays one computer turn if a bot is to move. It reports whether a
// move was made.
func (m *Manager) Advance(id string) (GameState, bool, error) {
	s, err := m.get(id)
	if err != nil {
		return GameState{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != StatusActive {
		return s.state, false, nil
	}
	bot, ok := s.bots[s.state.Turn]
	if !ok {
		return s.state, false, nil
	}
	dec, err := bot.ChooseMove(s.state.Board)
	if err != nil {
		return s.state, false, err
	}
	if err := m.apply(s, dec.Column); err != nil {
		return s.state, false, fmt.Errorf("bot %s chose column %d: %w", bot.Player, dec.Column, err)
	}
	s.state.LastDecision = &dec
	return s.state, true, nil
}

func (s *session) ready() error {
	if s.state.Status != StatusActive {
		return ErrGameFinished
	}
	return nil
}

// apply drops the side to move into col and settles win, draw or turn.
// Callers hold s.mu.
func (m *Manager) apply(s *session, col int) error {
	st := &s.state
	if !st.Board.IsLegal(col) {
		return fmt.Errorf("%w: column %d", game.ErrIllegalMove, col)
	}
	if _, err := st.Board.DropPiece(col, st.Turn); err != nil {
		return err
	}
	st.Moves++
	st.LastMoveAt = time.Now()
	s.lastSeen = st.LastMoveAt
	st.LastDecision = nil

	if won, line := st.Board.CheckWin(st.Turn); won {
		st.Winner = st.Turn
		st.WinLine = line
		m.finish(st, StatusFinished)
		return nil
	}
	if st.Board.IsFull() {
		m.finish(st, StatusFinished)
		return nil
	}
	st.Turn = st.Turn.Opponent()
	return nil
}

func (m *Manager) finish(st *GameState, status string) {
	st.Status = status
	st.EndedAt = time.Now()
	if m.onFinish != nil {
		go m.onFinish(*st)
	}
}

// SweepIdle drops games with no attached client whose last move or
// disconnect is older than the idle window. Active games are reported as
// abandoned.
func (m *Manager) SweepIdle() int {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.games {
		s.mu.Lock()
		if s.clients == 0 && now.Sub(s.lastSeen) > m.idleAfter {
			if s.state.Status == StatusActive {
				m.finish(&s.state, StatusAbandoned)
				log.Info().Str("game", id).Msg("game abandoned after idle window")
			}
			delete(m.games, id)
			removed++
		}
		s.mu.Unlock()
	}
	return removed
}

// Remove forgets a game.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, id)
}
