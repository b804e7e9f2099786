package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"connect4duel/internal/game"
	"connect4duel/internal/session"
	"connect4duel/internal/storage"
)

type moveRequest struct {
	Board      [][]int `json:"board" binding:"required"`
	Difficulty string  `json:"difficulty" binding:"required"`
}

type moveResponse struct {
	Column int           `json:"column"`
	Scores game.ScoreMap `json:"scores"`
}

func (s *Server) handleMove(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	board, err := game.ParseGrid(req.Board)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	difficulty, err := game.ParseDifficulty(req.Difficulty)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if next, ok := sideToMove(&board); !ok || next != game.AI {
		log.Debug().
			Int("human", board.Count(game.Human)).
			Int("ai", board.Count(game.AI)).
			Msg("move requested for a position where the ai is not to move")
	}

	dec, cached, err := s.decider.decide(c.Request.Context(), board, difficulty)
	if err != nil {
		log.Error().Err(err).Msg("move decision failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Info().
		Str("difficulty", string(difficulty)).
		Int("column", dec.Column).
		Int("nodes", dec.Nodes).
		Dur("elapsed", dec.Elapsed).
		Bool("cached", cached).
		Msg("move decided")
	s.publishDecision("api", "", dec, cached)
	c.JSON(http.StatusOK, moveResponse{Column: dec.Column, Scores: dec.Scores})
}

func (s *Server) handleGame(c *gin.Context) {
	g, err := s.sessions.Get(c.Param("id"))
	if errors.Is(err, session.ErrGameNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, newStateMessage(g))
}

// sideToMove infers the next piece from the piece counts, Human moving
// first. It reports false when the counts cannot come from alternating play.
func sideToMove(b *game.Board) (game.Piece, bool) {
	switch b.Count(game.Human) - b.Count(game.AI) {
	case 0:
		return game.Human, true
	case 1:
		return game.AI, true
	}
	return game.Empty, false
}

// decider answers API requests, caching Hard decisions when a store is set.
type decider struct {
	policy *game.Policy
	cache  storage.Store
}

func (d *decider) decide(ctx context.Context, b game.Board, difficulty game.Difficulty) (game.Decision, bool, error) {
	if difficulty != game.Hard || d.cache == nil {
		dec, err := d.policy.Decide(b, difficulty)
		return dec, false, err
	}

	key := storage.Key(b, d.policy.Self, d.policy.HardDepth)
	e, ok, err := d.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("decision cache read failed")
	}
	if ok {
		return game.Decision{Column: e.Column, Scores: e.Scores, Difficulty: difficulty}, true, nil
	}

	dec, err := d.policy.Decide(b, difficulty)
	if err != nil {
		return dec, false, err
	}
	if err := d.cache.Put(ctx, key, storage.Entry{Column: dec.Column, Scores: dec.Scores}); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("decision cache write failed")
	}
	return dec, false, nil
}
