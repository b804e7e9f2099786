package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"connect4duel/internal/analytics"
	"connect4duel/internal/game"
	"connect4duel/internal/session"
	"connect4duel/internal/storage"
)

type Server struct {
	router    *gin.Engine
	decider   *decider
	sessions  *session.Manager
	analytics *analytics.Producer
	botDelay  time.Duration
}

type Config struct {
	APIDepth         int
	InteractiveDepth int
	AvADepth         int
	BotDelay         time.Duration
	ReconnectWindow  time.Duration
	CORSOrigins      []string
	Cache            storage.Store
	Analytics        *analytics.Producer
}

func New(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		router: router,
		decider: &decider{
			policy: game.NewPolicy(game.AI, cfg.APIDepth),
			cache:  cfg.Cache,
		},
		analytics: cfg.Analytics,
		botDelay:  cfg.BotDelay,
	}
	s.sessions = session.NewManager(session.Depths{
		Interactive: cfg.InteractiveDepth,
		AvA:         cfg.AvADepth,
	}, cfg.ReconnectWindow, s.onFinish)

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	if len(cfg.CORSOrigins) > 0 {
		api.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	api.POST("/move", s.handleMove)
	api.OPTIONS("/move", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	router.GET("/games/:id", s.handleGame)
	router.GET("/ws", s.handleWS)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Sweep drops idle sessions until ctx is done.
func (s *Server) Sweep(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.sessions.SweepIdle(); n > 0 {
				log.Debug().Int("games", n).Msg("swept idle games")
			}
		}
	}
}

func (s *Server) onFinish(g session.GameState) {
	log.Info().
		Str("game", g.ID).
		Str("mode", string(g.Mode)).
		Str("status", g.Status).
		Str("winner", g.WinnerName()).
		Int("moves", g.Moves).
		Msg("game finished")
	s.analytics.Publish(context.Background(), analytics.EventGameFinished, analytics.GameFinished{
		GameID:   g.ID,
		Mode:     string(g.Mode),
		Winner:   g.WinnerName(),
		Moves:    g.Moves,
		Duration: g.EndedAt.Sub(g.StartedAt).Seconds(),
	})
}

func (s *Server) publishDecision(source, gameID string, dec game.Decision, cached bool) {
	s.analytics.Publish(context.Background(), analytics.EventMoveDecided, analytics.MoveDecided{
		Source:     source,
		GameID:     gameID,
		Difficulty: string(dec.Difficulty),
		Column:     dec.Column,
		Scores:     dec.Scores,
		Nodes:      dec.Nodes,
		ElapsedMs:  float64(dec.Elapsed.Microseconds()) / 1000,
		Cached:     cached,
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
