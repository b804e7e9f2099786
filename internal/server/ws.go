package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"connect4duel/internal/game"
	"connect4duel/internal/session"
)

type stateMessage struct {
	Type       string        `json:"type"`
	GameID     string        `json:"gameId"`
	Mode       string        `json:"mode"`
	Difficulty string        `json:"difficulty,omitempty"`
	Board      [][]int       `json:"board"`
	Turn       int           `json:"turn"`
	Status     string        `json:"status"`
	Winner     string        `json:"winner"`
	WinLine    *game.WinLine `json:"winLine,omitempty"`
	AIChoice   *int          `json:"aiChoice,omitempty"`
	Scores     game.ScoreMap `json:"scores,omitempty"`
	Legal      []int         `json:"legal"`
}

func newStateMessage(g session.GameState) stateMessage {
	msg := stateMessage{
		Type:       "state",
		GameID:     g.ID,
		Mode:       string(g.Mode),
		Difficulty: string(g.Difficulty),
		Board:      g.Board.Grid(),
		Turn:       int(g.Turn),
		Status:     g.Status,
		Winner:     g.WinnerName(),
		WinLine:    g.WinLine,
		Legal:      g.Board.LegalColumns(),
	}
	if g.Status != session.StatusActive {
		msg.Legal = []int{}
	}
	if d := g.LastDecision; d != nil {
		col := d.Column
		msg.AIChoice = &col
		msg.Scores = d.Scores
	}
	return msg
}

type clientMessage struct {
	Type   string `json:"type"`
	Column *int   `json:"column"`
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	server *Server
	gameID string
	closed atomic.Bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS opens an interactive game, or rejoins one when gameId is given.
func (s *Server) handleWS(c *gin.Context) {
	var (
		g   session.GameState
		err error
	)
	id := c.Query("gameId")
	if id == "" {
		var mode session.Mode
		mode, err = session.ParseMode(c.DefaultQuery("mode", string(session.PvA)))
		if err == nil {
			g, err = s.sessions.Start(mode, game.Difficulty(c.DefaultQuery("difficulty", string(game.Hard))))
			id = g.ID
		}
	}
	if err == nil {
		g, err = s.sessions.Attach(id)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.sessions.Detach(g.ID)
		return
	}
	client := &wsClient{
		conn:   conn,
		send:   make(chan []byte, 16),
		done:   make(chan struct{}),
		server: s,
		gameID: g.ID,
	}
	log.Info().Str("game", g.ID).Str("mode", string(g.Mode)).Msg("client connected")

	go client.writePump()
	first := newStateMessage(g)
	first.Type = "init"
	client.sendJSON(first)
	if g.IsBotTurn() {
		s.scheduleBot(client)
	}
	go client.readPump()
}

func (c *wsClient) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("game", c.gameID).Msg("websocket write failed")
			}
		}
	}
}

func (c *wsClient) readPump() {
	defer c.close()
	s := c.server
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("malformed message")
			continue
		}
		if msg.Type != "move" || msg.Column == nil {
			c.sendError("expected {\"type\":\"move\",\"column\":n}")
			continue
		}
		g, err := s.sessions.Move(c.gameID, *msg.Column)
		if err != nil {
			c.sendError(err.Error())
			continue
		}
		c.sendJSON(newStateMessage(g))
		if g.IsBotTurn() {
			s.scheduleBot(c)
		}
	}
}

// scheduleBot plays the computer seat after the configured delay and keeps
// going while computer seats are to move (AvA).
func (s *Server) scheduleBot(c *wsClient) {
	time.AfterFunc(s.botDelay, func() {
		if c.closed.Load() {
			return
		}
		g, moved, err := s.sessions.Advance(c.gameID)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		if !moved {
			return
		}
		if d := g.LastDecision; d != nil {
			log.Info().
				Str("game", g.ID).
				Str("difficulty", string(d.Difficulty)).
				Int("column", d.Column).
				Int("nodes", d.Nodes).
				Dur("elapsed", d.Elapsed).
				Msg("bot moved")
			s.publishDecision("ws", g.ID, *d, false)
		}
		c.sendJSON(newStateMessage(g))
		if g.IsBotTurn() {
			s.scheduleBot(c)
		}
	})
}

func (c *wsClient) close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.done)
	c.conn.Close()
	if _, err := c.server.sessions.Detach(c.gameID); err != nil {
		log.Debug().Err(err).Str("game", c.gameID).Msg("detach after sweep")
	}
	log.Info().Str("game", c.gameID).Msg("client disconnected")
}

func (c *wsClient) sendError(message string) {
	c.sendJSON(map[string]any{"type": "error", "message": message})
}

// sendJSON queues v for the write pump and reports whether it was queued.
// A full buffer drops the message.
func (c *wsClient) sendJSON(v any) bool {
	if c.closed.Load() {
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("game", c.gameID).Msg("encode websocket message")
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Debug().Str("game", c.gameID).Int("buffered", len(c.send)).Msg("websocket send buffer full, message dropped")
		return false
	}
}
