package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"

	"connect4duel/internal/analytics"
	"connect4duel/internal/game"
	"connect4duel/internal/session"
	"connect4duel/internal/storage"
)

func newTestServer(cache storage.Store) *Server {
	return newTestServerWindow(cache, time.Minute)
}

func newTestServerWindow(cache storage.Store, window time.Duration) *Server {
	return New(Config{
		APIDepth:         3,
		InteractiveDepth: 2,
		AvADepth:         1,
		ReconnectWindow:  window,
		CORSOrigins:      []string{"http://localhost:3000"},
		Cache:            cache,
	})
}

func dialWS(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?"+query, nil)
	require.NoError(t, err)
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) stateMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg stateMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func playWS(t *testing.T, conn *websocket.Conn, col int) stateMessage {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "move", "column": col}))
	return readState(t, conn)
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func emptyGrid() [][]int {
	return game.Board{}.Grid()
}

type moveReply struct {
	Column int         `json:"column"`
	Scores map[int]int `json:"scores"`
	Error  string      `json:"error"`
}

func postMove(t *testing.T, s *Server, body any) (int, moveReply) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/move", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var reply moveReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply), rec.Body.String())
	return rec.Code, reply
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleMove(t *testing.T) {
	s := newTestServer(nil)

	t.Run("medium takes the center", func(t *testing.T) {
		code, reply := postMove(t, s, map[string]any{"board": emptyGrid(), "difficulty": "Medium"})
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, 3, reply.Column)
		require.Equal(t, map[int]int{3: 50}, reply.Scores)
	})

	t.Run("easy returns a legal column", func(t *testing.T) {
		code, reply := postMove(t, s, map[string]any{"board": emptyGrid(), "difficulty": "Easy"})
		require.Equal(t, http.StatusOK, code)
		require.GreaterOrEqual(t, reply.Column, 0)
		require.Less(t, reply.Column, game.Columns)
		require.Equal(t, map[int]int{reply.Column: 0}, reply.Scores)
	})

	t.Run("hard finds the win", func(t *testing.T) {
		grid := emptyGrid()
		grid[0] = []int{2, 2, 2, 0, 0, 0, 1}
		grid[1] = []int{1, 1, 0, 0, 0, 0, 0}
		code, reply := postMove(t, s, map[string]any{"board": grid, "difficulty": "Hard"})
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, 3, reply.Column)
		require.Equal(t, game.WinScore, reply.Scores[3])
		require.Len(t, reply.Scores, game.Columns)
	})

	t.Run("full board", func(t *testing.T) {
		grid := make([][]int, game.Rows)
		for r := range grid {
			grid[r] = []int{1, 1, 2, 2, 1, 1, 2}
		}
		grid[3] = []int{2, 2, 1, 1, 2, 2, 1}
		code, reply := postMove(t, s, map[string]any{"board": grid, "difficulty": "Hard"})
		require.Equal(t, http.StatusOK, code)
		require.Zero(t, reply.Column)
		require.Empty(t, reply.Scores)
	})

	bad := []struct {
		name string
		body any
	}{
		{"unknown difficulty", map[string]any{"board": emptyGrid(), "difficulty": "hard"}},
		{"missing difficulty", map[string]any{"board": emptyGrid()}},
		{"missing board", map[string]any{"difficulty": "Hard"}},
		{"wrong shape", map[string]any{"board": emptyGrid()[:4], "difficulty": "Hard"}},
		{"bad cell", map[string]any{"board": func() [][]int {
			g := emptyGrid()
			g[0][0] = 7
			return g
		}(), "difficulty": "Hard"}},
		{"not a grid", map[string]any{"board": "nope", "difficulty": "Hard"}},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			code, reply := postMove(t, s, tt.body)
			require.Equal(t, http.StatusBadRequest, code)
			require.NotEmpty(t, reply.Error)
		})
	}
}

func TestHandleMoveUsesCache(t *testing.T) {
	cache := storage.NewMemoryStore(16)
	s := newTestServer(cache)
	body := map[string]any{"board": emptyGrid(), "difficulty": "Hard"}

	code, first := postMove(t, s, body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, cache.Len())

	code, second := postMove(t, s, body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, first, second)
	require.Equal(t, 1, cache.Len())

	code, _ = postMove(t, s, map[string]any{"board": emptyGrid(), "difficulty": "Medium"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, cache.Len())
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/move", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	newTestServer(nil).Handler().ServeHTTP(rec, req)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandleGameNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/games/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebsocketPvA(t *testing.T) {
	s := newTestServer(nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "mode=PvA&difficulty=Medium")
	defer conn.Close()

	hello := readState(t, conn)
	require.Equal(t, "init", hello.Type)
	require.Equal(t, "PvA", hello.Mode)
	require.Equal(t, int(game.Human), hello.Turn)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, hello.Legal)

	afterHuman := playWS(t, conn, 0)
	require.Equal(t, int(game.Human), afterHuman.Board[0][0])
	require.Equal(t, int(game.AI), afterHuman.Turn)

	afterBot := readState(t, conn)
	require.NotNil(t, afterBot.AIChoice)
	require.Equal(t, game.Center, *afterBot.AIChoice)
	require.Equal(t, game.ScoreMap{game.Center: 50}, afterBot.Scores)
	require.Equal(t, int(game.AI), afterBot.Board[0][game.Center])
	require.Equal(t, int(game.Human), afterBot.Turn)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/games/"+hello.GameID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot stateMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.Equal(t, afterBot.Board, snapshot.Board)
}

func TestWebsocketRejoin(t *testing.T) {
	s := newTestServer(nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "mode=PvP")
	hello := readState(t, conn)
	moved := playWS(t, conn, 2)
	require.Equal(t, int(game.Human), moved.Board[0][2])
	require.NoError(t, conn.Close())

	again := dialWS(t, ts, "gameId="+hello.GameID)
	defer again.Close()
	rejoined := readState(t, again)
	require.Equal(t, "init", rejoined.Type)
	require.Equal(t, hello.GameID, rejoined.GameID)
	require.Equal(t, moved.Board, rejoined.Board)
	require.Equal(t, int(game.AI), rejoined.Turn)

	next := playWS(t, again, 2)
	require.Equal(t, int(game.AI), next.Board[1][2])
	require.Equal(t, int(game.Human), next.Turn)
}

func TestWebsocketConnectedGameSurvivesSweep(t *testing.T) {
	s := newTestServerWindow(nil, 0)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "mode=PvP")
	defer conn.Close()
	hello := readState(t, conn)

	time.Sleep(10 * time.Millisecond)
	require.Zero(t, s.sessions.SweepIdle())
	moved := playWS(t, conn, 4)
	require.Equal(t, "state", moved.Type)
	require.Equal(t, hello.GameID, moved.GameID)
	require.Equal(t, int(game.Human), moved.Board[0][4])
}

func TestWebsocketRejoinAfterSweep(t *testing.T) {
	s := newTestServerWindow(nil, 0)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "mode=PvP")
	hello := readState(t, conn)
	require.NoError(t, conn.Close())

	// Swept once the server has seen the disconnect.
	require.Eventually(t, func() bool { return s.sessions.SweepIdle() == 1 }, 5*time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?gameId="+hello.GameID, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebsocketFinishedGameRemovedOnClose(t *testing.T) {
	s := newTestServer(nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dialWS(t, ts, "mode=PvP")
	hello := readState(t, conn)
	var last stateMessage
	for _, col := range []int{0, 0, 1, 1, 2, 2, 3} {
		last = playWS(t, conn, col)
	}
	require.Equal(t, session.StatusFinished, last.Status)
	require.Equal(t, "player1", last.Winner)
	require.Equal(t, &game.WinLine{Start: game.Cell{Col: 0, Row: 0}, End: game.Cell{Col: 3, Row: 0}}, last.WinLine)
	require.Empty(t, last.Legal)

	_, err := s.sessions.Get(hello.GameID)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		_, err := s.sessions.Get(hello.GameID)
		return errors.Is(err, session.ErrGameNotFound)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSendJSONReportsDrops(t *testing.T) {
	buf := captureLog(t)
	c := &wsClient{send: make(chan []byte, 1), gameID: "g1"}

	require.True(t, c.sendJSON(map[string]any{"type": "state"}))
	require.False(t, c.sendJSON(map[string]any{"type": "state"}))
	require.Contains(t, buf.String(), "message dropped")
	require.Len(t, c.send, 1)

	<-c.send
	require.False(t, c.sendJSON(func() {}))
	require.Contains(t, buf.String(), "encode websocket message")
	require.Empty(t, c.send)

	c.closed.Store(true)
	require.False(t, c.sendJSON(map[string]any{"type": "state"}))
}

func TestSideToMove(t *testing.T) {
	grid := func(bottom ...int) [][]int {
		g := emptyGrid()
		copy(g[0], bottom)
		return g
	}
	tests := []struct {
		name string
		grid [][]int
		want game.Piece
		ok   bool
	}{
		{"empty board", emptyGrid(), game.Human, true},
		{"after human", grid(1), game.AI, true},
		{"after both", grid(1, 2), game.Human, true},
		{"ai ahead", grid(2), game.Empty, false},
		{"human two ahead", grid(1, 1), game.Empty, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := game.ParseGrid(tt.grid)
			require.NoError(t, err)
			got, ok := sideToMove(&b)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.ok, ok)
		})
	}
}

func TestHandleMoveLogsOffTurnRequests(t *testing.T) {
	buf := captureLog(t)
	s := newTestServer(nil)

	grid := emptyGrid()
	grid[0][0] = int(game.Human)
	code, _ := postMove(t, s, map[string]any{"board": grid, "difficulty": "Medium"})
	require.Equal(t, http.StatusOK, code)
	require.NotContains(t, buf.String(), "not to move")

	grid[0][1] = int(game.AI)
	code, reply := postMove(t, s, map[string]any{"board": grid, "difficulty": "Medium"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, game.Center, reply.Column)
	require.Contains(t, buf.String(), "not to move")
}

func TestHistogramMatchesBoardWidth(t *testing.T) {
	require.Len(t, analytics.Summary{}.Columns, game.Columns)
}

func TestWebsocketRejectsUnknownMode(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?mode=Solo", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
