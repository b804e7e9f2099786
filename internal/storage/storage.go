package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"strconv"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"

	"connect4duel/internal/game"
)

// Entry is a cached Hard-tier decision.
type Entry struct {
	Column int         `json:"column"`
	Scores map[int]int `json:"scores"`
}

// Store caches search results keyed by Key. Searches are deterministic for a
// board, side and depth, so entries never go stale.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, e Entry) error
	Close() error
}

// Key identifies a search: the cells, the searching side and the depth.
func Key(b game.Board, self game.Piece, depth int) string {
	buf := make([]byte, 0, game.Rows*game.Columns+1+binary.MaxVarintLen64)
	for row := 0; row < game.Rows; row++ {
		for col := 0; col < game.Columns; col++ {
			buf = append(buf, byte(b[row][col]))
		}
	}
	buf = append(buf, byte(self))
	buf = binary.AppendUvarint(buf, uint64(depth))
	return strconv.FormatUint(xxhash.Sum64(buf), 16)
}

// Tiered serves reads from a fast store and falls through to a slower one,
// filling the fast store on a hit below.
type Tiered struct {
	Fast Store
	Slow Store
}

func (t *Tiered) Get(ctx context.Context, key string) (Entry, bool, error) {
	e, ok, err := t.Fast.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("fast cache read failed")
	} else if ok {
		return e, true, nil
	}
	e, ok, err = t.Slow.Get(ctx, key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	if err := t.Fast.Put(ctx, key, e); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache backfill failed")
	}
	return e, true, nil
}

func (t *Tiered) Put(ctx context.Context, key string, e Entry) error {
	return errors.Join(t.Fast.Put(ctx, key, e), t.Slow.Put(ctx, key, e))
}

func (t *Tiered) Close() error {
	return errors.Join(t.Fast.Close(), t.Slow.Close())
}

func cloneScores(m map[int]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
