package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	EventMoveDecided  = "move_decided"
	EventGameFinished = "game_finished"
)

// Event is the envelope written to the topic.
type Event struct {
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// MoveDecided is published once per engine decision.
type MoveDecided struct {
	Source     string      `json:"source"`
	GameID     string      `json:"gameId,omitempty"`
	Difficulty string      `json:"difficulty"`
	Column     int         `json:"column"`
	Scores     map[int]int `json:"scores"`
	Nodes      int         `json:"nodes"`
	ElapsedMs  float64     `json:"elapsedMs"`
	Cached     bool        `json:"cached"`
}

// GameFinished is published when an interactive game ends.
type GameFinished struct {
	GameID   string  `json:"gameId"`
	Mode     string  `json:"mode"`
	Winner   string  `json:"winner"`
	Moves    int     `json:"moves"`
	Duration float64 `json:"duration"`
}

type Producer struct {
	writer *kafka.Writer
}

// NewProducer returns nil when no brokers are configured; a nil Producer
// drops every event.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn().Err(err).Int("messages", len(messages)).Msg("kafka publish failed")
			}
		},
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, event string, payload any) {
	if p == nil || p.writer == nil {
		return
	}
	data, err := Encode(event, payload, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode analytics event")
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: data}); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("kafka publish failed")
	}
}

// Encode wraps payload in an Event envelope.
func Encode(event string, payload any, at time.Time) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Event: event, Payload: body, Timestamp: at})
}

func (p *Producer) Close() {
	if p == nil || p.writer == nil {
		return
	}
	_ = p.writer.Close()
}
