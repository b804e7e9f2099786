package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"connect4duel/internal/analytics"
	"connect4duel/internal/config"
	"connect4duel/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	brokers := cfg.KafkaBrokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   cfg.KafkaTopic,
		GroupID: "analytics-consumer",
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("analytics consumer listening")

	metrics := analytics.NewMetrics()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.Log(log.Logger)
			}
		}
	}()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				metrics.Log(log.Logger)
				return
			}
			log.Fatal().Err(err).Msg("read message")
		}
		e, err := metrics.Record(msg.Value)
		if err != nil {
			log.Warn().Err(err).Msg("skipping event")
			continue
		}
		log.Debug().Str("event", e.Event).RawJSON("payload", e.Payload).Msg("event")
	}
}
