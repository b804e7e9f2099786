package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr            string
	BotDelay        time.Duration
	ReconnectWindow time.Duration

	// Hard tier search depths. The API favours latency, the interactive
	// seats favour strength; AvA's second seat is weaker on purpose.
	APIDepth         int
	InteractiveDepth int
	AvADepth         int

	PostgresURL string
	SQLitePath  string
	CacheSize   int

	KafkaBrokers []string
	KafkaTopic   string

	CORSOrigins []string

	LogLevel  string
	LogPretty bool
}

// Load reads configuration from the environment. PORT wins over ADDR so the
// server runs unchanged on hosts that inject a port.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ADDR", ":8080")
	v.SetDefault("BOT_DELAY", 1)
	v.SetDefault("RECONNECT_WINDOW", 30)
	v.SetDefault("API_DEPTH", 3)
	v.SetDefault("INTERACTIVE_DEPTH", 4)
	v.SetDefault("AVA_DEPTH", 2)
	v.SetDefault("CACHE_SIZE", 4096)
	v.SetDefault("KAFKA_TOPIC", "game-events")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)

	cfg := Config{
		Addr:             v.GetString("ADDR"),
		BotDelay:         seconds(v, "BOT_DELAY"),
		ReconnectWindow:  seconds(v, "RECONNECT_WINDOW"),
		APIDepth:         v.GetInt("API_DEPTH"),
		InteractiveDepth: v.GetInt("INTERACTIVE_DEPTH"),
		AvADepth:         v.GetInt("AVA_DEPTH"),
		PostgresURL:      v.GetString("POSTGRES_URL"),
		SQLitePath:       v.GetString("SQLITE_PATH"),
		CacheSize:        v.GetInt("CACHE_SIZE"),
		KafkaBrokers:     list(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:       v.GetString("KAFKA_TOPIC"),
		CORSOrigins:      list(v.GetString("CORS_ORIGINS")),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogPretty:        v.GetBool("LOG_PRETTY"),
	}
	if port := v.GetString("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	for name, depth := range map[string]int{
		"API_DEPTH":         c.APIDepth,
		"INTERACTIVE_DEPTH": c.InteractiveDepth,
		"AVA_DEPTH":         c.AvADepth,
	} {
		if depth < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, depth)
		}
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("CACHE_SIZE must not be negative, got %d", c.CacheSize)
	}
	return nil
}

// seconds reads an integer number of seconds.
func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

func list(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
