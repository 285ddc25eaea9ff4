package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type HTTP struct {
	Addr string
}

type Kafka struct {
	Brokers       []string
	OrdersTopic   string
	TradesTopic   string
	BBOTopic      string
	ConsumerGroup string
}

type Outbox struct {
	Dir           string
	DrainInterval time.Duration
}

type Config struct {
	HTTP   HTTP
	Kafka  Kafka
	Outbox Outbox
}

func Default() Config {
	return Config{
		HTTP: HTTP{Addr: ":8080"},
		Kafka: Kafka{
			Brokers:       []string{"localhost:9092"},
			OrdersTopic:   "orders",
			TradesTopic:   "trade_events",
			BBOTopic:      "bbo_updates",
			ConsumerGroup: "helix-engine",
		},
		Outbox: Outbox{
			Dir:           "./data/outbox",
			DrainInterval: 250 * time.Millisecond,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if topic := os.Getenv("KAFKA_ORDERS_TOPIC"); topic != "" {
		cfg.Kafka.OrdersTopic = topic
	}
	if topic := os.Getenv("KAFKA_TRADES_TOPIC"); topic != "" {
		cfg.Kafka.TradesTopic = topic
	}
	if topic := os.Getenv("KAFKA_BBO_TOPIC"); topic != "" {
		cfg.Kafka.BBOTopic = topic
	}
	if group := os.Getenv("KAFKA_CONSUMER_GROUP"); group != "" {
		cfg.Kafka.ConsumerGroup = group
	}
	if dir := os.Getenv("OUTBOX_DIR"); dir != "" {
		cfg.Outbox.Dir = dir
	}
	if iv := os.Getenv("OUTBOX_DRAIN_INTERVAL"); iv != "" {
		if dur, err := time.ParseDuration(iv); err == nil {
			cfg.Outbox.DrainInterval = dur
		}
	}

	return cfg
}
