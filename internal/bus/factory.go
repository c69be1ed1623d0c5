package bus

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Config selects and configures a bus implementation.
type Config struct {
	Driver        string // "memory" (default) or "kafka"
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// New creates the bus selected by cfg.Driver.
func New(cfg Config, logger *zap.Logger) (Bus, error) {
	switch strings.ToLower(cfg.Driver) {
	case "memory", "":
		return NewMemoryBus(logger), nil
	case "kafka":
		group := cfg.ConsumerGroup
		if group == "" {
			group = "elasticpress"
		}
		return NewKafkaBus(KafkaConfig{
			Brokers:       cfg.Brokers,
			Topic:         cfg.Topic,
			ConsumerGroup: group,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown bus driver: %s", cfg.Driver)
	}
}
