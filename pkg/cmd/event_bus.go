package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/paygrid/payflow/pkg/channels/gochannel"
	"github.com/paygrid/payflow/pkg/channels/kafka"
	"github.com/paygrid/payflow/pkg/eventbus"
)

// NewEventBus selects the notification channel: Kafka when brokers are
// configured, the in-process channel otherwise.
func NewEventBus(logger *slog.Logger, brokers []string, serviceName string) eventbus.EventBus {
	wmLogger := watermill.NewSlogLogger(logger)

	if len(brokers) > 0 {
		pub, sub, err := kafka.CreateChannel(wmLogger, brokers, serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	}

	pub, sub, err := gochannel.CreateChannel(wmLogger)
	if err != nil {
		panic(fmt.Errorf("failed to create in-process pub/sub: %w", err))
	}

	return eventbus.NewWatermillEventBus(pub, sub)
}
