package events_fx

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"storefront/internal/config"
	"storefront/internal/events"
	"storefront/internal/services"
)

var Module = fx.Options(
	fx.Provide(provideBus, providePublisher),
	fx.Invoke(registerNotifications),
)

func provideBus(lc fx.Lifecycle, cfg config.Config, logger *slog.Logger) *events.Bus {
	log := logger.With("component", "events")

	var mirror events.Mirror
	var kafkaMirror *events.KafkaMirror
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaMirror = events.NewKafkaMirror(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		mirror = kafkaMirror
		log.Info("mirroring order events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.TopicEvents)
	}

	bus := events.NewBus(cfg.Events.Buffer, log, mirror)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			bus.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := bus.Stop(ctx)
			if kafkaMirror != nil {
				if cerr := kafkaMirror.Close(); cerr != nil {
					log.Warn("close kafka writer", "error", cerr.Error())
				}
			}
			return err
		},
	})
	return bus
}

func providePublisher(bus *events.Bus) events.Publisher {
	return bus
}

func registerNotifications(bus *events.Bus, dispatcher *services.NotificationDispatcher) {
	dispatcher.Register(bus)
}
