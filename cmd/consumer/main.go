// Command consumer lê os eventos de Example dos Redis Streams, num processo
// separado da API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"service-template/cache"
	"service-template/config"
	"service-template/example/application"
	"service-template/example/domain"
	"service-template/example/infra"
	"service-template/logging"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_FILE"), "YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config_invalid")
	}
	log := logging.Setup(cfg.Log.Level, cfg.Log.JSON || cfg.IsProduction(), os.Stdout).
		With().Str("app", cfg.App.Name).Str("component", "consumer").Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	connCtx, connCancel := context.WithTimeout(ctx, 15*time.Second)
	rdb, err := cache.Connect(connCtx, cfg.Redis, log)
	connCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("startup_failed")
	}
	defer func() { _ = rdb.Close() }()

	consumer := infra.NewStreamConsumer(rdb, infra.ConsumerOptions{
		Group:        cfg.Events.ConsumerGroup,
		Consumer:     consumerName(cfg.Events.ConsumerName),
		Block:        cfg.Events.Block,
		MaxPerSecond: cfg.Events.MaxPerSecond,
		MaxAttempts:  cfg.Events.MaxAttempts,
	}, log)

	c := cache.New(rdb, cfg.Cache.KeyPrefix, cfg.Cache.TTL)
	for _, topic := range cfg.Events.Topics {
		consumer.Register(topic, exampleEventHandler(c, log))
	}

	if err := consumer.Run(ctx, cfg.Events.Topics); err != nil {
		log.Fatal().Err(err).Msg("consumer_failed")
	}
}

// exampleEventHandler registra o evento e descarta a entrada de cache do
// Example alterado, para que outras instâncias da API não sirvam dado velho.
func exampleEventHandler(c *cache.Cache, log zerolog.Logger) infra.Handler {
	return func(ctx context.Context, ev domain.Event) error {
		log.Info().
			Str("event_id", ev.ID.String()).
			Str("event_type", ev.Type).
			Str("example_id", ev.ExampleID.String()).
			Msg("event_received")

		switch ev.Type {
		case domain.EventExampleUpdated, domain.EventExampleDeleted:
			if ev.ExampleID == uuid.Nil {
				return nil
			}
			return c.Delete(ctx, application.CacheKey(ev.ExampleID))
		}
		return nil
	}
}

func consumerName(configured string) string {
	if configured != "" {
		return configured
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "consumer"
}
