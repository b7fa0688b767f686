package infra

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"service-template/example/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Handler func(ctx context.Context, ev domain.Event) error

type ConsumerOptions struct {
	Group    string
	Consumer string
	// Block: tempo de espera do XREADGROUP. 0 usa 5s; negativo não bloqueia.
	Block time.Duration
	// Count: máximo de mensagens por leitura (padrão 100).
	Count int64
	// MaxPerSecond limita a taxa de chamadas aos handlers (0 = sem limite).
	MaxPerSecond float64
	// MaxAttempts: falhas do handler antes de descartar a mensagem (padrão 5).
	MaxAttempts int
}

// StreamConsumer lê tópicos (streams) via consumer group.
//
// Mensagem processada com sucesso recebe XACK. Erro no handler deixa a
// mensagem na lista de pendentes do consumer, relida no início de cada Poll;
// depois de MaxAttempts falhas ela é logada como message_dropped e confirmada.
// Tópico sem handler e mensagem ilegível são logados e confirmados.
type StreamConsumer struct {
	rdb  *redis.Client
	opts ConsumerOptions
	log  zerolog.Logger

	limiter *rate.Limiter

	mu       sync.RWMutex
	handlers map[string]Handler

	// falhas por "<topic>/<id>", só deste processo
	attempts map[string]int
}

func NewStreamConsumer(rdb *redis.Client, opts ConsumerOptions, log zerolog.Logger) *StreamConsumer {
	if opts.Block == 0 {
		opts.Block = 5 * time.Second
	}
	if opts.Count <= 0 {
		opts.Count = 100
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}

	c := &StreamConsumer{
		rdb:      rdb,
		opts:     opts,
		log:      log,
		handlers: make(map[string]Handler),
		attempts: make(map[string]int),
	}
	if opts.MaxPerSecond > 0 {
		burst := int(opts.MaxPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.MaxPerSecond), burst)
	}
	return c
}

func (c *StreamConsumer) Register(topic string, h Handler) {
	c.mu.Lock()
	c.handlers[topic] = h
	c.mu.Unlock()
	c.log.Info().Str("topic", topic).Msg("handler_registered")
}

func (c *StreamConsumer) handler(topic string) (Handler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[topic]
	return h, ok
}

// Start cria o consumer group em cada tópico (e o stream, se faltar).
// Grupo já existente não é erro.
func (c *StreamConsumer) Start(ctx context.Context, topics []string) error {
	for _, topic := range topics {
		err := c.rdb.XGroupCreateMkStream(ctx, topic, c.opts.Group, "0").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			c.log.Error().Err(err).Str("topic", topic).Msg("consumer_start_failed")
			return err
		}
	}
	c.log.Info().
		Strs("topics", topics).
		Str("group", c.opts.Group).
		Str("consumer", c.opts.Consumer).
		Msg("consumer_started")
	return nil
}

// Poll relê as mensagens pendentes deste consumer (entregues antes e não
// confirmadas) e depois lê as novas. Retorna quantas mensagens foram tratadas.
func (c *StreamConsumer) Poll(ctx context.Context, topics []string) (int, error) {
	pending, err := c.read(ctx, topics, "0", -1)
	if err != nil {
		return 0, err
	}
	n, err := c.processAll(ctx, pending)
	if err != nil {
		return n, err
	}

	fresh, err := c.read(ctx, topics, ">", c.opts.Block)
	if err != nil {
		return n, err
	}
	m, err := c.processAll(ctx, fresh)
	return n + m, err
}

// read com id "0" devolve o histórico pendente do consumer; com ">" só
// mensagens nunca entregues ao grupo.
func (c *StreamConsumer) read(ctx context.Context, topics []string, id string, block time.Duration) ([]redis.XStream, error) {
	streams := make([]string, 0, len(topics)*2)
	streams = append(streams, topics...)
	for range topics {
		streams = append(streams, id)
	}

	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.opts.Group,
		Consumer: c.opts.Consumer,
		Streams:  streams,
		Count:    c.opts.Count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return res, err
}

// processAll trata o lote inteiro. Só para antes do fim se o ctx terminar; o
// que sobrar continua pendente e volta no próximo Poll.
func (c *StreamConsumer) processAll(ctx context.Context, res []redis.XStream) (int, error) {
	n := 0
	for _, stream := range res {
		for _, msg := range stream.Messages {
			if ctx.Err() != nil {
				return n, ctx.Err()
			}
			if err := c.process(ctx, stream.Stream, msg); err != nil {
				if ctx.Err() != nil {
					return n, ctx.Err()
				}
				c.log.Error().Err(err).
					Str("topic", stream.Stream).
					Str("message_id", msg.ID).
					Msg("message_ack_failed")
			}
			n++
		}
	}
	return n, nil
}

// Run consome até o ctx terminar. Erros de leitura são logados e a leitura é
// retomada após uma pausa.
func (c *StreamConsumer) Run(ctx context.Context, topics []string) error {
	if err := c.Start(ctx, topics); err != nil {
		return err
	}
	c.log.Info().Msg("consumer_consuming")

	for {
		if ctx.Err() != nil {
			c.log.Info().Msg("consumer_stopped")
			return nil
		}
		if _, err := c.Poll(ctx, topics); err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.log.Error().Err(err).Msg("consumer_error")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *StreamConsumer) process(ctx context.Context, topic string, msg redis.XMessage) error {
	log := c.log.With().Str("topic", topic).Str("message_id", msg.ID).Logger()

	h, ok := c.handler(topic)
	if !ok {
		log.Warn().Msg("no_handler_for_topic")
		return c.ack(ctx, topic, msg.ID)
	}

	ev, err := DecodeEvent(msg)
	if err != nil {
		log.Error().Err(err).Msg("event_decode_failed")
		return c.ack(ctx, topic, msg.ID)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if err := h(ctx, ev); err != nil {
		attempt := c.failed(topic, msg.ID)
		if attempt >= c.opts.MaxAttempts {
			log.Error().Err(err).Str("event_type", ev.Type).Int("attempts", attempt).Msg("message_dropped")
			c.forget(topic, msg.ID)
			return c.ack(ctx, topic, msg.ID)
		}
		log.Error().Err(err).Str("event_type", ev.Type).Int("attempt", attempt).Msg("message_processing_failed")
		return nil
	}

	c.forget(topic, msg.ID)
	log.Debug().Str("event_type", ev.Type).Msg("message_processed")
	return c.ack(ctx, topic, msg.ID)
}

func (c *StreamConsumer) failed(topic, id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[topic+"/"+id]++
	return c.attempts[topic+"/"+id]
}

func (c *StreamConsumer) forget(topic, id string) {
	c.mu.Lock()
	delete(c.attempts, topic+"/"+id)
	c.mu.Unlock()
}

func (c *StreamConsumer) ack(ctx context.Context, topic, id string) error {
	return c.rdb.XAck(ctx, topic, c.opts.Group, id).Err()
}
