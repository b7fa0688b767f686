package infra

import (
	"context"
	"fmt"
	"time"

	"service-template/example/application"
	"service-template/example/domain"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Campos de cada entrada no stream.
const (
	fieldEventID   = "event_id"
	fieldEventType = "event_type"
	fieldTimestamp = "timestamp"
	fieldPayload   = "payload"
)

// StreamPublisher publica eventos em Redis Streams: cada tópico é um stream.
type StreamPublisher struct {
	rdb    *redis.Client
	maxLen int64
}

// NewStreamPublisher: maxLen > 0 corta o stream (aproximado) a cada XADD.
func NewStreamPublisher(rdb *redis.Client, maxLen int64) *StreamPublisher {
	return &StreamPublisher{rdb: rdb, maxLen: maxLen}
}

func (p *StreamPublisher) xaddArgs(ev domain.Event, topic string) (*redis.XAddArgs, error) {
	payload, err := sonic.MarshalString(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: topic,
		ID:     "*",
		Values: []any{
			fieldEventID, ev.ID.String(),
			fieldEventType, ev.Type,
			fieldTimestamp, ev.Timestamp.UTC().Format(time.RFC3339Nano),
			fieldPayload, payload,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	return args, nil
}

func (p *StreamPublisher) Publish(ctx context.Context, ev domain.Event, topic string) error {
	args, err := p.xaddArgs(ev, topic)
	if err != nil {
		return err
	}
	if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", topic, err)
	}
	return nil
}

// PublishBatch envia todos os eventos num único pipeline.
func (p *StreamPublisher) PublishBatch(ctx context.Context, batch []application.TopicEvent) error {
	if len(batch) == 0 {
		return nil
	}
	pipe := p.rdb.Pipeline()
	for _, te := range batch {
		args, err := p.xaddArgs(te.Event, te.Topic)
		if err != nil {
			return err
		}
		pipe.XAdd(ctx, args)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd batch: %w", err)
	}
	return nil
}

// DecodeEvent reconstrói o evento a partir de uma entrada do stream.
func DecodeEvent(msg redis.XMessage) (domain.Event, error) {
	str := func(k string) string {
		s, _ := msg.Values[k].(string)
		return s
	}

	id, err := uuid.Parse(str(fieldEventID))
	if err != nil {
		return domain.Event{}, fmt.Errorf("message %s: event_id: %w", msg.ID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, str(fieldTimestamp))
	if err != nil {
		return domain.Event{}, fmt.Errorf("message %s: timestamp: %w", msg.ID, err)
	}
	payload := map[string]string{}
	if raw := str(fieldPayload); raw != "" {
		if err := sonic.UnmarshalString(raw, &payload); err != nil {
			return domain.Event{}, fmt.Errorf("message %s: payload: %w", msg.ID, err)
		}
	}

	ev := domain.Event{
		ID:        id,
		Type:      str(fieldEventType),
		Timestamp: ts,
		Payload:   payload,
	}
	if exampleID, err := uuid.Parse(payload["example_id"]); err == nil {
		ev.ExampleID = exampleID
	}
	return ev, nil
}
