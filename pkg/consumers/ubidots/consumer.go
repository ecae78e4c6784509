package ubidots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/sigfox-relay/pkg/logger"
)

const (
	defaultMaxPullMessages = 10
	defaultAckWait         = 30 * time.Second
	defaultMaxAckPending   = 1000
	fetchRetryDelay        = time.Second
)

type Consumer struct {
	js           jetstream.JetStream
	streamName   string
	consumerName string
	consumer     jetstream.Consumer
	pullExpiry   time.Duration
	maxDeliver   int
	logger       logger.Logger
}

func NewConsumer(ctx context.Context, js jetstream.JetStream, cfg *RelayConsumerConfig, log logger.Logger) (*Consumer, error) {
	log.Info().
		Str("stream", cfg.StreamName).
		Str("consumer", cfg.ConsumerName).
		Msg("Creating/getting pull consumer")

	consumer, err := js.Consumer(ctx, cfg.StreamName, cfg.ConsumerName)
	if err != nil {
		consumerCfg := jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       defaultAckWait,
			MaxDeliver:    cfg.MaxDeliver,
			MaxAckPending: defaultMaxAckPending,
		}

		if cfg.Subject != "" {
			consumerCfg.FilterSubject = cfg.Subject
		}

		consumer, err = js.CreateConsumer(ctx, cfg.StreamName, consumerCfg)
		if err != nil {
			log.Error().Err(err).
				Str("stream", cfg.StreamName).
				Str("consumer", cfg.ConsumerName).
				Msg("Failed to create consumer")

			return nil, fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	return &Consumer{
		js:           js,
		streamName:   cfg.StreamName,
		consumerName: cfg.ConsumerName,
		consumer:     consumer,
		pullExpiry:   time.Duration(cfg.FetchMaxWait),
		maxDeliver:   cfg.MaxDeliver,
		logger:       log,
	}, nil
}

func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg, processor *Processor) {
	var delivered uint64 = 1

	if metadata, err := msg.Metadata(); err == nil {
		delivered = metadata.NumDelivered

		c.logger.Debug().
			Str("subject", msg.Subject()).
			Uint64("seq", metadata.Sequence.Stream).
			Uint64("tries", metadata.NumDelivered).
			Msg("Processing message")
	}

	err := processor.Process(ctx, msg)

	switch {
	case err == nil:
		c.ack(msg)
	case errors.Is(err, ErrMalformedMessage):
		c.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("Dropping malformed message")
		c.ack(msg)
	case delivered >= uint64(c.maxDeliver):
		c.logger.Error().Err(err).Uint64("tries", delivered).Msg("Max retries reached, acknowledging message")
		c.ack(msg)
	default:
		c.logger.Warn().Err(err).Uint64("tries", delivered).Msg("Failed to process message")

		if nakErr := msg.Nak(); nakErr != nil {
			c.logger.Error().Err(nakErr).Msg("Failed to nak message")
		}
	}
}

func (c *Consumer) ack(msg jetstream.Msg) {
	if err := msg.Ack(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to ack message")
	}
}

func (c *Consumer) ProcessMessages(ctx context.Context, processor *Processor) {
	c.logger.Info().
		Str("stream", c.streamName).
		Str("consumer", c.consumerName).
		Msg("Starting pull consumer")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Stopping message processing due to context cancellation")
			return
		default:
			msgs, err := c.consumer.Fetch(defaultMaxPullMessages, jetstream.FetchMaxWait(c.pullExpiry))
			if err != nil {
				c.logger.Warn().Err(err).Msg("Failed to fetch messages")

				select {
				case <-ctx.Done():
				case <-time.After(fetchRetryDelay):
				}

				continue
			}

			for msg := range msgs.Messages() {
				c.handleMessage(ctx, msg, processor)
			}

			if fetchErr := msgs.Error(); fetchErr != nil && !errors.Is(fetchErr, context.Canceled) {
				c.logger.Debug().Err(fetchErr).Msg("Fetch error")
			}
		}
	}
}
