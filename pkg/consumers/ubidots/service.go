package ubidots

import (
	"context"
	"errors"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/sigfox-relay/pkg/lifecycle"
	"github.com/carverauto/sigfox-relay/pkg/logger"
	"github.com/carverauto/sigfox-relay/pkg/natsutil"
	"github.com/carverauto/sigfox-relay/pkg/relay"
)

const connectionName = "sigfox-relay-ubidots"

var errMissingRelay = errors.New("relay is required")

// Service consumes Sigfox messages from JetStream and relays them to Ubidots.
type Service struct {
	cfg       *RelayConsumerConfig
	relay     *relay.Relay
	logger    logger.Logger
	nc        *nats.Conn
	js        jetstream.JetStream
	consumer  *Consumer
	processor *Processor
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewService(cfg *RelayConsumerConfig, r *relay.Relay, log logger.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if r == nil {
		return nil, errMissingRelay
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Service{cfg: cfg, relay: r, logger: log}, nil
}

func (s *Service) Start(ctx context.Context) error {
	nc, err := natsutil.Connect(&natsutil.ConnectConfig{
		URL:          s.cfg.NATSURL,
		Name:         connectionName,
		Security:     s.cfg.Security,
		NKeySeedFile: s.cfg.NKeySeedFile,
		CredsFile:    s.cfg.CredsFile,
	}, s.logger)
	if err != nil {
		return err
	}

	s.nc = nc

	js, err := natsutil.JetStream(nc, s.cfg.Domain)
	if err != nil {
		nc.Close()
		return err
	}

	s.js = js

	// the stream captures both the trigger subject and every next-route subject
	for _, subject := range []string{s.cfg.Subject, s.cfg.DispatchSubjects()} {
		if _, err = natsutil.EnsureStream(ctx, js, s.cfg.StreamName, subject); err != nil {
			nc.Close()
			return err
		}
	}

	s.consumer, err = NewConsumer(ctx, js, s.cfg, s.logger)
	if err != nil {
		nc.Close()
		return err
	}

	s.processor = NewProcessor(s.relay, natsutil.NewEventPublisher(js, EventSource), s.cfg.RoutePrefix, s.logger)

	if s.cfg.WarmStart {
		if err := s.relay.Bootstrap(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Warm start bootstrap failed, retrying on first message")
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.consumer.ProcessMessages(runCtx, s.processor)
	}()

	s.logger.Info().
		Str("stream", s.cfg.StreamName).
		Str("consumer", s.cfg.ConsumerName).
		Str("subject", s.cfg.Subject).
		Str("relay_state", s.relay.State().String()).
		Msg("Ubidots relay consumer started")

	return nil
}

func (s *Service) Stop(_ context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	// closing the connection unblocks an in-flight fetch
	if s.nc != nil {
		s.nc.Close()
	}

	s.wg.Wait()

	s.logger.Info().Msg("Ubidots relay consumer stopped")

	return nil
}

var _ lifecycle.Service = (*Service)(nil)
