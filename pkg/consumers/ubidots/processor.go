package ubidots

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/sigfox-relay/pkg/logger"
	"github.com/carverauto/sigfox-relay/pkg/models"
)

//go:generate mockgen -destination=mock_processor.go -package=ubidots github.com/carverauto/sigfox-relay/pkg/consumers/ubidots Tasker,Dispatcher

const (
	// FunctionName identifies this stage in a message's route and history.
	FunctionName     = "sendToUbidots"
	MessageEventType = "com.carverauto.sigfox.message"
	EventSource      = "sigfox-relay/" + FunctionName
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrTaskFailed       = errors.New("relay task failed")
	ErrDispatch         = errors.New("failed to dispatch message")
)

// Tasker runs the relay task for one decoded message.
type Tasker interface {
	Task(ctx context.Context, deviceID string, body models.Body, msg *models.Message) (*models.Message, error)
}

// Dispatcher forwards a message to the next stage of its route.
type Dispatcher interface {
	Publish(ctx context.Context, subject, eventType string, data interface{}) (*jetstream.PubAck, error)
}

type Processor struct {
	task        Tasker
	dispatcher  Dispatcher
	routePrefix string
	logger      logger.Logger
	now         func() time.Time
}

func NewProcessor(task Tasker, dispatcher Dispatcher, routePrefix string, log logger.Logger) *Processor {
	return &Processor{
		task:        task,
		dispatcher:  dispatcher,
		routePrefix: routePrefix,
		logger:      log,
		now:         time.Now,
	}
}

func (p *Processor) Process(ctx context.Context, msg jetstream.Msg) error {
	return p.ProcessData(ctx, msg.Data())
}

// ProcessData decodes one raw message, runs the task and dispatches the result
// to the next route stage. Undecodable input is reported as ErrMalformedMessage.
func (p *Processor) ProcessData(ctx context.Context, data []byte) error {
	msg, err := decode(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	deviceID, err := msg.DeviceID()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	start := p.now()

	updated, err := p.task.Task(ctx, deviceID, msg.Body, msg)
	if err != nil {
		return fmt.Errorf("%w for device %s: %w", ErrTaskFailed, deviceID, err)
	}

	end := p.now()

	updated.History = append(updated.History, models.HistoryEntry{
		Function:  FunctionName,
		Timestamp: start.UnixMilli(),
		End:       end.UnixMilli(),
		Duration:  end.Sub(start).Seconds(),
	})

	next, ok := updated.NextRoute()
	if !ok {
		p.logger.Debug().Str("device_id", deviceID).Msg("Route complete, nothing to dispatch")

		return nil
	}

	subject := p.routePrefix + next

	if _, err := p.dispatcher.Publish(ctx, subject, MessageEventType, updated); err != nil {
		return fmt.Errorf("%w to %s: %w", ErrDispatch, subject, err)
	}

	p.logger.Debug().
		Str("device_id", deviceID).
		Str("subject", subject).
		Msg("Dispatched message to next route")

	return nil
}

// decode accepts either a bare message or one wrapped in a CloudEvent envelope.
func decode(data []byte) (*models.Message, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, models.ErrEmptyMessage
	}

	var envelope struct {
		SpecVersion string          `json:"specversion"`
		Data        json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	if envelope.SpecVersion != "" && len(envelope.Data) > 0 {
		data = envelope.Data
	}

	return models.DecodeMessage(data)
}
