package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/sigfox-relay/pkg/models"
)

const cloudEventSpecVersion = "1.0"

// EventPublisher publishes CloudEvents to NATS JetStream.
type EventPublisher struct {
	js     jetstream.JetStream
	source string
}

// NewEventPublisher creates a publisher that stamps events with source.
func NewEventPublisher(js jetstream.JetStream, source string) *EventPublisher {
	return &EventPublisher{js: js, source: source}
}

// Publish wraps data in a CloudEvent and publishes it to subject.
func (p *EventPublisher) Publish(
	ctx context.Context, subject, eventType string, data interface{}) (*jetstream.PubAck, error) {
	now := time.Now().UTC()

	event := models.CloudEvent{
		SpecVersion:     cloudEventSpecVersion,
		ID:              uuid.New().String(),
		Source:          p.source,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &now,
		Data:            data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := p.js.Publish(ctx, subject, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to publish event to %s: %w", subject, err)
	}

	return ack, nil
}

// EnsureStream returns streamName, creating it or widening its subjects so
// that subject is captured.
func EnsureStream(ctx context.Context, js jetstream.JetStream, streamName, subject string) (jetstream.Stream, error) {
	stream, err := js.Stream(ctx, streamName)
	if err != nil {
		if !errors.Is(err, jetstream.ErrStreamNotFound) {
			return nil, fmt.Errorf("failed to get stream %s: %w", streamName, err)
		}

		stream, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: ensureSubjectList(nil, subject),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}

		return stream, nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}

	subjects := ensureSubjectList(append([]string(nil), info.Config.Subjects...), subject)
	if slices.Equal(subjects, info.Config.Subjects) {
		return stream, nil
	}

	cfg := info.Config
	cfg.Subjects = subjects

	stream, err = js.UpdateStream(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to add subject %s to stream %s: %w", subject, streamName, err)
	}

	return stream, nil
}

func ensureSubjectList(subjects []string, subject string) []string {
	if subject == "" {
		return subjects
	}

	for _, existing := range subjects {
		if matchesSubject(existing, subject) {
			return subjects
		}
	}

	// a stream may not hold overlapping subjects, so a wildcard replaces the ones it covers
	kept := make([]string, 0, len(subjects)+1)

	for _, existing := range subjects {
		if !matchesSubject(subject, existing) {
			kept = append(kept, existing)
		}
	}

	return append(kept, subject)
}

// matchesSubject reports whether pattern (which may use * and >) covers subject.
func matchesSubject(pattern, subject string) bool {
	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, tok := range pTokens {
		if tok == ">" {
			return len(sTokens) > i
		}

		if i >= len(sTokens) {
			return false
		}

		if tok != "*" && tok != sTokens[i] {
			return false
		}
	}

	return len(pTokens) == len(sTokens)
}
