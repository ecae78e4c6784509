package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/carverauto/sigfox-relay/pkg/models"
	"github.com/carverauto/sigfox-relay/pkg/ubidots"
)

const (
	timestampField = "timestamp"
	// numeric timestamps below this are taken to be seconds
	millisThreshold = 100_000_000_000
)

// Task relays one message: it bootstraps if needed, resolves deviceID and
// writes every body field that names a known variable. The message is returned
// unchanged. Field write failures are isolated from each other; they are only
// returned when Config.StrictWrites is set.
func (r *Relay) Task(ctx context.Context, deviceID string, body models.Body, msg *models.Message) (*models.Message, error) {
	ctx, span := r.tracer.Start(ctx, "Task")
	defer span.End()

	if err := r.Bootstrap(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "bootstrap failed")

		return nil, err
	}

	deviceID = models.NormalizeDeviceID(deviceID)
	span.SetAttributes(attribute.String("device.id", deviceID))

	vars, err := r.GetVariables(ctx, deviceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "variable lookup failed")

		return nil, err
	}

	if vars == nil {
		recordUnknownDevice(ctx)
		span.SetStatus(otelcodes.Ok, "unknown device")

		r.logger.Info().
			Str("origin", "task").
			Str("device_id", deviceID).
			Msg("Device not found in directory, passing message through")

		return msg, nil
	}

	writes, skipped := r.planWrites(body, vars)
	recordSkippedFields(ctx, skipped)

	span.SetAttributes(
		attribute.Int("fields.written", len(writes)),
		attribute.Int("fields.skipped", skipped),
	)

	if err := r.runWrites(ctx, deviceID, writes); err != nil {
		span.RecordError(err)

		r.logger.Error().
			Err(err).
			Str("origin", "task").
			Str("device_id", deviceID).
			Msg("Failed to write one or more fields")

		if r.config.StrictWrites {
			span.SetStatus(otelcodes.Error, "field writes failed")

			return nil, err
		}
	}

	span.SetStatus(otelcodes.Ok, "relayed")

	r.logger.Debug().
		Str("origin", "task").
		Str("device_id", deviceID).
		Int("written", len(writes)).
		Int("skipped", skipped).
		Msg("Relayed message fields")

	return msg, nil
}

type fieldWrite struct {
	name     string
	variable ubidots.Variable
	payload  interface{}
}

// planWrites picks the body fields with a matching variable, in name order.
func (r *Relay) planWrites(body models.Body, vars map[string]ubidots.Variable) ([]fieldWrite, int) {
	names := make([]string, 0, len(body))
	for name := range body {
		names = append(names, name)
	}

	sort.Strings(names)

	var (
		ts    int64
		hasTS bool
	)

	if r.config.AttachTimestamp {
		ts, hasTS = timestampMillis(body[timestampField])
	}

	writes := make([]fieldWrite, 0, len(names))
	skipped := 0

	for _, name := range names {
		variable, ok := vars[name]
		if !ok {
			skipped++

			continue
		}

		payload := body[name]
		if hasTS {
			payload = withTimestamp(payload, ts)
		}

		writes = append(writes, fieldWrite{name: name, variable: variable, payload: payload})
	}

	return writes, skipped
}

func (r *Relay) runWrites(ctx context.Context, deviceID string, writes []fieldWrite) error {
	if len(writes) == 0 {
		return nil
	}

	var g errgroup.Group

	g.SetLimit(r.config.WriteConcurrency)

	var (
		errMu   sync.Mutex
		joinErr error
	)

	for _, w := range writes {
		g.Go(func() error {
			if err := r.writeVariable(ctx, deviceID, w.name, w.variable, w.payload); err != nil {
				errMu.Lock()
				joinErr = errors.Join(joinErr, err)
				errMu.Unlock()
			}

			return nil
		})
	}

	_ = g.Wait()

	return joinErr
}

func withTimestamp(value interface{}, ts int64) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		if _, ok := v["value"]; ok {
			return v
		}
	case ubidots.Dot, *ubidots.Dot:
		return v
	}

	return ubidots.Dot{Value: value, Timestamp: ts}
}

// timestampMillis reads a body timestamp given as epoch seconds or
// milliseconds (number or numeric string) or as an RFC 3339 string.
func timestampMillis(v interface{}) (int64, bool) {
	var n float64

	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}

		n = f
	case float64:
		n = t
	case int64:
		n = float64(t)
	case int:
		n = float64(t)
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			n = f

			break
		}

		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return 0, false
		}

		return parsed.UnixMilli(), true
	default:
		return 0, false
	}

	if n <= 0 {
		return 0, false
	}

	if n < millisThreshold {
		n *= 1000
	}

	return int64(n), true
}
