package relay

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName            = "sigfox-relay.relay"
	metricBootstrapTotal = "relay_bootstrap_total"
	metricVariableLists  = "relay_variable_list_total"
	metricWritesTotal    = "relay_writes_total"
	metricSkippedFields  = "relay_skipped_fields_total"
	metricUnknownDevices = "relay_unknown_devices_total"
	metricWriteLatency   = "relay_write_latency_seconds"
	outcomeSuccess       = "success"
	outcomeFailure       = "failure"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	bootstrapCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	variableListCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	writeCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	skippedCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	unknownDeviceCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	writeHistogram metric.Float64Histogram
)

func initMeter() {
	meter := otel.Meter(meterName)

	bootstrapCounter = int64Counter(meter, metricBootstrapTotal, "Total directory bootstrap attempts")
	variableListCounter = int64Counter(meter, metricVariableLists, "Total remote variable list calls")
	writeCounter = int64Counter(meter, metricWritesTotal, "Total variable value writes")
	skippedCounter = int64Counter(meter, metricSkippedFields, "Message fields without a matching variable")
	unknownDeviceCounter = int64Counter(meter, metricUnknownDevices, "Messages for devices missing from the directory")

	hist, err := meter.Float64Histogram(
		metricWriteLatency,
		metric.WithDescription("Latency for variable value writes"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}
	writeHistogram = hist
}

func int64Counter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
	}

	return counter
}

func outcome(err error) string {
	if err != nil {
		return outcomeFailure
	}

	return outcomeSuccess
}

func recordBootstrap(ctx context.Context, err error, datasources int) {
	meterOnce.Do(initMeter)
	if bootstrapCounter == nil {
		return
	}

	bootstrapCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome(err)),
		attribute.Int("datasources", datasources),
	))
}

func recordVariableList(ctx context.Context, err error) {
	meterOnce.Do(initMeter)
	if variableListCounter == nil {
		return
	}

	variableListCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
}

func recordWrite(ctx context.Context, err error, duration time.Duration) {
	meterOnce.Do(initMeter)

	attrs := metric.WithAttributes(attribute.String("outcome", outcome(err)))

	if writeCounter != nil {
		writeCounter.Add(ctx, 1, attrs)
	}

	if writeHistogram != nil {
		writeHistogram.Record(ctx, duration.Seconds(), attrs)
	}
}

func recordSkippedFields(ctx context.Context, count int) {
	if count == 0 {
		return
	}

	meterOnce.Do(initMeter)
	if skippedCounter == nil {
		return
	}

	skippedCounter.Add(ctx, int64(count))
}

func recordUnknownDevice(ctx context.Context) {
	meterOnce.Do(initMeter)
	if unknownDeviceCounter == nil {
		return
	}

	unknownDeviceCounter.Add(ctx, 1)
}
