package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/sigfox-relay/pkg/config"
	ubidotsconsumer "github.com/carverauto/sigfox-relay/pkg/consumers/ubidots"
	"github.com/carverauto/sigfox-relay/pkg/lifecycle"
	"github.com/carverauto/sigfox-relay/pkg/logger"
	"github.com/carverauto/sigfox-relay/pkg/natsutil"
	"github.com/carverauto/sigfox-relay/pkg/relay"
	"github.com/carverauto/sigfox-relay/pkg/ubidots"
	"github.com/carverauto/sigfox-relay/pkg/version"
)

const (
	serviceName            = "sigfox-relay-ubidots"
	defaultConfigBucket    = "sigfox-relay-config"
	metricsExportInterval  = 30 * time.Second
	telemetryFlushDeadline = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "/etc/sigfox-relay/ubidots.json", "Path to config file")
	kvBucket := flag.String("kv-bucket", defaultConfigBucket, "NATS KV bucket read when CONFIG_SOURCE=kv")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersion())
		return
	}

	if err := run(context.Background(), *configPath, *kvBucket); err != nil {
		log.Fatalf("Ubidots relay failed: %v", err)
	}
}

func run(ctx context.Context, configPath, kvBucket string) error {
	var cfg ubidotsconsumer.RelayConsumerConfig

	// missing or placeholder credentials fail here, before any message is consumed
	if err := loadConfig(ctx, configPath, kvBucket, &cfg); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	loggerConfig := cfg.Logging
	if loggerConfig == nil {
		loggerConfig = logger.DefaultConfig()
	}

	serviceLogger, err := lifecycle.CreateComponentLogger(ctx, "ubidots-consumer", loggerConfig)
	if err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryFlushDeadline)
		defer cancel()

		if err := lifecycle.ShutdownLogger(shutdownCtx); err != nil {
			log.Printf("Failed to flush telemetry: %v", err)
		}
	}()

	initTelemetry(ctx, &loggerConfig.OTel, serviceLogger)

	client := ubidots.NewClient(&cfg.Ubidots, nil, serviceLogger.WithComponent("ubidots-client"))

	r, err := relay.New(client, &cfg.Relay, serviceLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize relay: %w", err)
	}

	svc, err := ubidotsconsumer.NewService(&cfg, r, serviceLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize consumer service: %w", err)
	}

	serviceLogger.Info().
		Str("version", version.GetVersion()).
		Str("endpoint", cfg.Ubidots.Endpoint).
		Bool("strict_writes", cfg.Relay.StrictWrites).
		Msg("Starting Ubidots relay")

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ServiceName: serviceName,
		Service:     svc,
		Logger:      serviceLogger,
	})
}

func loadConfig(ctx context.Context, path, bucket string, cfg *ubidotsconsumer.RelayConsumerConfig) error {
	loader := config.NewConfig(nil)

	if strings.EqualFold(os.Getenv("CONFIG_SOURCE"), "kv") {
		nc, err := connectConfigStore(ctx, loader, bucket)
		if err != nil {
			return err
		}
		defer nc.Close()
	}

	return loader.LoadAndValidate(ctx, path, cfg)
}

// connectConfigStore wires the NATS KV bucket into the loader. The server is
// taken from NATS_URL since the config holding nats_url is not loaded yet.
func connectConfigStore(ctx context.Context, loader *config.Config, bucket string) (*nats.Conn, error) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}

	nc, err := natsutil.Connect(&natsutil.ConnectConfig{
		URL:          url,
		Name:         serviceName + "-config",
		NKeySeedFile: os.Getenv("NATS_NKEY_SEED_FILE"),
		CredsFile:    os.Getenv("NATS_CREDS_FILE"),
	}, logger.NewTestLogger())
	if err != nil {
		return nil, err
	}

	js, err := natsutil.JetStream(nc, os.Getenv("NATS_DOMAIN"))
	if err != nil {
		nc.Close()
		return nil, err
	}

	store, err := config.NewNATSKVStore(ctx, js, bucket)
	if err != nil {
		nc.Close()
		return nil, err
	}

	loader.SetKVStore(store)

	return nc, nil
}

func initTelemetry(ctx context.Context, otelConfig *logger.OTelConfig, log logger.Logger) {
	if _, err := logger.InitializeTracing(ctx, otelConfig); err != nil && !errors.Is(err, logger.ErrOTelExportDisabled) {
		log.Warn().Err(err).Msg("Tracing export unavailable")
	}

	if _, err := logger.InitializeMetrics(ctx, otelConfig, metricsExportInterval); err != nil &&
		!errors.Is(err, logger.ErrOTelExportDisabled) {
		log.Warn().Err(err).Msg("Metrics export unavailable")
	}
}
