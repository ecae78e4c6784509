package natsutil

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nkeys"

	"github.com/carverauto/sigfox-relay/pkg/logger"
	"github.com/carverauto/sigfox-relay/pkg/models"
)

const defaultConnectTimeout = 10 * time.Second

// ErrInvalidUserKey is returned when an NKey seed does not belong to a user.
var ErrInvalidUserKey = errors.New("nkey seed is not a user key")

// ConnectConfig describes how to reach NATS.
type ConnectConfig struct {
	URL          string
	Name         string
	Security     *models.SecurityConfig
	NKeySeedFile string
	CredsFile    string
}

// NKeyOption reads a user NKey seed file and returns the matching auth option.
func NKeyOption(seedFile string) (nats.Option, error) {
	seed, err := os.ReadFile(seedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read nkey seed: %w", err)
	}

	kp, err := nkeys.FromSeed(bytes.TrimSpace(seed))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nkey seed: %w", err)
	}

	publicKey, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get nkey public key: %w", err)
	}

	if !nkeys.IsValidPublicUserKey(publicKey) {
		return nil, ErrInvalidUserKey
	}

	return nats.Nkey(publicKey, kp.Sign), nil
}

// Options assembles TLS, auth and connection event handlers for cfg.
func Options(cfg *ConnectConfig, log logger.Logger) ([]nats.Option, error) {
	opts := []nats.Option{nats.Timeout(defaultConnectTimeout)}

	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}

	if cfg.Security != nil && cfg.Security.Mode == models.SecurityModeMTLS {
		tlsConf, err := TLSConfig(cfg.Security)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts,
			nats.Secure(tlsConf),
			nats.RootCAs(cfg.Security.TLS.CAFile),
			nats.ClientCert(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile),
		)
	}

	if cfg.NKeySeedFile != "" {
		opt, err := NKeyOption(cfg.NKeySeedFile)
		if err != nil {
			return nil, err
		}

		opts = append(opts, opt)
	}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	opts = append(opts,
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	return opts, nil
}

// Connect dials NATS using Options.
func Connect(cfg *ConnectConfig, log logger.Logger) (*nats.Conn, error) {
	opts, err := Options(cfg, log)
	if err != nil {
		return nil, err
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}

// JetStream returns a JetStream context, scoped to domain when one is set.
func JetStream(nc *nats.Conn, domain string) (jetstream.JetStream, error) {
	if domain != "" {
		js, err := jetstream.NewWithDomain(nc, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
		}

		return js, nil
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return js, nil
}
