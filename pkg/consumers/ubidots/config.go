package ubidots

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/carverauto/sigfox-relay/pkg/config"
	"github.com/carverauto/sigfox-relay/pkg/logger"
	"github.com/carverauto/sigfox-relay/pkg/models"
	"github.com/carverauto/sigfox-relay/pkg/relay"
	ubidotsapi "github.com/carverauto/sigfox-relay/pkg/ubidots"
)

const (
	DefaultSubject       = "sigfox.types.sendToUbidots"
	DefaultStreamName    = "sigfox"
	DefaultConsumerName  = "sigfox-ubidots"
	DefaultRoutePrefix   = "sigfox.types."
	defaultFetchMaxWait  = 30 * time.Second
	defaultMaxDeliveries = 3
)

var (
	ErrMissingNATSURL      = errors.New("nats_url is required")
	ErrMissingStreamName   = errors.New("stream_name is required")
	ErrMissingConsumerName = errors.New("consumer_name is required")
	ErrInvalidJSON         = errors.New("failed to unmarshal JSON configuration")
	ErrInvalidRoutePrefix  = errors.New("route_prefix must end with a subject separator '.'")
)

type RelayConsumerConfig struct {
	NATSURL      string                 `json:"nats_url"`
	Subject      string                 `json:"subject"`
	StreamName   string                 `json:"stream_name"`
	ConsumerName string                 `json:"consumer_name"`
	Domain       string                 `json:"domain"`
	NKeySeedFile string                 `json:"nats_nkey_seed_file"`
	CredsFile    string                 `json:"nats_creds_file"`
	Security     *models.SecurityConfig `json:"security"`
	// RoutePrefix is prepended to the next route stage to form the dispatch subject.
	RoutePrefix  string          `json:"route_prefix"`
	FetchMaxWait models.Duration `json:"fetch_max_wait"`
	MaxDeliver   int             `json:"max_deliver"`
	// WarmStart bootstraps the directory when the service starts instead of on the first message.
	WarmStart bool              `json:"warm_start"`
	Ubidots   ubidotsapi.Config `json:"ubidots"`
	Relay     relay.Config      `json:"relay"`
	Logging   *logger.Config    `json:"logging"`
}

func (c *RelayConsumerConfig) UnmarshalJSON(data []byte) error {
	type Alias RelayConsumerConfig

	var alias struct {
		Alias
	}

	alias.Alias = Alias{}

	if err := json.Unmarshal(data, &alias); err != nil {
		return errors.Join(ErrInvalidJSON, err)
	}

	*c = RelayConsumerConfig(alias.Alias)

	if c.Security != nil && c.Security.CertDir != "" {
		config.NormalizeTLSPaths(&c.Security.TLS, c.Security.CertDir)
	}

	return nil
}

// DispatchSubjects returns the wildcard covering every next-route subject.
func (c *RelayConsumerConfig) DispatchSubjects() string {
	if c.RoutePrefix == "" {
		return ""
	}

	return c.RoutePrefix + ">"
}

// Normalize fills in defaults for the consumer, the Ubidots client and the relay.
func (c *RelayConsumerConfig) Normalize() {
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}

	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}

	if c.ConsumerName == "" {
		c.ConsumerName = DefaultConsumerName
	}

	if c.RoutePrefix == "" {
		c.RoutePrefix = DefaultRoutePrefix
	}

	if c.FetchMaxWait <= 0 {
		c.FetchMaxWait = models.Duration(defaultFetchMaxWait)
	}

	if c.MaxDeliver <= 0 {
		c.MaxDeliver = defaultMaxDeliveries
	}

	c.Ubidots.Normalize()
	c.Relay.Normalize()
}

func (c *RelayConsumerConfig) Validate() error {
	var errs []error

	if c.NATSURL == "" {
		errs = append(errs, ErrMissingNATSURL)
	}

	if c.StreamName == "" {
		errs = append(errs, ErrMissingStreamName)
	}

	if c.ConsumerName == "" {
		errs = append(errs, ErrMissingConsumerName)
	}

	if c.RoutePrefix != "" && !strings.HasSuffix(c.RoutePrefix, ".") {
		errs = append(errs, ErrInvalidRoutePrefix)
	}

	if err := c.Ubidots.Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Relay.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
