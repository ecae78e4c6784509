package relay

import (
	"context"

	"github.com/carverauto/sigfox-relay/pkg/ubidots"
)

//go:generate mockgen -destination=mock_relay.go -package=relay github.com/carverauto/sigfox-relay/pkg/relay RemoteAPI

// RemoteAPI is the dashboard capability set the relay depends on.
type RemoteAPI interface {
	Authenticate(ctx context.Context) error
	ListDatasources(ctx context.Context) ([]ubidots.Datasource, error)
	ListVariables(ctx context.Context, datasourceID string) ([]ubidots.Variable, error)
	WriteValue(ctx context.Context, variableID string, payload interface{}) error
}

var _ RemoteAPI = (*ubidots.Client)(nil)
