package ubidots

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/sigfox-relay/pkg/logger"
	"github.com/carverauto/sigfox-relay/pkg/models"
	"github.com/carverauto/sigfox-relay/pkg/relay"
	ubidotsapi "github.com/carverauto/sigfox-relay/pkg/ubidots"
)

func TestServiceRelaysAndDispatches(t *testing.T) {
	t.Setenv("UBIDOTS_API_KEY", "")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv := runJetStreamServer(t)

	ctrl := gomock.NewController(t)
	api := relay.NewMockRemoteAPI(ctrl)

	writes := make(chan string, 4)

	api.EXPECT().Authenticate(gomock.Any()).Return(nil)
	api.EXPECT().ListDatasources(gomock.Any()).Return([]ubidotsapi.Datasource{
		{ID: "ds1", Name: "Sigfox Device 2C30EB"},
	}, nil)
	api.EXPECT().ListVariables(gomock.Any(), "ds1").Return([]ubidotsapi.Variable{
		{ID: "v-lig", Name: "lig"},
		{ID: "v-tmp", Name: "tmp"},
	}, nil)
	api.EXPECT().WriteValue(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, variableID string, _ interface{}) error {
			writes <- variableID
			return nil
		}).Times(2)

	r, err := relay.New(api, nil, logger.NewTestLogger())
	require.NoError(t, err)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	cfg := &RelayConsumerConfig{
		NATSURL:      srv.ClientURL(),
		FetchMaxWait: models.Duration(200 * time.Millisecond),
		WarmStart:    true,
		Ubidots:      ubidotsapi.Config{APIKey: "test-key"},
	}
	cfg.Normalize()

	svc, err := NewService(cfg, r, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(func() {
		_ = svc.Stop(context.Background())
	})

	assert.Equal(t, relay.StateReady, r.State())

	stream, err := js.Stream(ctx, DefaultStreamName)
	require.NoError(t, err)

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sigfox.types.>"}, info.Config.Subjects)

	_, err = js.Publish(ctx, DefaultSubject, []byte("{not json"))
	require.NoError(t, err)

	_, err = js.Publish(ctx, DefaultSubject, []byte(sampleMessage))
	require.NoError(t, err)

	var dispatched *jetstream.RawStreamMsg

	require.Eventually(t, func() bool {
		msg, getErr := stream.GetLastMsgForSubject(ctx, "sigfox.types.logToDatabase")
		if getErr != nil {
			return false
		}

		dispatched = msg

		return true
	}, 10*time.Second, 50*time.Millisecond, "message was not dispatched to the next route")

	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	require.NoError(t, json.Unmarshal(dispatched.Data, &event))
	assert.Equal(t, MessageEventType, event.Type)

	out, err := models.DecodeMessage(event.Data)
	require.NoError(t, err)
	assert.Equal(t, "2c30eb", out.Device)
	assert.Empty(t, out.Route)
	require.Len(t, out.History, 2)
	assert.Equal(t, FunctionName, out.History[1].Function)
	assert.Equal(t, json.Number("456"), out.Body["lig"])

	got := []string{<-writes, <-writes}
	assert.ElementsMatch(t, []string{"v-lig", "v-tmp"}, got)

	consumer, err := js.Consumer(ctx, DefaultStreamName, DefaultConsumerName)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		info, infoErr := consumer.Info(ctx)
		return infoErr == nil && info.NumPending == 0 && info.NumAckPending == 0
	}, 10*time.Second, 50*time.Millisecond, "malformed and relayed messages should both be acked")

	consumerInfo, err := consumer.Info(ctx)
	require.NoError(t, err)
	assert.Zero(t, consumerInfo.NumRedelivered)
	assert.Empty(t, writes, "fields were written more than once")
}

func TestNewServiceValidation(t *testing.T) {
	t.Setenv("UBIDOTS_API_KEY", "")

	_, err := NewService(&RelayConsumerConfig{}, nil, nil)
	require.ErrorIs(t, err, ErrMissingNATSURL)

	cfg := &RelayConsumerConfig{NATSURL: "nats://127.0.0.1:4222", Ubidots: ubidotsapi.Config{APIKey: "k"}}
	cfg.Normalize()

	_, err = NewService(cfg, nil, nil)
	require.ErrorIs(t, err, errMissingRelay)
}

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, func() bool {
		return srv.JetStreamEnabled()
	}, 5*time.Second, 50*time.Millisecond, "embedded NATS server not ready for JetStream")

	t.Cleanup(srv.Shutdown)

	return srv
}
