package natsutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/sigfox-relay/pkg/logger"
)

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{
			name:     "adds subject when list empty",
			subjects: nil,
			subject:  "sigfox.types.sendToUbidots",
			want:     []string{"sigfox.types.sendToUbidots"},
		},
		{
			name:     "keeps list when wildcard matches",
			subjects: []string{"sigfox.types.*"},
			subject:  "sigfox.types.sendToUbidots",
			want:     []string{"sigfox.types.*"},
		},
		{
			name:     "keeps list when greater wildcard matches",
			subjects: []string{"sigfox.>"},
			subject:  "sigfox.types.sendToUbidots",
			want:     []string{"sigfox.>"},
		},
		{
			name:     "appends when unmatched",
			subjects: []string{"sigfox.devices.*"},
			subject:  "sigfox.types.sendToUbidots",
			want:     []string{"sigfox.devices.*", "sigfox.types.sendToUbidots"},
		},
		{
			name:     "wildcard replaces covered subjects",
			subjects: []string{"sigfox.types.sendToUbidots", "sigfox.devices.*", "sigfox.types.logToDatabase"},
			subject:  "sigfox.types.>",
			want:     []string{"sigfox.devices.*", "sigfox.types.>"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result := ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject)

			if len(result) != len(tc.want) {
				t.Fatalf("expected %d subjects, got %d", len(tc.want), len(result))
			}

			for i := range tc.want {
				if tc.want[i] != result[i] {
					t.Fatalf("result[%d] = %q, want %q", i, result[i], tc.want[i])
				}
			}
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "sigfox.types.sendToUbidots", "sigfox.types.sendToUbidots", true},
		{"single wildcard", "sigfox.*.sendToUbidots", "sigfox.types.sendToUbidots", true},
		{"greater wildcard", "sigfox.>", "sigfox.types.sendToUbidots", true},
		{"greater wildcard needs a token", "sigfox.types.>", "sigfox.types", false},
		{"no match length", "sigfox.*", "sigfox.types.sendToUbidots", false},
		{"no match tokens", "sigfox.devices.*", "sigfox.types.sendToUbidots", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := matchesSubject(tc.pattern, tc.subject); got != tc.expected {
				t.Fatalf("matchesSubject(%q, %q) = %t, want %t", tc.pattern, tc.subject, got, tc.expected)
			}
		})
	}
}

func TestEnsureStreamAndPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv := runJetStreamServer(t, nil)

	nc, err := Connect(&ConnectConfig{URL: srv.ClientURL(), Name: "natsutil-test"}, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := JetStream(nc, "")
	require.NoError(t, err)

	_, err = EnsureStream(ctx, js, "sigfox", "sigfox.types.sendToUbidots")
	require.NoError(t, err)

	stream, err := EnsureStream(ctx, js, "sigfox", "sigfox.types.logToDatabase")
	require.NoError(t, err)

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sigfox.types.sendToUbidots", "sigfox.types.logToDatabase"}, info.Config.Subjects)

	publisher := NewEventPublisher(js, "sigfox-relay/test")

	ack, err := publisher.Publish(ctx, "sigfox.types.logToDatabase", "com.carverauto.sigfox.message",
		map[string]string{"device": "2C30EB"})
	require.NoError(t, err)
	assert.Equal(t, "sigfox", ack.Stream)

	raw, err := stream.GetLastMsgForSubject(ctx, "sigfox.types.logToDatabase")
	require.NoError(t, err)

	var event struct {
		SpecVersion string            `json:"specversion"`
		ID          string            `json:"id"`
		Source      string            `json:"source"`
		Type        string            `json:"type"`
		Data        map[string]string `json:"data"`
	}

	require.NoError(t, json.Unmarshal(raw.Data, &event))
	assert.Equal(t, "1.0", event.SpecVersion)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "sigfox-relay/test", event.Source)
	assert.Equal(t, "com.carverauto.sigfox.message", event.Type)
	assert.Equal(t, map[string]string{"device": "2C30EB"}, event.Data)
}

func TestEnsureStreamWidensToWildcard(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv := runJetStreamServer(t, nil)

	nc, err := Connect(&ConnectConfig{URL: srv.ClientURL(), Name: "natsutil-test"}, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := JetStream(nc, "")
	require.NoError(t, err)

	_, err = EnsureStream(ctx, js, "sigfox", "sigfox.types.sendToUbidots")
	require.NoError(t, err)

	stream, err := EnsureStream(ctx, js, "sigfox", "sigfox.types.>")
	require.NoError(t, err)

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sigfox.types.>"}, info.Config.Subjects)

	// already covered, no update
	stream, err = EnsureStream(ctx, js, "sigfox", "sigfox.types.sendToUbidots")
	require.NoError(t, err)

	info, err = stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sigfox.types.>"}, info.Config.Subjects)
}

func runJetStreamServer(t *testing.T, configure func(*server.Options)) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	if configure != nil {
		configure(opts)
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
