package registrysync

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facestream/internal/config"
)

func TestRedisNotifier_FromPeer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	n := NewRedisNotifier(client, "facestream:registry", discardLogger())

	own, err := json.Marshal(changeMessage{Instance: n.Instance(), Version: 3})
	require.NoError(t, err)
	peer, err := json.Marshal(changeMessage{Instance: "other", Version: 4})
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload string
		want    bool
	}{
		{"own message ignored", string(own), false},
		{"peer message accepted", string(peer), true},
		{"malformed payload ignored", "not json", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.fromPeer(tt.payload))
		})
	}
}

func TestRedisNotifier_InstancesDiffer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	a := NewRedisNotifier(client, "c", discardLogger())
	b := NewRedisNotifier(client, "c", discardLogger())
	assert.NotEqual(t, a.Instance(), b.Instance())
}

func TestNewBackend_Simple(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.Config
		wantSource bool
		wantErr    bool
	}{
		{"none", config.Config{RegistrySource: config.SourceNone}, false, false},
		{"http", config.Config{RegistrySource: config.SourceHTTP, RegistryURL: "http://backend/api/face/registered"}, true, false},
		{"file", config.Config{RegistrySource: config.SourceFile, RegistryFile: "registry.yaml"}, true, false},
		{"unknown", config.Config{RegistrySource: "s3"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			b, err := NewBackend(context.Background(), &cfg, discardLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer b.Close()

			assert.Equal(t, tt.wantSource, b.Source != nil)
			assert.Nil(t, b.Store)
		})
	}
}
