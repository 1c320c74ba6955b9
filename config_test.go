package mirror_test

import (
	"os"
	"path/filepath"
	"testing"

	mirror "github.com/WelcomerTeam/Mirror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfiguration = `
identifier: welcomer
gateway:
  codec: msgpack
  compress: true
identify:
  token: secret
  properties:
    os: linux
features:
  mirror_guilds: true
producer:
  type: jetstream
  channel: mirror
  configuration:
    Address: nats://localhost:4222
store:
  type: redis
  ttl: 1h
`

func TestParseConfiguration(t *testing.T) {
	t.Parallel()

	configuration, err := mirror.ParseConfiguration([]byte(testConfiguration))
	require.NoError(t, err)

	assert.Equal(t, "welcomer", configuration.Identifier)
	assert.Equal(t, "msgpack", configuration.Gateway.Codec)
	assert.True(t, configuration.Gateway.Compress)
	assert.Equal(t, mirror.DefaultGatewayURL, configuration.Gateway.URL)
	assert.Equal(t, mirror.DefaultAPIURL, configuration.REST.URL)
	assert.Equal(t, "secret", configuration.Identify.Token)
	assert.Equal(t, "linux", configuration.Identify.Properties.OS)
	assert.True(t, configuration.Features.MirrorGuilds())
	assert.False(t, configuration.Features.EmitAnalytics())
	assert.Equal(t, "jetstream", configuration.Producer.Type)
	assert.Equal(t, "nats://localhost:4222", configuration.Producer.Configuration["Address"])
	assert.Equal(t, "1h", configuration.Store.TTL)
}

func TestParseConfigurationTokenFromEnvironment(t *testing.T) {
	t.Setenv(mirror.TokenEnvironment, "from-env")

	configuration, err := mirror.ParseConfiguration([]byte("gateway:\n  codec: json\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", configuration.Identify.Token)
	assert.Equal(t, "mirror", configuration.Identifier)
}

func TestParseConfigurationMissingToken(t *testing.T) {
	t.Setenv(mirror.TokenEnvironment, "")

	_, err := mirror.ParseConfiguration([]byte("identifier: mirror\n"))
	assert.ErrorIs(t, err, mirror.ErrLoadConfigurationFailure)
	assert.ErrorIs(t, err, mirror.ErrMissingToken)
}

func TestParseConfigurationInvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := mirror.ParseConfiguration([]byte("identifier: ["))
	assert.ErrorIs(t, err, mirror.ErrLoadConfigurationFailure)
}

func TestLoadConfiguration(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mirror.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfiguration), 0o600))

	configuration, err := mirror.LoadConfiguration(path)
	require.NoError(t, err)
	assert.Equal(t, "welcomer", configuration.Identifier)

	_, err = mirror.LoadConfiguration(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, mirror.ErrReadConfigurationFailure)
}
