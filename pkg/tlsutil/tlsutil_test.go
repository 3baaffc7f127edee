package tlsutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, GenerateSelfSignedCert([]string{"localhost", "127.0.0.1"}, dir))

	creds, err := ServerCredentials(ServerConfig{
		CertFile:     filepath.Join(dir, "server.pem"),
		KeyFile:      filepath.Join(dir, "server-key.pem"),
		ClientCAFile: filepath.Join(dir, "ca.pem"),
	})
	require.NoError(t, err)
	assert.Equal(t, "tls", creds.Info().SecurityProtocol)

	_, err = ClientCredentials(filepath.Join(dir, "ca.pem"))
	require.NoError(t, err)

	_, err = ClientCredentials(filepath.Join(dir, "server-key.pem"))
	assert.Error(t, err, "a key is not a CA bundle")
	_, err = ServerCredentials(ServerConfig{CertFile: "missing.pem", KeyFile: "missing.pem"})
	assert.Error(t, err)
}
