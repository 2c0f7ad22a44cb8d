package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
node:
  name: alice
server:
  port: 9090
peering:
  listen_address: 127.0.0.1:7601
  peers:
    - party_id: bob::00ff
      public_key: 02aabb
      address: 127.0.0.1:7602
logging:
  level: debug
  format: console
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	require.Equal(t, "alice", cfg.Node.Name)
	require.Equal(t, "NODE_PRIVATE_KEY", cfg.Node.PrivateKeyEnv)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	require.Equal(t, 2*time.Minute, cfg.Peering.ReceiveTimeout)
	require.Equal(t, 5*time.Minute, cfg.Flows.SagaTimeout)
	require.Equal(t, "token_node", cfg.Database.Database)
	require.Len(t, cfg.Peering.Peers, 1)
	require.Equal(t, "bob::00ff", cfg.Peering.Peers[0].PartyID)
}

func TestParse_RejectsMissingNodeName(t *testing.T) {
	_, err := Parse([]byte("server:\n  port: 8080\n"))
	require.Error(t, err)
}

func TestParse_RejectsDuplicatePeers(t *testing.T) {
	raw := `
node:
  name: alice
peering:
  peers:
    - party_id: bob::00ff
      public_key: 02aa
      address: 127.0.0.1:7602
    - party_id: bob::00ff
      public_key: 02aa
      address: 127.0.0.1:7603
`
	_, err := Parse([]byte(raw))
	require.ErrorContains(t, err, "duplicate peer")
}

func TestParse_RejectsTLSWithoutCert(t *testing.T) {
	raw := `
node:
  name: alice
peering:
  tls:
    enabled: true
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7601", cfg.Peering.ListenAddress)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(LoggingConfig{Level: "loud"})
	require.Error(t, err)
}
