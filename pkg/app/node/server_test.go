package node

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/canton-token-flows/pkg/auth"
	"github.com/chainsafe/canton-token-flows/pkg/config"
	"github.com/chainsafe/canton-token-flows/pkg/flows/tokens"
	"github.com/chainsafe/canton-token-flows/pkg/flows/tokens/mocks"
	"github.com/chainsafe/canton-token-flows/pkg/keys"
	"github.com/chainsafe/canton-token-flows/pkg/party"
)

func peerConfig(t *testing.T, name string) (config.PeerConfig, party.Party) {
	t.Helper()
	kp, err := keys.GenerateKeyPair()
	require.NoError(t, err)
	p := party.WellKnown(name, kp.PublicKey)
	return config.PeerConfig{PartyID: p.ID, PublicKey: kp.PublicKeyHex(), Address: name + ":7600"}, p
}

func TestRegisterParties(t *testing.T) {
	ctx := context.Background()
	bobCfg, bob := peerConfig(t, "bob")
	carolCfg, carol := peerConfig(t, "carol")
	_, alice := peerConfig(t, "alice")

	s := NewServer(&config.NodeConfig{Peering: config.PeeringConfig{Peers: []config.PeerConfig{bobCfg, carolCfg}}})
	registry := party.NewDirectory()
	require.NoError(t, s.registerParties(ctx, registry, alice))

	for _, want := range []party.Party{alice, bob, carol} {
		got, err := registry.Lookup(ctx, want.ID)
		require.NoError(t, err)
		require.Equal(t, want.PublicKey, got.PublicKey)
	}
}

func TestPeerParty_RejectsMismatchedKey(t *testing.T) {
	bobCfg, _ := peerConfig(t, "bob")
	carolCfg, _ := peerConfig(t, "carol")
	bobCfg.PublicKey = carolCfg.PublicKey

	_, err := peerParty(bobCfg)
	require.ErrorIs(t, err, party.ErrInvalidPartyID)

	bobCfg.PublicKey = "zz"
	_, err = peerParty(bobCfg)
	require.Error(t, err)
}

func TestSetupRouter(t *testing.T) {
	t.Setenv("TEST_NODE_JWT_SECRET", "secret-for-tests")
	s := NewServer(&config.NodeConfig{
		Server:     config.ServerConfig{RequestTimeout: time.Minute},
		Auth:       config.AuthConfig{Enabled: true, JWTSecretEnv: "TEST_NODE_JWT_SECRET"},
		Monitoring: config.MonitoringConfig{Enabled: true, MetricsPath: "/metrics"},
	})
	handler, err := s.setupRouter(mocks.NewService(t), zap.NewNop())
	require.NoError(t, err)

	get := func(path, token string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, get("/health", ""))
	require.Equal(t, http.StatusOK, get("/metrics", ""))
	require.Equal(t, http.StatusUnauthorized, get("/tokens/X/recipients", ""))
}

func TestSetupRouter_MissingSecret(t *testing.T) {
	s := NewServer(&config.NodeConfig{
		Auth: config.AuthConfig{Enabled: true, JWTSecretEnv: "TEST_NODE_JWT_SECRET_UNSET"},
	})
	_, err := s.setupRouter(mocks.NewService(t), zap.NewNop())
	require.Error(t, err)
}

func TestSetupRouter_AuthorizedRequestReachesService(t *testing.T) {
	t.Setenv("TEST_NODE_JWT_SECRET", "secret-for-tests")
	s := NewServer(&config.NodeConfig{
		Server: config.ServerConfig{RequestTimeout: time.Minute},
		Auth:   config.AuthConfig{Enabled: true, JWTSecretEnv: "TEST_NODE_JWT_SECRET"},
	})
	token, err := auth.NewJWTValidator([]byte("secret-for-tests"), "").IssueToken("operator", time.Minute)
	require.NoError(t, err)

	svc := mocks.NewService(t)
	handler, err := s.setupRouter(svc, zap.NewNop())
	require.NoError(t, err)

	svc.EXPECT().
		Recipients(mock.Anything, "X").
		Return(&tokens.RecipientsResponse{TokenType: "X"}, nil).
		Once()
	req := httptest.NewRequest(http.MethodGet, "/tokens/X/recipients", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
