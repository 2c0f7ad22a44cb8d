// Package node implements app.Runner for the token node process.
package node

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	apphttp "github.com/chainsafe/canton-token-flows/pkg/app/http"
	"github.com/chainsafe/canton-token-flows/pkg/auth"
	"github.com/chainsafe/canton-token-flows/pkg/config"
	"github.com/chainsafe/canton-token-flows/pkg/flows/confidential"
	"github.com/chainsafe/canton-token-flows/pkg/flows/distribution"
	"github.com/chainsafe/canton-token-flows/pkg/flows/finality"
	"github.com/chainsafe/canton-token-flows/pkg/flows/roles"
	"github.com/chainsafe/canton-token-flows/pkg/flows/tokens"
	"github.com/chainsafe/canton-token-flows/pkg/keys"
	"github.com/chainsafe/canton-token-flows/pkg/party"
	"github.com/chainsafe/canton-token-flows/pkg/pgutil"
	"github.com/chainsafe/canton-token-flows/pkg/saga"
	"github.com/chainsafe/canton-token-flows/pkg/session"
	"github.com/chainsafe/canton-token-flows/pkg/vault"
)

// Server holds cfg to init the token node.
type Server struct {
	cfg *config.NodeConfig
}

// NewServer initializes a new token node.
func NewServer(cfg *config.NodeConfig) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("node config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	identity, err := s.getNodeKey()
	if err != nil {
		return err
	}
	self := party.WellKnown(cfg.Node.Name, identity.PublicKey)

	logger.Info("Starting token node",
		zap.String("party", self.ID),
		zap.String("peering", cfg.Peering.ListenAddress),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	masterKey, err := s.getMasterKey()
	if err != nil {
		return err
	}
	cipher, err := keys.NewMasterKeyCipher(masterKey)
	if err != nil {
		return fmt.Errorf("create key cipher: %w", err)
	}

	db, err := pgutil.ConnectDB(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)

	wallet := keys.NewWallet(identity, keys.NewPGKeyStore(db), cipher)

	registry := party.NewPGRegistry(db)
	if err := s.registerParties(ctx, registry, self); err != nil {
		return err
	}

	dialer, err := session.NewDialer(self, identity, &cfg.Peering, logger)
	if err != nil {
		return fmt.Errorf("create session dialer: %w", err)
	}
	defer func() { _ = dialer.Close() }()

	v := vault.NewPGVault(db)
	recipients := distribution.NewPGRegistry(db)
	orchestrator, router, err := s.buildFlows(ctx, db, self, wallet, registry, v, recipients, dialer, logger)
	if err != nil {
		return err
	}

	sessionServer := session.NewServer(self, router, registry, &cfg.Peering, logger)
	sessionErr := make(chan error, 1)
	go func() {
		sessionErr <- sessionServer.ListenAndServe(ctx)
	}()

	service := tokens.NewLog(
		tokens.NewService(orchestrator, registry, recipients, v),
		logger,
	)
	handler, err := s.setupRouter(service, logger)
	if err != nil {
		return err
	}

	err = apphttp.ServeAndWait(ctx, handler, logger, &cfg.Server)

	// The HTTP server only returns on shutdown or failure; stop the peering server too.
	stop()
	if serr := <-sessionErr; serr != nil {
		err = errors.Join(err, fmt.Errorf("session server: %w", serr))
	}
	return err
}

func (s *Server) getNodeKey() (*keys.KeyPair, error) {
	raw := os.Getenv(s.cfg.Node.PrivateKeyEnv)
	if raw == "" {
		return nil, fmt.Errorf("node private key not set: env=%s", s.cfg.Node.PrivateKeyEnv)
	}
	kp, err := keys.KeyPairFromHex(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid node private key: %w", err)
	}
	return kp, nil
}

func (s *Server) getMasterKey() ([]byte, error) {
	masterKeyStr := os.Getenv(s.cfg.KeyManagement.MasterKeyEnv)
	if masterKeyStr == "" {
		return nil, fmt.Errorf(
			"master key not set: env=%s (hint: openssl rand -base64 32)",
			s.cfg.KeyManagement.MasterKeyEnv,
		)
	}

	masterKey, err := keys.MasterKeyFromBase64(masterKeyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid master key: %w", err)
	}
	return masterKey, nil
}

// registerParties records self and every configured peer as well-known parties.
func (s *Server) registerParties(ctx context.Context, registry party.Registry, self party.Party) error {
	if err := registry.RegisterWellKnown(ctx, self); err != nil {
		return fmt.Errorf("register self: %w", err)
	}
	for _, peer := range s.cfg.Peering.Peers {
		p, err := peerParty(peer)
		if err != nil {
			return err
		}
		if err := registry.RegisterWellKnown(ctx, p); err != nil {
			return fmt.Errorf("register peer %s: %w", peer.PartyID, err)
		}
	}
	return nil
}

func peerParty(peer config.PeerConfig) (party.Party, error) {
	publicKey, err := hex.DecodeString(strings.TrimPrefix(peer.PublicKey, "0x"))
	if err != nil {
		return party.Party{}, fmt.Errorf("peer %s public key: %w", peer.PartyID, err)
	}
	p := party.Party{ID: peer.PartyID, PublicKey: publicKey}
	if err := p.Validate(); err != nil {
		return party.Party{}, fmt.Errorf("peer %s: %w", peer.PartyID, err)
	}
	return p, nil
}

// buildFlows wires the workflow collaborators over the node database and returns
// the orchestrator for initiated flows and the router for responder flows.
func (s *Server) buildFlows(
	ctx context.Context,
	db *bun.DB,
	self party.Party,
	wallet *keys.Wallet,
	registry party.Registry,
	v vault.Vault,
	recipients distribution.Registry,
	initiator session.Initiator,
	logger *zap.Logger,
) (*tokens.Orchestrator, *session.Router, error) {
	notaryKey, err := wallet.PurposeKey(ctx, keys.PurposeNotary)
	if err != nil {
		return nil, nil, fmt.Errorf("load notary key: %w", err)
	}
	notary := finality.NewLocalNotary(s.cfg.Flows.Notary, notaryKey, logger)

	issuer := confidential.NewIssuer(self, wallet, registry, logger)
	tracker := saga.NewTracker(saga.NewPGStore(db), logger)

	aborted, err := tracker.AbortInterrupted(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("abort interrupted sagas: %w", err)
	}
	if aborted > 0 {
		logger.Warn("Aborted sagas interrupted by a restart", zap.Int("count", aborted))
	}

	orchestrator := tokens.NewOrchestrator(tokens.Components{
		Self:         self,
		Notary:       notary.Party(),
		Wallet:       wallet,
		Registry:     registry,
		Vault:        v,
		Initiator:    initiator,
		Coordinator:  confidential.NewCoordinator(issuer, registry, logger),
		Negotiator:   roles.NewNegotiator(self, registry, logger),
		Finalizer:    finality.NewFlow(wallet, notary, v, logger),
		Distribution: distribution.NewSynchronizer(recipients, logger),
		Tracker:      tracker,
		Timeout:      s.cfg.Flows.SagaTimeout,
	}, logger)

	router := session.NewRouter()
	tokens.NewResponders(
		confidential.NewHandler(issuer),
		finality.NewHandler(wallet, v, logger),
		logger,
	).Register(router)

	logger.Info("Workflows ready",
		zap.String("notary", notary.Party().ID),
		zap.Strings("responder_flows", router.Flows()),
	)
	return orchestrator, router, nil
}

func (s *Server) setupRouter(service tokens.Service, logger *zap.Logger) (chi.Router, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if s.cfg.Monitoring.Enabled {
		r.Handle(s.cfg.Monitoring.MetricsPath, promhttp.Handler())
	}

	var validator *auth.JWTValidator
	if s.cfg.Auth.Enabled {
		secret := os.Getenv(s.cfg.Auth.JWTSecretEnv)
		if secret == "" {
			return nil, fmt.Errorf("jwt secret not set: env=%s", s.cfg.Auth.JWTSecretEnv)
		}
		validator = auth.NewJWTValidator([]byte(secret), s.cfg.Auth.Issuer)
	}

	r.Group(func(r chi.Router) {
		if validator != nil {
			r.Use(auth.Middleware(validator, logger))
		}
		tokens.RegisterRoutes(r, service, logger)
	})

	return r, nil
}
