package session

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chainsafe/canton-token-flows/internal/metrics"
	"github.com/chainsafe/canton-token-flows/pkg/config"
	"github.com/chainsafe/canton-token-flows/pkg/keys"
	"github.com/chainsafe/canton-token-flows/pkg/party"
)

const (
	serviceName    = "tokenflows.session.v1.Sessions"
	openMethod     = "/" + serviceName + "/Open"
	maxClockSkew   = 5 * time.Minute
	defaultDialTTL = 10 * time.Second
)

type sessionsServer interface {
	Open(stream grpc.BidiStreamingServer[wrapperspb.BytesValue, wrapperspb.BytesValue]) error
}

var sessionsServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*sessionsServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Open",
			Handler:       openHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "tokenflows/session/v1/sessions.proto",
}

func openHandler(srv any, stream grpc.ServerStream) error {
	return srv.(sessionsServer).Open(&grpc.GenericServerStream[wrapperspb.BytesValue, wrapperspb.BytesValue]{ServerStream: stream})
}

// openRequest is the first frame of every stream. The initiator signs it with its
// well-known key so the responder knows who it is talking to.
type openRequest struct {
	SessionID string      `json:"session_id"`
	Flow      string      `json:"flow"`
	Initiator party.Party `json:"initiator"`
	Responder string      `json:"responder"`
	IssuedAt  time.Time   `json:"issued_at"`
	Signature []byte      `json:"signature,omitempty"`
}

func (o openRequest) signingBytes() ([]byte, error) {
	o.Signature = nil
	return json.Marshal(o)
}

// Server accepts sessions from counterparties and runs the routed responder on each
type Server struct {
	self     party.Party
	router   *Router
	registry party.Registry
	cfg      *config.PeeringConfig
	limiter  *peerLimiter
	logger   *zap.Logger
	now      func() time.Time
}

// NewServer creates a session server for self
func NewServer(self party.Party, router *Router, registry party.Registry, cfg *config.PeeringConfig, logger *zap.Logger) *Server {
	return &Server{
		self:     self,
		router:   router,
		registry: registry,
		cfg:      cfg,
		limiter:  newPeerLimiter(cfg.RateLimit.SessionsPerSecond, cfg.RateLimit.Burst, 0),
		logger:   logger,
		now:      time.Now,
	}
}

// ListenAndServe listens on the configured address and serves until ctx is canceled
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves sessions on lis until ctx is canceled, then stops gracefully
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	opts := []grpc.ServerOption{}
	if s.cfg.MaxMessageSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(s.cfg.MaxMessageSize))
	}
	if s.cfg.TLS.Enabled {
		tlsConfig, err := loadServerTLSConfig(&s.cfg.TLS)
		if err != nil {
			return fmt.Errorf("failed to load TLS config: %w", err)
		}
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
	}

	srv := grpc.NewServer(opts...)
	srv.RegisterService(&sessionsServiceDesc, s)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Session server listening", zap.String("address", lis.Addr().String()))
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Stopping session server")
		srv.GracefulStop()
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("session server failed: %w", err)
		}
		return nil
	}
}

// Open handles one inbound session
func (s *Server) Open(stream grpc.BidiStreamingServer[wrapperspb.BytesValue, wrapperspb.BytesValue]) error {
	ctx := stream.Context()

	open, err := s.receiveOpen(stream)
	if err != nil {
		metrics.SessionsRejected.WithLabelValues("malformed").Inc()
		return status.Error(codes.InvalidArgument, err.Error())
	}
	initiator, err := s.authenticate(ctx, open)
	if err != nil {
		metrics.SessionsRejected.WithLabelValues("unauthenticated").Inc()
		s.logger.Warn("rejected session", zap.String("initiator", open.Initiator.ID), zap.Error(err))
		return status.Error(codes.Unauthenticated, err.Error())
	}
	if !s.limiter.Allow(initiator.ID, s.now()) {
		metrics.SessionsRejected.WithLabelValues("rate_limited").Inc()
		return status.Errorf(codes.ResourceExhausted, "too many sessions from %s", initiator.ID)
	}
	handler, err := s.router.Lookup(open.Flow)
	if err != nil {
		metrics.SessionsRejected.WithLabelValues("unknown_flow").Inc()
		return status.Error(codes.Unimplemented, err.Error())
	}

	metrics.SessionsOpened.WithLabelValues("accepted", open.Flow).Inc()
	sess := newStreamSession(open.SessionID, initiator, stream, s.cfg.ReceiveTimeout, nil)
	defer sess.Close()

	if err := handler(ctx, Guard(sess)); err != nil {
		metrics.ResponderFailures.WithLabelValues(open.Flow).Inc()
		s.logger.Warn("responder failed",
			zap.String("flow", open.Flow),
			zap.String("session_id", open.SessionID),
			zap.String("initiator", initiator.ID),
			zap.Error(err))
		return responderStatus(err)
	}
	return nil
}

func (s *Server) receiveOpen(stream frameStream) (openRequest, error) {
	frame, err := stream.Recv()
	if err != nil {
		return openRequest{}, fmt.Errorf("no session_open frame: %w", err)
	}
	var msg Message
	if err := json.Unmarshal(frame.GetValue(), &msg); err != nil {
		return openRequest{}, fmt.Errorf("malformed frame: %w", err)
	}
	return Decode[openRequest](msg, KindSessionOpen)
}

func (s *Server) authenticate(ctx context.Context, open openRequest) (party.Party, error) {
	if open.Responder != s.self.ID {
		return party.Party{}, fmt.Errorf("session addressed to %s", open.Responder)
	}
	if skew := s.now().Sub(open.IssuedAt); skew > maxClockSkew || skew < -maxClockSkew {
		return party.Party{}, fmt.Errorf("session_open issued at %s is outside the allowed skew", open.IssuedAt)
	}
	known, err := s.registry.Lookup(ctx, open.Initiator.ID)
	if err != nil {
		return party.Party{}, err
	}
	if known.Anonymous {
		return party.Party{}, fmt.Errorf("initiator %s is anonymous", known.ID)
	}
	payload, err := open.signingBytes()
	if err != nil {
		return party.Party{}, err
	}
	if !keys.Verify(known.PublicKey, payload, open.Signature) {
		return party.Party{}, fmt.Errorf("invalid session_open signature from %s", known.ID)
	}
	return known, nil
}

// Dialer opens sessions to counterparties over gRPC
type Dialer struct {
	self   party.Party
	signer *keys.KeyPair
	cfg    *config.PeeringConfig
	opts   []grpc.DialOption
	logger *zap.Logger

	mu        sync.Mutex
	addresses map[string]string
	conns     map[string]*grpc.ClientConn
}

// NewDialer creates a Dialer that signs session_open frames as self
func NewDialer(self party.Party, signer *keys.KeyPair, cfg *config.PeeringConfig, logger *zap.Logger) (*Dialer, error) {
	if !self.OwnsKey(signer.PublicKey) {
		return nil, fmt.Errorf("signer key does not belong to %s", self)
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTTL
	}
	opts := []grpc.DialOption{
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoff.DefaultConfig,
			MinConnectTimeout: dialTimeout,
		}),
	}
	if cfg.TLS.Enabled {
		tlsConfig, err := loadClientTLSConfig(&cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	if cfg.MaxMessageSize > 0 {
		opts = append(opts, grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize)))
	}

	d := &Dialer{
		self:      self,
		signer:    signer,
		cfg:       cfg,
		opts:      opts,
		logger:    logger,
		addresses: make(map[string]string),
		conns:     make(map[string]*grpc.ClientConn),
	}
	for _, p := range cfg.Peers {
		d.AddPeer(p.PartyID, p.Address)
	}
	return d, nil
}

// AddPeer sets the address of the node hosting partyID
func (d *Dialer) AddPeer(partyID, address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addresses[partyID] = address
}

func (d *Dialer) conn(partyID string) (*grpc.ClientConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.conns[partyID]; ok {
		return c, nil
	}
	address, ok := d.addresses[partyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, partyID)
	}
	c, err := grpc.NewClient(address, d.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", address, err)
	}
	d.conns[partyID] = c
	return c, nil
}

// InitiateFlow opens a stream to counterparty and announces flow on it
func (d *Dialer) InitiateFlow(ctx context.Context, flow string, counterparty party.Party) (Session, error) {
	conn, err := d.conn(counterparty.ID)
	if err != nil {
		return nil, err
	}

	open := openRequest{
		SessionID: uuid.NewString(),
		Flow:      flow,
		Initiator: d.self,
		Responder: counterparty.ID,
		IssuedAt:  time.Now().UTC(),
	}
	payload, err := open.signingBytes()
	if err != nil {
		return nil, err
	}
	if open.Signature, err = d.signer.Sign(payload); err != nil {
		return nil, fmt.Errorf("failed to sign session_open: %w", err)
	}
	msg, err := Encode(KindSessionOpen, open)
	if err != nil {
		return nil, err
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session_open: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	cs, err := conn.NewStream(streamCtx, &sessionsServiceDesc.Streams[0], openMethod)
	if err != nil {
		cancel()
		return nil, streamError(err)
	}
	stream := &grpc.GenericClientStream[wrapperspb.BytesValue, wrapperspb.BytesValue]{ClientStream: cs}
	if err := stream.Send(wrapperspb.Bytes(frame)); err != nil {
		cancel()
		return nil, streamError(err)
	}

	metrics.SessionsOpened.WithLabelValues("initiated", flow).Inc()
	d.logger.Debug("session opened",
		zap.String("flow", flow),
		zap.String("session_id", open.SessionID),
		zap.String("counterparty", counterparty.ID))

	sess := newStreamSession(open.SessionID, counterparty, stream, d.cfg.ReceiveTimeout, func() {
		_ = stream.CloseSend()
		cancel()
	})
	return Guard(sess), nil
}

// Close closes every client connection
func (d *Dialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var first error
	for id, c := range d.conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		delete(d.conns, id)
	}
	return first
}

func loadServerTLSConfig(tlsCfg *config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(tlsCfg.CertFile, tlsCfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server cert/key: %w", err)
	}
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if tlsCfg.CAFile != "" {
		pool, err := loadCertPool(tlsCfg.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg, nil
}

func loadClientTLSConfig(tlsCfg *config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(tlsCfg.CertFile, tlsCfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert/key: %w", err)
	}
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if tlsCfg.CAFile != "" {
		pool, err := loadCertPool(tlsCfg.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to append CA cert")
	}
	return pool, nil
}
