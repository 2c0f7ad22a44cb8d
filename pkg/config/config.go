package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// NodeConfig represents the token node configuration
type NodeConfig struct {
	Node          NodeIdentityConfig  `yaml:"node"`
	Server        ServerConfig        `yaml:"server"`
	Peering       PeeringConfig       `yaml:"peering"`
	Database      DatabaseConfig      `yaml:"database"`
	Flows         FlowsConfig         `yaml:"flows"`
	Auth          AuthConfig          `yaml:"auth"`
	KeyManagement KeyManagementConfig `yaml:"key_management"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// NodeIdentityConfig names the well-known party this node acts for
type NodeIdentityConfig struct {
	Name          string `yaml:"name" validate:"required,excludes=::"`
	PrivateKeyEnv string `yaml:"private_key_env" default:"NODE_PRIVATE_KEY" validate:"required"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"60s"`
}

// PeeringConfig contains settings for the node-to-node session transport
type PeeringConfig struct {
	ListenAddress  string        `yaml:"listen_address" default:"0.0.0.0:7600" validate:"required,hostname_port"`
	DialTimeout    time.Duration `yaml:"dial_timeout" default:"10s"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout" default:"2m"`
	MaxMessageSize int           `yaml:"max_message_size" default:"4194304"`
	RateLimit      RateLimit     `yaml:"rate_limit"`
	TLS            TLSConfig     `yaml:"tls"`
	Peers          []PeerConfig  `yaml:"peers" validate:"dive"`
}

// RateLimit caps inbound sessions per initiating party
type RateLimit struct {
	SessionsPerSecond float64 `yaml:"sessions_per_second" default:"20"`
	Burst             int     `yaml:"burst" default:"40"`
}

// PeerConfig is a counterparty node reachable over the peering transport
type PeerConfig struct {
	PartyID   string `yaml:"party_id" validate:"required,contains=::"`
	PublicKey string `yaml:"public_key" validate:"required,hexadecimal"`
	Address   string `yaml:"address" validate:"required,hostname_port"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file" validate:"required_if=Enabled true"`
	KeyFile  string `yaml:"key_file" validate:"required_if=Enabled true"`
	CAFile   string `yaml:"ca_file"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host" default:"localhost" validate:"required"`
	Port     int    `yaml:"port" default:"5432" validate:"min=1,max=65535"`
	User     string `yaml:"user" default:"postgres" validate:"required"`
	Password string `yaml:"password"`
	Database string `yaml:"database" default:"token_node" validate:"required"`
	SSLMode  string `yaml:"ssl_mode" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
}

// FlowsConfig contains settings for the issuance and move workflows
type FlowsConfig struct {
	// SagaTimeout bounds a whole workflow run, including every session round trip.
	SagaTimeout time.Duration `yaml:"saga_timeout" default:"5m"`
	Notary      string        `yaml:"notary" default:"local-notary"`
}

// AuthConfig holds HTTP API authentication configuration
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	JWTSecretEnv string `yaml:"jwt_secret_env" default:"TOKEN_NODE_JWT_SECRET"`
	Issuer       string `yaml:"issuer"`
}

// KeyManagementConfig names where the master key for stored private keys lives
type KeyManagementConfig struct {
	MasterKeyEnv string `yaml:"master_key_env" default:"TOKEN_NODE_MASTER_KEY" validate:"required"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled     bool   `yaml:"enabled" default:"true"`
	MetricsPath string `yaml:"metrics_path" default:"/metrics"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// Load reads the node configuration from a YAML file, applies defaults and validates it.
func Load(path string) (*NodeConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML bytes into a validated NodeConfig.
func Parse(raw []byte) (*NodeConfig, error) {
	var cfg NodeConfig
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *NodeConfig) validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Peering.Peers))
	for _, p := range c.Peering.Peers {
		if _, ok := seen[p.PartyID]; ok {
			return fmt.Errorf("duplicate peer %s", p.PartyID)
		}
		seen[p.PartyID] = struct{}{}
	}
	if c.Auth.Enabled && c.Auth.JWTSecretEnv == "" {
		return errors.New("auth enabled without jwt_secret_env")
	}
	return nil
}

// GetConnectionString returns a postgres DSN for the database config
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}
