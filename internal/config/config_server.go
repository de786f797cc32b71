package config

import (
	"time"

	"github.com/haasonsaas/aisopod/internal/ratelimit"
)

// ServerConfig controls the listeners a gateway process binds: the JSON-RPC
// WebSocket/HTTP port, a gRPC port for internal tooling, and a metrics port.
type ServerConfig struct {
	Host        string `yaml:"host"`
	GRPCPort    int    `yaml:"grpc_port"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`

	// RateLimit bounds inbound JSON-RPC requests per connection.
	RateLimit ratelimit.Config `yaml:"rate_limit"`

	// TLS configures the gateway's HTTP/WS listener. Empty disables TLS.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig configures a certificate pair for the gateway's external listener.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DatabaseConfig configures the Postgres/CockroachDB-compatible session store.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxConnections  int           `yaml:"max_connections"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}
