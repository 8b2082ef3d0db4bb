package config

import (
	"fmt"
	"net"
	"time"
)

// HTTPServerConfig configures the REST API server.
type HTTPServerConfig struct {
	Port              string        `envconfig:"PORT" default:"8080"`
	Host              string        `envconfig:"HOST" default:"0.0.0.0"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes    int           `envconfig:"MAX_HEADER_BYTES" default:"524288" validate:"min=1"` // 512KB

	// MaxBodyBytes caps request bodies; bulk order imports are the largest payloads.
	MaxBodyBytes int64 `envconfig:"MAX_BODY_BYTES" default:"4194304" validate:"min=1024"`

	TLSEnabled bool   `envconfig:"TLS_ENABLED" default:"false"`
	TLSCert    string `envconfig:"TLS_CERT_FILE"`
	TLSKey     string `envconfig:"TLS_KEY_FILE"`
}

// Addr returns the listen address.
func (c *HTTPServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Validate performs validation on the HTTPServerConfig.
func (c *HTTPServerConfig) Validate(environment string) error {
	if err := validatePort(c.Port, "http server"); err != nil {
		return err
	}

	if err := validateHost(c.Host, "http server"); err != nil {
		return err
	}

	if environment == EnvironmentProduction && !c.TLSEnabled {
		return fmt.Errorf("TLS must be enabled in production environment")
	}

	if c.TLSEnabled && (c.TLSCert == "" || c.TLSKey == "") {
		return fmt.Errorf("TLS enabled but cert or key file not specified")
	}

	return nil
}

// RPCServerConfig configures the gRPC segmentation server.
type RPCServerConfig struct {
	Port string `envconfig:"PORT" default:"50051"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	MaxConcurrentStreams uint32        `envconfig:"MAX_CONCURRENT_STREAMS" default:"100"`
	KeepaliveTime        time.Duration `envconfig:"KEEPALIVE_TIME" default:"120s"`
	KeepaliveTimeout     time.Duration `envconfig:"KEEPALIVE_TIMEOUT" default:"20s"`
	MaxConnectionAge     time.Duration `envconfig:"MAX_CONNECTION_AGE" default:"300s"`

	// Reflection exposes the service descriptors to grpcurl-like tools.
	Reflection bool `envconfig:"REFLECTION" default:"true"`
}

// Addr returns the listen address.
func (c *RPCServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Validate performs validation on the RPCServerConfig.
func (c *RPCServerConfig) Validate() error {
	if err := validatePort(c.Port, "rpc server"); err != nil {
		return err
	}

	if err := validateHost(c.Host, "rpc server"); err != nil {
		return err
	}

	return nil
}
