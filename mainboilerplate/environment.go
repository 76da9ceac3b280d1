package mainboilerplate

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.gazette.dev/streams/broker/client"
	pb "go.gazette.dev/streams/broker/protocol"
)

// EnvironmentConfig configures the client Environment of a stream broker cluster.
type EnvironmentConfig struct {
	Endpoints   []string      `long:"endpoint" env:"ENDPOINTS" env-delim:"," default:"stream://localhost:5552" description:"Broker endpoint, attempted in the order given. May be repeated"`
	User        string        `long:"user" env:"USER" default:"guest" description:"User to authenticate as"`
	Password    string        `long:"password" env:"PASSWORD" default:"guest" description:"Password of the user"`
	VirtualHost string        `long:"vhost" env:"VHOST" default:"/" description:"Virtual host to connect to"`
	Heartbeat   time.Duration `long:"heartbeat" env:"HEARTBEAT" default:"60s" description:"Interval of connection heartbeats. Zero disables heartbeats"`
	ClientName  string        `long:"client-name" env:"CLIENT_NAME" description:"Name of connections, shown in broker management tooling. Generated if not set"`
	ResolveTo   string        `long:"resolve-to" env:"RESOLVE_TO" description:"If set, dial this endpoint in place of every broker endpoint (eg, a load balancer)"`

	TLS struct {
		CAFile             string `long:"tls.ca-file" env:"TLS_CA_FILE" description:"PEM bundle of certificate authorities used to verify brokers. System roots are used if not set"`
		CertFile           string `long:"tls.cert-file" env:"TLS_CERT_FILE" description:"PEM certificate presented to brokers"`
		KeyFile            string `long:"tls.key-file" env:"TLS_KEY_FILE" description:"PEM private key of the certificate presented to brokers"`
		ServerName         string `long:"tls.server-name" env:"TLS_SERVER_NAME" description:"Server name to verify broker certificates against. The endpoint host is used if not set"`
		InsecureSkipVerify bool   `long:"tls.insecure-skip-verify" env:"TLS_INSECURE_SKIP_VERIFY" description:"Don't verify broker certificates (testing only)"`
	}

	Cache struct {
		Size int           `long:"cache.size" env:"CACHE_SIZE" default:"0" description:"Size of the stream metadata cache. If <= zero, no cache is used"`
		TTL  time.Duration `long:"cache.ttl" env:"CACHE_TTL" default:"1m" description:"Time-to-live of stream metadata cache entries"`
	}
}

// BuildEndpoints returns the configured Endpoints.
func (c *EnvironmentConfig) BuildEndpoints() []pb.Endpoint {
	var out = make([]pb.Endpoint, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		out[i] = pb.Endpoint(ep)
	}
	return out
}

// BuildParameters returns ConnectionParameters of the configuration,
// loading TLS certificates from files as required. A TLS configuration is
// built only if a TLS option is set, or if any Endpoint uses TLS.
func (c *EnvironmentConfig) BuildParameters() (pb.ConnectionParameters, error) {
	var params = pb.ConnectionParameters{
		User:        c.User,
		Password:    c.Password,
		VirtualHost: c.VirtualHost,
		Heartbeat:   c.Heartbeat,
		ClientName:  c.ClientName,
	}
	if c.ResolveTo != "" {
		params.AddressResolver = pb.StaticAddressResolver(c.ResolveTo)
	}

	var wantTLS = c.TLS.CAFile != "" || c.TLS.CertFile != "" || c.TLS.KeyFile != "" ||
		c.TLS.ServerName != "" || c.TLS.InsecureSkipVerify
	for _, ep := range c.BuildEndpoints() {
		wantTLS = wantTLS || ep.IsTLS()
	}
	if !wantTLS {
		return params, nil
	}

	var cfg = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         c.TLS.ServerName,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}
	if c.TLS.CAFile != "" {
		var pem, err = os.ReadFile(c.TLS.CAFile)
		if err != nil {
			return params, errors.Wrap(err, "reading TLS CA file")
		}
		cfg.RootCAs = x509.NewCertPool()

		if !cfg.RootCAs.AppendCertsFromPEM(pem) {
			return params, errors.Errorf("no certificates found in TLS CA file %s", c.TLS.CAFile)
		}
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return params, errors.New("expected both or neither of TLS cert and key files")
	} else if c.TLS.CertFile != "" {
		var cert, err = tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
		if err != nil {
			return params, errors.Wrap(err, "loading TLS key pair")
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	params.TLS = cfg

	return params, nil
}

// BuildCache returns a StreamInfoCache of the configuration, or nil if
// caching is disabled.
func (c *EnvironmentConfig) BuildCache() *client.StreamInfoCache {
	if c.Cache.Size <= 0 {
		return nil
	}
	return client.NewStreamInfoCache(c.Cache.Size, c.Cache.TTL)
}

// BuildEnvironment builds a client.Environment of the configuration.
// EnvironmentArgs Endpoints, Parameters and Cache are populated from the
// configuration, while Dialer and session factories are taken from |args|.
func (c *EnvironmentConfig) BuildEnvironment(ctx context.Context, args client.EnvironmentArgs) (*client.Environment, error) {
	var params, err = c.BuildParameters()
	if err != nil {
		return nil, err
	}
	args.Endpoints = c.BuildEndpoints()
	args.Parameters = params
	args.Cache = c.BuildCache()

	return client.NewEnvironment(ctx, args)
}

// MustEnvironment composes BuildEnvironment with Must.
func (c *EnvironmentConfig) MustEnvironment(ctx context.Context, args client.EnvironmentArgs) *client.Environment {
	var env, err = c.BuildEnvironment(ctx, args)
	Must(err, "failed to build stream environment", "endpoints", c.Endpoints)
	return env
}
