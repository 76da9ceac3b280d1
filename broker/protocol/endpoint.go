package protocol

import (
	"net"
	"net/url"
	"strings"
)

// Endpoint defines an accessible broker address. It is a URL, where the
// scheme defines the transport of the connection. At present, supported
// schemes are:
//
//   - stream://host(:port)
//   - stream+tls://host(:port)
//
// If no port is given, DefaultPort (or DefaultTLSPort) applies.
type Endpoint string

// Validate returns an error if the Endpoint is not well-formed.
func (ep Endpoint) Validate() error {
	var _, err = ep.parse()
	return err
}

// URL returns the Endpoint as a URL. The Endpoint must Validate, or URL panics.
func (ep Endpoint) URL() *url.URL {
	if url, err := ep.parse(); err == nil {
		return url
	} else {
		panic(err.Error())
	}
}

// IsTLS returns whether the Endpoint scheme requests a TLS transport.
func (ep Endpoint) IsTLS() bool {
	return strings.HasSuffix(ep.URL().Scheme, "+tls")
}

// HostPort returns the "host:port" dial address of the Endpoint, filling in
// the scheme's default port if the Endpoint doesn't specify one.
func (ep Endpoint) HostPort() string {
	var u = ep.URL()
	if u.Port() != "" {
		return u.Host
	} else if ep.IsTLS() {
		return net.JoinHostPort(u.Hostname(), DefaultTLSPort)
	}
	return net.JoinHostPort(u.Hostname(), DefaultPort)
}

func (ep Endpoint) String() string { return string(ep) }

func (ep Endpoint) parse() (*url.URL, error) {
	var url, err = url.Parse(string(ep))
	if err != nil {
		return nil, &ValidationError{Err: err}
	} else if !url.IsAbs() {
		return nil, NewValidationError("not absolute: %s", ep)
	} else if url.Host == "" {
		return nil, NewValidationError("missing host: %s", ep)
	} else if url.Scheme != "stream" && url.Scheme != "stream+tls" {
		return nil, NewValidationError("unsupported scheme %q: %s", url.Scheme, ep)
	}
	return url, nil
}

const (
	// DefaultPort of broker stream connections.
	DefaultPort = "5552"
	// DefaultTLSPort of broker stream connections over TLS.
	DefaultTLSPort = "5551"
)
