package api

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"
)

// TLSOptions configures the transport used by NewHTTPClient. All paths are
// optional; with none set the system roots are used and no client
// certificate is presented.
type TLSOptions struct {
	// CAFile is a PEM bundle used instead of the system roots.
	CAFile string
	// CertFile and KeyFile hold a client certificate for mutual TLS.
	CertFile string
	KeyFile  string
	// Timeout bounds every single request. Zero means 10 seconds.
	Timeout time.Duration
}

// NewHTTPClient builds the *http.Client shared by all TapKeeper calls. It
// keeps cookies in memory so the backend session established by the login
// flow is sent with later vault requests.
func NewHTTPClient(opts TLSOptions) (*http.Client, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if opts.CAFile != "" {
		caCert, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA cert")
		}
		tlsConfig.RootCAs = caPool
	}

	if opts.CertFile != "" || opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
		Jar:       jar,
		Timeout:   timeout,
	}, nil
}
