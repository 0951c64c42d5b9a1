package gateway

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// NewHTTPClient builds the client shared by the session and the gateway.
// The cookie jar is what carries the session credentials on every request.
func NewHTTPClient(timeout time.Duration, insecureTLS bool) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureTLS {
		// Self-signed certificates on staging servers
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Jar:       jar,
		Transport: transport,
	}, nil
}
