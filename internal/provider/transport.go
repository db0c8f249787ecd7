package provider

import (
	"fmt"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"golang.org/x/time/rate"
)

// Transport is the shared HTTP client for every outbound call.
// Requests are paced by a token bucket when a rate is configured.
type Transport struct {
	client  Doer
	limiter *rate.Limiter
}

// NewTransport creates a TLS client with a Chrome profile. requestsPerMinute
// of zero disables pacing.
func NewTransport(timeout time.Duration, requestsPerMinute int) (*Transport, error) {
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(timeout.Seconds())),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithNotFollowRedirects(),
	}

	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return NewRateLimited(client, requestsPerMinute), nil
}

// NewRateLimited wraps d so at most requestsPerMinute requests start per minute
func NewRateLimited(d Doer, requestsPerMinute int) *Transport {
	t := &Transport{client: d}
	if requestsPerMinute > 0 {
		burst := requestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst)
	}
	return t
}

// Do waits for the limiter, honoring the request context, then sends req
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return t.client.Do(req)
}
