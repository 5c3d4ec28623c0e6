package planner

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// LivenessProber reports whether a live instance of the target system is
// reachable. Live means planning must not mutate the tree.
type LivenessProber interface {
	Probe(ctx context.Context) (live bool, detail string)
}

// HTTPProber issues a GET against a health URL. Any HTTP response counts as
// live; timeouts and refused connections count as safe.
type HTTPProber struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// NewHTTPProber returns a prober for url with the given bound.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{URL: url, Timeout: timeout, Client: &http.Client{}}
}

func (p *HTTPProber) Probe(ctx context.Context) (bool, string) {
	if p.URL == "" {
		return false, "no health url configured"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false, fmt.Sprintf("invalid health url: %v", err)
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("unreachable: %v", err)
	}
	resp.Body.Close()
	return true, fmt.Sprintf("%s responded %s", p.URL, resp.Status)
}

// staticProber is used when no health URL is set.
type staticProber struct{}

func (staticProber) Probe(context.Context) (bool, string) {
	return false, "no health url configured"
}
