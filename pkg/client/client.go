package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/surflamp/surf-lamp-processor/internal/catalog"
)

const defaultUserAgent = "SurfLamp-Agent/1.0"

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sleeper is the injected sleep used for backoff and pacing, so tests can
// observe the exact delays without waiting them out.
type Sleeper func(d time.Duration)

type Config struct {
	DefaultTimeout time.Duration
	SlowTimeout    time.Duration
	MaxAttempts    int
	RateLimitBase  time.Duration
	TransientDelay time.Duration
	InterCallDelay time.Duration
	UserAgent      string
}

// SourceClient issues one bounded GET per Fetch against a catalog endpoint.
// Sources are fetched strictly one at a time per cycle; the mandatory
// inter-call delay after each network exchange protects shared provider rate
// limits across the whole cycle, not just within one retry sequence.
type SourceClient struct {
	clients map[catalog.TimeoutClass]HTTPClient
	cfg     Config
	sleep   Sleeper
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *SourceClient {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &SourceClient{
		clients: map[catalog.TimeoutClass]HTTPClient{
			catalog.TimeoutDefault: &http.Client{Timeout: cfg.DefaultTimeout},
			catalog.TimeoutSlow:    &http.Client{Timeout: cfg.SlowTimeout},
		},
		cfg:    cfg,
		sleep:  time.Sleep,
		logger: logger,
	}
}

// Fetch retrieves and decodes one endpoint. Every outcome is returned as a
// value: a decoded JSON payload or a tagged *SourceError. It never panics and
// never lets a transport error escape untagged; callers read the kind with
// KindOf.
func (c *SourceClient) Fetch(ctx context.Context, ep catalog.Endpoint) (any, error) {
	if err := validateEndpoint(ep); err != nil {
		c.logger.Error("Endpoint rejected before fetch",
			zap.String("endpoint", ep.URL),
			zap.Error(err))
		return nil, &SourceError{Kind: KindConfiguration, Endpoint: ep.URL, Err: err}
	}

	issued := false
	defer func() {
		if issued {
			c.sleep(c.cfg.InterCallDelay)
		}
	}()

	httpClient := c.clients[ep.TimeoutClass]
	if httpClient == nil {
		httpClient = c.clients[catalog.TimeoutDefault]
	}

	var last error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
		if err != nil {
			return nil, &SourceError{Kind: KindConfiguration, Endpoint: ep.URL, Err: err}
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		if ep.APIKeyEnv != "" {
			if key := strings.TrimSpace(os.Getenv(ep.APIKeyEnv)); key != "" {
				req.Header.Set("Authorization", "Bearer "+key)
			}
		}

		resp, err := httpClient.Do(req)
		issued = true
		if err != nil {
			last = &SourceError{Kind: KindUnreachable, Endpoint: ep.URL, Err: err}
			c.logger.Warn("Source request failed",
				zap.String("endpoint", ep.URL),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if attempt < c.cfg.MaxAttempts {
				c.sleep(c.cfg.TransientDelay)
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			drain(resp)
			last = &SourceError{Kind: KindRateLimited, Endpoint: ep.URL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
			delay := time.Duration(float64(c.cfg.RateLimitBase) * math.Pow(2, float64(attempt-1)))
			c.logger.Warn("Source rate limited",
				zap.String("endpoint", ep.URL),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay))
			c.sleep(delay)
			continue
		}

		if resp.StatusCode >= 500 {
			drain(resp)
			last = &SourceError{Kind: KindUnreachable, Endpoint: ep.URL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
			c.logger.Warn("Source server error",
				zap.String("endpoint", ep.URL),
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode))
			if attempt < c.cfg.MaxAttempts {
				c.sleep(c.cfg.TransientDelay)
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			drain(resp)
			return nil, &SourceError{Kind: KindParse, Endpoint: ep.URL, Err: fmt.Errorf("unexpected HTTP %d", resp.StatusCode)}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			last = &SourceError{Kind: KindUnreachable, Endpoint: ep.URL, Err: err}
			if attempt < c.cfg.MaxAttempts {
				c.sleep(c.cfg.TransientDelay)
			}
			continue
		}

		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, &SourceError{Kind: KindParse, Endpoint: ep.URL, Err: err}
		}

		c.logger.Debug("Source fetch succeeded",
			zap.String("endpoint", ep.URL),
			zap.Int("attempt", attempt),
			zap.Int("bytes", len(body)))
		return payload, nil
	}

	return nil, last
}

// validateEndpoint is the fail-fast unit guard: a wind provider that can
// answer in more than one unit system must have the selection pinned in the
// URL before we ever talk to it.
func validateEndpoint(ep catalog.Endpoint) error {
	u, err := url.Parse(ep.URL)
	if err != nil {
		return fmt.Errorf("endpoint URL invalid: %w", err)
	}
	query := u.Query()
	for _, pair := range ep.RequiredQuery {
		key, want, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("required query %q is not key=value", pair)
		}
		if query.Get(key) != want {
			return fmt.Errorf("endpoint is missing required query %s=%s", key, want)
		}
	}
	return nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
