// Package clients holds outbound HTTP collaborators.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stylehub/coordinator/common/cache"
	"github.com/stylehub/coordinator/common/config"
	"github.com/stylehub/coordinator/common/logger"
)

// NameLookup resolves licensor/property codes to display names. The
// backing service may be down; callers treat every miss as "name
// unknown", never as a classification failure.
type NameLookup interface {
	ResolveName(ctx context.Context, kind, code string) (string, bool, error)
}

// LookupClient is the HTTP implementation of NameLookup with a
// read-through cache.
type LookupClient struct {
	baseURL  string
	http     *http.Client
	cache    cache.Cache
	cacheTTL config.LookupConfig
	log      *logger.Logger
}

// NewLookupClient creates a lookup client. An empty base URL disables
// lookups entirely (every resolve misses).
func NewLookupClient(cfg config.LookupConfig, c cache.Cache, log *logger.Logger) *LookupClient {
	return &LookupClient{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:    c,
		cacheTTL: cfg,
		log:      log,
	}
}

type lookupResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ResolveName resolves one short code of the given kind ("licensor" or
// "property"). Returns found=false on a miss or when the service is
// unavailable; the error is informational only.
func (c *LookupClient) ResolveName(ctx context.Context, kind, code string) (string, bool, error) {
	if c.baseURL == "" || code == "" {
		return "", false, nil
	}

	cacheKey := fmt.Sprintf("lookup:%s:%s", kind, code)
	if c.cache != nil {
		if val, ok, _ := c.cache.Get(ctx, cacheKey); ok {
			return string(val), true, nil
		}
	}

	endpoint := fmt.Sprintf("%s/api/v1/names/%s/%s", c.baseURL, url.PathEscape(kind), url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, fmt.Errorf("build lookup request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("name lookup unavailable", "kind", kind, "code", code, "error", err)
		return "", false, fmt.Errorf("name lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("name lookup failed", "kind", kind, "code", code, "status", resp.StatusCode)
		return "", false, fmt.Errorf("name lookup returned %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, fmt.Errorf("decode lookup response: %w", err)
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, cacheKey, []byte(body.Name), c.cacheTTL.CacheTTL)
	}

	return body.Name, true, nil
}
