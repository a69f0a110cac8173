// Package sites maps URLs to tracked-site identifiers.
package sites

import (
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultDomains is the fixed set of social-media base domains tracked out
// of the box.
var DefaultDomains = []string{
	"x.com",
	"twitter.com",
	"facebook.com",
	"instagram.com",
	"tiktok.com",
	"linkedin.com",
}

// DefaultCacheSize bounds the URL classification cache.
const DefaultCacheSize = 1024

type result struct {
	site string
	ok   bool
}

// Classifier decides whether a URL belongs to a tracked site. Classification
// is pure and deterministic; the cache only avoids re-parsing hot URLs.
type Classifier struct {
	domains []string
	cache   *lru.Cache[string, result]
}

// NewClassifier builds a classifier over the given tracked base domains.
// An empty list falls back to DefaultDomains.
func NewClassifier(domains []string, cacheSize int) (*Classifier, error) {
	if len(domains) == 0 {
		domains = DefaultDomains
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			normalized = append(normalized, d)
		}
	}

	cache, err := lru.New[string, result](cacheSize)
	if err != nil {
		return nil, err
	}

	return &Classifier{domains: normalized, cache: cache}, nil
}

// Classify returns the tracked base domain a URL belongs to. Matching is
// substring containment on the hostname, so subdomains match — and so do
// lookalike hosts ("x.com.evil.example" matches "x.com"); that over-match is
// an accepted policy of the tracked-domain check. Malformed URLs classify as
// untracked; Classify never fails.
func (c *Classifier) Classify(rawURL string) (string, bool) {
	if cached, ok := c.cache.Get(rawURL); ok {
		return cached.site, cached.ok
	}

	site, ok := c.classify(rawURL)
	c.cache.Add(rawURL, result{site: site, ok: ok})
	return site, ok
}

func (c *Classifier) classify(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}

	for _, d := range c.domains {
		if strings.Contains(host, d) {
			return d, true
		}
	}
	return "", false
}

// Domains returns the tracked base domains.
func (c *Classifier) Domains() []string {
	out := make([]string, len(c.domains))
	copy(out, c.domains)
	return out
}
