package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsCache fetches and caches robots.txt per host. Hosts whose
// robots.txt cannot be fetched are treated as fully allowed, matching
// common crawler practice for unreachable policy files.
type RobotsCache struct {
	userAgent string
	client    *http.Client

	mu    sync.Mutex
	hosts map[string]*robotstxt.RobotsData
}

func NewRobotsCache(userAgent string, timeout time.Duration) *RobotsCache {
	return &RobotsCache{
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		hosts:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether the crawler may fetch pageURL.
func (r *RobotsCache) Allowed(ctx context.Context, pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}

	data := r.robotsFor(ctx, u)
	if data == nil {
		return true
	}
	return data.TestAgent(u.Path, r.userAgent)
}

func (r *RobotsCache) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	r.mu.Lock()
	if data, ok := r.hosts[key]; ok {
		r.mu.Unlock()
		return data
	}
	r.mu.Unlock()

	data := r.fetch(ctx, key)

	r.mu.Lock()
	r.hosts[key] = data
	r.mu.Unlock()
	return data
}

func (r *RobotsCache) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/robots.txt", origin), nil)
	if err != nil {
		return nil
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data
}
