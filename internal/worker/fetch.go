package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sethvargo/go-retry"

	"tuesearch/internal/config"
)

// ErrNotHTML is returned when the response is not an HTML page.
var ErrNotHTML = errors.New("response is not html")

// Fetcher downloads pages. Static HTTP is tried first with a retry
// budget; when it fails and a browser endpoint is configured, the page
// is rendered headless instead.
type Fetcher struct {
	cfg    config.FetchConfig
	rod    config.RodConfig
	client *http.Client

	fetchTimeout  time.Duration
	renderTimeout time.Duration
}

func NewFetcher(cfg *config.Config) *Fetcher {
	f := &Fetcher{
		cfg:           cfg.Fetch,
		rod:           cfg.Rod,
		fetchTimeout:  cfg.FetchTimeout(),
		renderTimeout: cfg.RenderTimeout(),
	}
	f.client = &http.Client{
		Timeout: f.fetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			limit := f.cfg.RedirectLimit
			if limit <= 0 {
				limit = 10
			}
			if len(via) >= limit {
				return fmt.Errorf("stopped after %d redirects", limit)
			}
			return nil
		},
	}
	return f
}

// retryableStatus reports whether the status code is in the configured
// retry list (rate limiting and transient server errors).
func (f *Fetcher) retryableStatus(status int) bool {
	for _, s := range f.cfg.RetryStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// Fetch downloads one page and returns its HTML. Non-2xx responses and
// non-HTML content types fail; configured statuses are retried with
// exponential backoff before the browser fallback kicks in.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	html, err := f.fetchStatic(ctx, pageURL)
	if err == nil {
		return html, nil
	}
	if errors.Is(err, ErrNotHTML) || !f.rod.Enabled {
		return "", err
	}
	return f.FetchRendered(ctx, pageURL)
}

// RenderEnabled reports whether the headless fallback is configured.
func (f *Fetcher) RenderEnabled() bool {
	return f.rod.Enabled
}

// FetchRendered renders the page in the headless browser after a bounded
// politeness pause. Also used as a second pass when the static rendition
// was classified irrelevant, in case the content is script-built.
func (f *Fetcher) FetchRendered(ctx context.Context, pageURL string) (string, error) {
	f.randomSleep(ctx)
	return f.fetchRendered(ctx, pageURL)
}

func (f *Fetcher) fetchStatic(ctx context.Context, pageURL string) (string, error) {
	retries := f.cfg.Retries
	if retries < 0 {
		retries = 0
	}
	backoff := retry.WithMaxRetries(uint64(retries), retry.NewExponential(f.backoffBase()))

	var html string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return err
		}
		for k, v := range f.cfg.Headers {
			req.Header.Set(k, v)
		}
		if f.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", f.cfg.UserAgent)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if f.retryableStatus(resp.StatusCode) {
			return retry.RetryableError(fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		ct := resp.Header.Get("Content-Type")
		if ct != "" && !strings.Contains(ct, "html") {
			return fmt.Errorf("%w: %s", ErrNotHTML, ct)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		html = string(body)
		return nil
	})
	if err != nil {
		return "", err
	}
	return html, nil
}

// fetchRendered loads the page in a headless browser and returns the
// rendered DOM.
func (f *Fetcher) fetchRendered(ctx context.Context, pageURL string) (string, error) {
	browser := rod.New().Context(ctx).Timeout(f.renderTimeout)
	if f.rod.BrowserURL != "" {
		browser = browser.ControlURL(f.rod.BrowserURL)
	}
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect browser: %w", err)
	}
	defer browser.MustClose()

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return "", err
	}
	defer page.MustClose()

	if err := page.WaitLoad(); err != nil {
		return "", err
	}
	return page.HTML()
}

func (f *Fetcher) backoffBase() time.Duration {
	if f.cfg.BackoffFactorMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(f.cfg.BackoffFactorMs) * time.Millisecond
}

// randomSleep pauses within the configured window before hitting the
// same host again with the browser.
func (f *Fetcher) randomSleep(ctx context.Context) {
	min, max := f.cfg.RandomSleepMinMs, f.cfg.RandomSleepMaxMs
	if max <= min {
		return
	}
	d := time.Duration(min+rand.Intn(max-min)) * time.Millisecond
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
