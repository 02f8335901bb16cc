// Package notify pings search engines after a sitemap index is published.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Engine is one ping endpoint. Endpoint contains a {sitemap} placeholder
// that is replaced with the query-escaped index URL.
type Engine struct {
	Name     string
	Endpoint string
	Enabled  bool
}

func (e Engine) URL(sitemapURL string) string {
	return strings.ReplaceAll(e.Endpoint, "{sitemap}", url.QueryEscape(sitemapURL))
}

type Options struct {
	Google     bool
	Yahoo      bool
	YahooAppID string
	Bing       bool
	Ask        bool
	Timeout    time.Duration
}

// Engines returns the known ping endpoints, enabled according to opts.
// Yahoo stays disabled without an application id.
func Engines(opts Options) []Engine {
	return []Engine{
		{Name: "google", Endpoint: "http://www.google.com/webmasters/tools/ping?sitemap={sitemap}", Enabled: opts.Google},
		{
			Name:     "yahoo",
			Endpoint: "http://search.yahooapis.com/SiteExplorerService/V1/updateNotification?appid=" + url.QueryEscape(opts.YahooAppID) + "&url={sitemap}",
			Enabled:  opts.Yahoo && opts.YahooAppID != "",
		},
		{Name: "bing", Endpoint: "http://www.bing.com/ping?sitemap={sitemap}", Enabled: opts.Bing},
		{Name: "ask", Endpoint: "http://submissions.ask.com/ping?sitemap={sitemap}", Enabled: opts.Ask},
	}
}

// Pinger sends one GET per enabled engine. Requests are not retried.
type Pinger struct {
	client  *http.Client
	engines []Engine
	logger  *zap.SugaredLogger
}

func NewPinger(engines []Engine, timeout time.Duration, logger *zap.SugaredLogger) *Pinger {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pinger{
		client:  &http.Client{Timeout: timeout},
		engines: engines,
		logger:  logger,
	}
}

// Notify pings every enabled engine and returns one error per failed ping.
func (p *Pinger) Notify(ctx context.Context, sitemapURL string) []error {
	var errs []error
	for _, e := range p.engines {
		if !e.Enabled {
			continue
		}
		if err := p.ping(ctx, e, sitemapURL); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
			continue
		}
		p.logger.Infow("search engine notified", "engine", e.Name, "sitemap", sitemapURL)
	}
	return errs
}

func (p *Pinger) ping(ctx context.Context, e Engine, sitemapURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.URL(sitemapURL), nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
