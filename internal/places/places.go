// Package places searches for businesses through the Places text search API.
package places

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"googlemaps.github.io/maps"
)

// DefaultTimeout bounds one search including paging.
const DefaultTimeout = 10 * time.Second

// Searcher finds places for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]domain.Place, error)
	Enabled() bool
}

// Config holds the Places API settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client wraps the maps client. A client without a key returns empty results.
type Client struct {
	maps    *maps.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Places client. A missing key yields a disabled client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{timeout: cfg.Timeout, logger: logger}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		logger.Warn("GOOGLE_PLACES_KEY not set, competitor locations disabled")
		return c, nil
	}

	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}
	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	c.maps = mc
	return c, nil
}

// Enabled reports whether a key is configured.
func (c *Client) Enabled() bool { return c.maps != nil }

// Search returns at most max places, following next-page tokens as needed.
func (c *Client) Search(ctx context.Context, query string, max int) ([]domain.Place, error) {
	if c.maps == nil || max <= 0 {
		return []domain.Place{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := make([]domain.Place, 0, max)
	req := &maps.TextSearchRequest{Query: query}
	for {
		resp, err := c.maps.TextSearch(ctx, req)
		if err != nil {
			c.logger.Warn("Place search failed", "query", query, "error", err)
			return out, fmt.Errorf("text search %q: %w", query, err)
		}
		for _, r := range resp.Results {
			out = append(out, domain.Place{
				Name:        r.Name,
				Address:     r.FormattedAddress,
				Rating:      float64(r.Rating),
				ReviewCount: r.UserRatingsTotal,
				Lat:         r.Geometry.Location.Lat,
				Lng:         r.Geometry.Location.Lng,
			})
			if len(out) >= max {
				return out, nil
			}
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		req = &maps.TextSearchRequest{PageToken: resp.NextPageToken}
	}
}

var cityCenters = map[string][2]float64{
	"Stockholm": {59.3293, 18.0686},
	"Göteborg":  {57.7089, 11.9746},
	"Malmö":     {55.6050, 13.0038},
	"Uppsala":   {59.8586, 17.6389},
	"Västerås":  {59.6099, 16.5448},
	"Örebro":    {59.2753, 15.2134},
	"Linköping": {58.4108, 15.6214},
}

// Center returns the map center for a result set: the first hit, else a known
// city, else Stockholm.
func Center(places []domain.Place, city string) (float64, float64) {
	if len(places) > 0 && (places[0].Lat != 0 || places[0].Lng != 0) {
		return places[0].Lat, places[0].Lng
	}
	if c, ok := cityCenters[strings.TrimSpace(city)]; ok {
		return c[0], c[1]
	}
	c := cityCenters["Stockholm"]
	return c[0], c[1]
}

var _ Searcher = (*Client)(nil)
