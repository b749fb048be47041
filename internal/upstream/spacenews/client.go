// Package spacenews implements gateway.NewsSource over the Spaceflight News API.
package spacenews

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	gateway "github.com/eugener/meridian/internal"
	"github.com/eugener/meridian/internal/upstream"
)

const (
	// DefaultBaseURL is the public Spaceflight News API.
	DefaultBaseURL = "https://api.spaceflightnewsapi.net"
	// DefaultLimit is the number of headlines returned when none is configured.
	DefaultLimit = 5

	upstreamName = "spaceflight_news"
	articlesPath = "/v4/articles/"
)

// Client is a Spaceflight News adapter.
type Client struct {
	http  *resty.Client
	guard *upstream.Guard
}

var _ gateway.NewsSource = (*Client)(nil)

// New creates a news Client. An empty baseURL uses DefaultBaseURL.
func New(baseURL string, transport http.RoundTripper, guard *upstream.Guard) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:  upstream.NewClient(baseURL, transport),
		guard: guard,
	}
}

// Headlines returns the titles of the latest articles in provider order,
// at most limit of them. limit <= 0 uses DefaultLimit.
func (c *Client) Headlines(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var titles []string
	err := c.guard.Do(ctx, upstreamName, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("limit", strconv.Itoa(limit)).
			Get(articlesPath)
		if err != nil {
			return fmt.Errorf("spaceflight news: %w: %w", gateway.ErrUpstream, err)
		}
		if code := resp.StatusCode(); code < 200 || code >= 300 {
			return fmt.Errorf("spaceflight news: %w: %w", gateway.ErrUpstream, upstream.NewAPIError(upstreamName, resp))
		}

		titles, err = parse(resp.Body(), limit)
		if err != nil {
			return fmt.Errorf("spaceflight news: %w: %w", gateway.ErrUpstream, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return titles, nil
}

func parse(body []byte, limit int) ([]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("malformed news response")
	}
	results := gjson.GetBytes(body, "results")
	if !results.IsArray() {
		return nil, errors.New("news response has no results list")
	}

	titles := make([]string, 0, limit)
	results.ForEach(func(_, article gjson.Result) bool {
		titles = append(titles, article.Get("title").String())
		return len(titles) < limit
	})
	return titles, nil
}
