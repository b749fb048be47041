// Package quotable implements gateway.QuoteSource over the Quotable API.
package quotable

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	gateway "github.com/eugener/meridian/internal"
	"github.com/eugener/meridian/internal/upstream"
)

const (
	// DefaultBaseURL is the public Quotable API.
	DefaultBaseURL = "https://api.quotable.io"

	upstreamName = "quote"
	randomPath   = "/quotes/random"
)

var errMalformed = errors.New("malformed quote response")

// Client is a Quotable adapter.
type Client struct {
	http  *resty.Client
	guard *upstream.Guard
}

var _ gateway.QuoteSource = (*Client)(nil)

// New creates a quote Client. An empty baseURL uses DefaultBaseURL.
func New(baseURL string, transport http.RoundTripper, guard *upstream.Guard) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:  upstream.NewClient(baseURL, transport),
		guard: guard,
	}
}

// RandomQuote returns the first quote of the provider's list. A bare object
// is accepted as a one-element list.
func (c *Client) RandomQuote(ctx context.Context) (*gateway.Quote, error) {
	var q *gateway.Quote
	err := c.guard.Do(ctx, upstreamName, func(ctx context.Context) error {
		resp, err := c.http.R().SetContext(ctx).Get(randomPath)
		if err != nil {
			return fmt.Errorf("quote: %w: %w", gateway.ErrUpstream, err)
		}
		if code := resp.StatusCode(); code < 200 || code >= 300 {
			return fmt.Errorf("quote: %w: %w", gateway.ErrUpstream, upstream.NewAPIError(upstreamName, resp))
		}

		q, err = parse(resp.Body())
		if err != nil {
			return fmt.Errorf("quote: %w: %w", gateway.ErrUpstream, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func parse(body []byte) (*gateway.Quote, error) {
	if !gjson.ValidBytes(body) {
		return nil, errMalformed
	}
	first := gjson.ParseBytes(body)
	if first.IsArray() {
		items := first.Array()
		if len(items) == 0 {
			return nil, errors.New("empty quote list")
		}
		first = items[0]
	}
	if !first.IsObject() {
		return nil, errMalformed
	}
	return &gateway.Quote{
		Quote:  first.Get("content").String(),
		Author: first.Get("author").String(),
	}, nil
}
