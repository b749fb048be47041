// Package dictionary implements gateway.Dictionary over the Free Dictionary API
// (dictionaryapi.dev).
package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	gateway "github.com/eugener/meridian/internal"
	"github.com/eugener/meridian/internal/upstream"
)

const (
	// DefaultBaseURL is the public Free Dictionary API.
	DefaultBaseURL = "https://api.dictionaryapi.dev"

	upstreamName = "dictionary"
	entriesPath  = "/api/v2/entries/en/{word}"
)

// Client is a dictionaryapi.dev adapter.
type Client struct {
	http  *resty.Client
	guard *upstream.Guard
}

var _ gateway.Dictionary = (*Client)(nil)

// New creates a dictionary Client. An empty baseURL uses DefaultBaseURL;
// a nil guard runs calls without timeout or breaker.
func New(baseURL string, transport http.RoundTripper, guard *upstream.Guard) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:  upstream.NewClient(baseURL, transport),
		guard: guard,
	}
}

// Define looks up word. A 4xx from the provider other than 429 is reported
// as gateway.ErrNotFound; every other failure as gateway.ErrUpstream.
func (c *Client) Define(ctx context.Context, word string) ([]gateway.DictionaryEntry, error) {
	var entries []gateway.DictionaryEntry
	err := c.guard.Do(ctx, upstreamName, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParam("word", word).
			Get(entriesPath)
		if err != nil {
			return fmt.Errorf("dictionary: %w: %w", gateway.ErrUpstream, err)
		}

		code := resp.StatusCode()
		switch {
		case code >= 400 && code < 500 && code != http.StatusTooManyRequests:
			return fmt.Errorf("dictionary: %w: %w", gateway.ErrNotFound, upstream.NewAPIError(upstreamName, resp))
		case code < 200 || code >= 300:
			return fmt.Errorf("dictionary: %w: %w", gateway.ErrUpstream, upstream.NewAPIError(upstreamName, resp))
		}

		if err := json.Unmarshal(resp.Body(), &entries); err != nil {
			return fmt.Errorf("dictionary: decode response: %w: %w", gateway.ErrUpstream, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("dictionary: no entries for %q: %w", word, gateway.ErrNotFound)
	}
	normalize(entries)
	return entries, nil
}

// normalize replaces nil lists with empty ones so they encode as [].
func normalize(entries []gateway.DictionaryEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Meanings == nil {
			e.Meanings = []gateway.Meaning{}
		}
		for j := range e.Meanings {
			m := &e.Meanings[j]
			if m.Definitions == nil {
				m.Definitions = []gateway.Definition{}
			}
			for k := range m.Definitions {
				d := &m.Definitions[k]
				if d.Synonyms == nil {
					d.Synonyms = []string{}
				}
				if d.Antonyms == nil {
					d.Antonyms = []string{}
				}
			}
		}
	}
}
