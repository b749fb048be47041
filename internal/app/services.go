// Package app holds the per-route application services: cache-aside
// orchestration around the upstream adapters, and latency recording.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gateway "github.com/eugener/meridian/internal"
	"github.com/eugener/meridian/internal/cache"
	"github.com/eugener/meridian/internal/telemetry"
)

// DictionaryService serves word lookups, cached under dictionary:<word>.
type DictionaryService struct {
	dict  gateway.Dictionary
	cache *ReadThrough
	rec   *telemetry.RouteRecorder
}

// NewDictionaryService returns a DictionaryService. rec may be nil.
func NewDictionaryService(dict gateway.Dictionary, rt *ReadThrough, rec *telemetry.RouteRecorder) *DictionaryService {
	return &DictionaryService{dict: dict, cache: rt, rec: rec}
}

// Lookup returns the JSON-encoded entries for word. The word is trimmed and
// otherwise used as given; an empty word is gateway.ErrBadRequest.
func (s *DictionaryService) Lookup(ctx context.Context, word string) (Result, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return Result{}, fmt.Errorf("word is required: %w", gateway.ErrBadRequest)
	}

	res, err := s.cache.Get(ctx, cache.DictionaryKey(word), func(ctx context.Context) ([]byte, error) {
		entries, err := s.dict.Define(ctx, word)
		if err != nil {
			return nil, err
		}
		return json.Marshal(entries)
	})
	s.rec.Latency(gateway.RouteDictionary, res.Cache, res.Latency)
	s.rec.CacheResult(gateway.RouteDictionary, res.Cache)
	return res, err
}

// NewsService serves spaceflight headlines, cached under space-news.
type NewsService struct {
	news  gateway.NewsSource
	limit int
	cache *ReadThrough
	rec   *telemetry.RouteRecorder
}

// NewNewsService returns a NewsService fetching limit headlines. rec may be nil.
func NewNewsService(news gateway.NewsSource, limit int, rt *ReadThrough, rec *telemetry.RouteRecorder) *NewsService {
	return &NewsService{news: news, limit: limit, cache: rt, rec: rec}
}

// Headlines returns the JSON-encoded list of the latest titles.
func (s *NewsService) Headlines(ctx context.Context) (Result, error) {
	res, err := s.cache.Get(ctx, cache.SpaceNewsKey, func(ctx context.Context) ([]byte, error) {
		titles, err := s.news.Headlines(ctx, s.limit)
		if err != nil {
			return nil, err
		}
		return json.Marshal(titles)
	})
	s.rec.Latency(gateway.RouteSpaceflightNews, res.Cache, res.Latency)
	s.rec.CacheResult(gateway.RouteSpaceflightNews, res.Cache)
	return res, err
}

// QuoteService serves random quotes. Quotes are never cached.
type QuoteService struct {
	quotes gateway.QuoteSource
	rec    *telemetry.RouteRecorder
}

// NewQuoteService returns a QuoteService. rec may be nil.
func NewQuoteService(quotes gateway.QuoteSource, rec *telemetry.RouteRecorder) *QuoteService {
	return &QuoteService{quotes: quotes, rec: rec}
}

// Random returns one quote straight from the provider.
func (s *QuoteService) Random(ctx context.Context) (*gateway.Quote, error) {
	start := time.Now()
	q, err := s.quotes.RandomQuote(ctx)
	s.rec.Latency(gateway.RouteQuote, gateway.CacheBypass, time.Since(start))
	return q, err
}
