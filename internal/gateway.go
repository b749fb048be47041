// Package gateway defines domain types and interfaces for the Meridian gateway.
// This package has no project imports -- it is the dependency root.
package gateway

import (
	"context"
)

// --- Upstream sources ---

// Dictionary looks up word definitions from an upstream provider.
type Dictionary interface {
	// Define returns all entries the provider has for word.
	// Returns ErrNotFound when the provider does not know the word.
	Define(ctx context.Context, word string) ([]DictionaryEntry, error)
}

// QuoteSource returns a random quote from an upstream provider.
type QuoteSource interface {
	RandomQuote(ctx context.Context) (*Quote, error)
}

// NewsSource returns the latest spaceflight headlines from an upstream provider.
type NewsSource interface {
	// Headlines returns at most limit titles in provider order.
	Headlines(ctx context.Context, limit int) ([]string, error)
}

// DictionaryEntry is a normalized dictionary lookup result.
type DictionaryEntry struct {
	Word     string    `json:"word"`
	Phonetic string    `json:"phonetic,omitempty"`
	Meanings []Meaning `json:"meanings"`
}

// Meaning groups definitions under a part of speech.
type Meaning struct {
	PartOfSpeech string       `json:"partOfSpeech"`
	Definitions  []Definition `json:"definitions"`
}

// Definition is a single sense of a word.
type Definition struct {
	Definition string   `json:"definition"`
	Synonyms   []string `json:"synonyms"`
	Antonyms   []string `json:"antonyms"`
	Example    string   `json:"example,omitempty"`
}

// Quote is a normalized quote.
type Quote struct {
	Quote  string `json:"quote"`
	Author string `json:"author"`
}

// --- Cache status ---

// CacheStatus describes how a response was served, used as a metric tag.
type CacheStatus string

const (
	CacheHit    CacheStatus = "hit"
	CacheMiss   CacheStatus = "miss"
	CacheBypass CacheStatus = "bypass" // route is not cached or caching is disabled
)

// --- Route names ---

// Route names used in metric families and logs.
const (
	RouteDictionary      = "dictionary"
	RouteQuote           = "quote"
	RouteSpaceflightNews = "spaceflight_news"
)

// --- Context keys ---

type contextKey int

const ctxKeyMeta contextKey = 0

// requestMeta bundles per-request values into a single context allocation.
type requestMeta struct {
	RequestID string
	ClientIP  string
}

// metaFromContext returns the requestMeta stored in ctx, or nil.
func metaFromContext(ctx context.Context) *requestMeta {
	m, _ := ctx.Value(ctxKeyMeta).(*requestMeta)
	return m
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if m := metaFromContext(ctx); m != nil {
		return m.RequestID
	}
	return ""
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyMeta, &requestMeta{RequestID: id})
}

// ClientIPFromContext extracts the client IP recorded by the rate limiter.
func ClientIPFromContext(ctx context.Context) string {
	if m := metaFromContext(ctx); m != nil {
		return m.ClientIP
	}
	return ""
}

// ContextWithClientIP stores the client IP in the existing requestMeta if
// present, avoiding a new context.WithValue allocation.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	if m := metaFromContext(ctx); m != nil {
		m.ClientIP = ip
		return ctx
	}
	return context.WithValue(ctx, ctxKeyMeta, &requestMeta{ClientIP: ip})
}
