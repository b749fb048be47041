// Package testutil provides configurable test fakes for gateway interfaces.
package testutil

import (
	"context"
	"sync/atomic"

	gateway "github.com/eugener/meridian/internal"
)

// FakeDictionary is a configurable gateway.Dictionary for testing.
type FakeDictionary struct {
	DefineFn func(ctx context.Context, word string) ([]gateway.DictionaryEntry, error)
	calls    atomic.Int64
}

// Define delegates to DefineFn or returns one entry echoing word.
func (f *FakeDictionary) Define(ctx context.Context, word string) ([]gateway.DictionaryEntry, error) {
	f.calls.Add(1)
	if f.DefineFn != nil {
		return f.DefineFn(ctx, word)
	}
	return []gateway.DictionaryEntry{{
		Word: word,
		Meanings: []gateway.Meaning{{
			PartOfSpeech: "noun",
			Definitions: []gateway.Definition{{
				Definition: "a fake definition",
				Synonyms:   []string{},
				Antonyms:   []string{},
			}},
		}},
	}}, nil
}

// Calls returns how many times Define was called.
func (f *FakeDictionary) Calls() int64 { return f.calls.Load() }

// FakeQuotes is a configurable gateway.QuoteSource for testing.
type FakeQuotes struct {
	QuoteFn func(ctx context.Context) (*gateway.Quote, error)
	calls   atomic.Int64
}

// RandomQuote delegates to QuoteFn or returns a fixed quote.
func (f *FakeQuotes) RandomQuote(ctx context.Context) (*gateway.Quote, error) {
	f.calls.Add(1)
	if f.QuoteFn != nil {
		return f.QuoteFn(ctx)
	}
	return &gateway.Quote{Quote: "Simplicity is prerequisite for reliability.", Author: "Edsger W. Dijkstra"}, nil
}

// Calls returns how many times RandomQuote was called.
func (f *FakeQuotes) Calls() int64 { return f.calls.Load() }

// FakeNews is a configurable gateway.NewsSource for testing.
type FakeNews struct {
	HeadlinesFn func(ctx context.Context, limit int) ([]string, error)
	calls       atomic.Int64
}

// Headlines delegates to HeadlinesFn or returns limit numbered titles.
func (f *FakeNews) Headlines(ctx context.Context, limit int) ([]string, error) {
	f.calls.Add(1)
	if f.HeadlinesFn != nil {
		return f.HeadlinesFn(ctx, limit)
	}
	titles := make([]string, limit)
	for i := range titles {
		titles[i] = "headline " + string(rune('A'+i))
	}
	return titles, nil
}

// Calls returns how many times Headlines was called.
func (f *FakeNews) Calls() int64 { return f.calls.Load() }
