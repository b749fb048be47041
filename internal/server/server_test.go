package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	gateway "github.com/eugener/meridian/internal"
	"github.com/eugener/meridian/internal/app"
	"github.com/eugener/meridian/internal/cache"
	"github.com/eugener/meridian/internal/ratelimit"
	"github.com/eugener/meridian/internal/testutil"
	"github.com/eugener/meridian/internal/upstream/dictionary"
)

type fakes struct {
	dict   *testutil.FakeDictionary
	quotes *testutil.FakeQuotes
	news   *testutil.FakeNews
	cache  *testutil.FakeCache
}

func newFakes() *fakes {
	return &fakes{
		dict:   &testutil.FakeDictionary{},
		quotes: &testutil.FakeQuotes{},
		news:   &testutil.FakeNews{},
		cache:  testutil.NewFakeCache(),
	}
}

// deps wires real services over the fakes. Callers may override fields.
func (f *fakes) deps() Deps {
	rt := app.NewReadThrough(app.ReadThroughConfig{Store: f.cache, TTL: 40 * time.Second})
	return Deps{
		Dictionary: app.NewDictionaryService(f.dict, rt, nil),
		Quotes:     app.NewQuoteService(f.quotes, nil),
		News:       app.NewNewsService(f.news, 5, rt, nil),
		ReadyCheck: rt.Ping,
	}
}

func newTestHandler() http.Handler {
	return New(newFakes().deps())
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q, want application/json", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, rec.Body.String())
	}
	msg, ok := body["error"]
	if !ok || msg == "" {
		t.Errorf("body = %s, want an error field", rec.Body.String())
	}
	return msg
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	rec := do(newTestHandler(), http.MethodGet, "/healthz")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestPing_UpstreamsDown(t *testing.T) {
	t.Parallel()

	f := newFakes()
	f.dict.DefineFn = func(context.Context, string) ([]gateway.DictionaryEntry, error) {
		return nil, gateway.ErrUpstream
	}
	f.quotes.QuoteFn = func(context.Context) (*gateway.Quote, error) { return nil, gateway.ErrUpstream }
	f.news.HeadlinesFn = func(context.Context, int) ([]string, error) { return nil, gateway.ErrUpstream }
	f.cache.SetDown(true)

	rec := do(New(f.deps()), http.MethodGet, "/ping")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "Pong!" {
		t.Errorf("body = %q, want Pong!", rec.Body.String())
	}
	if f.dict.Calls()+f.quotes.Calls()+f.news.Calls() != 0 {
		t.Error("ping must not touch upstreams")
	}
}

func TestDictionary(t *testing.T) {
	t.Parallel()
	rec := do(newTestHandler(), http.MethodGet, "/dictionary?word=serendipity")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
	var entries []gateway.DictionaryEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 || entries[0].Word != "serendipity" {
		t.Errorf("entries = %+v, want word serendipity", entries)
	}
}

func TestDictionary_MissingWord(t *testing.T) {
	t.Parallel()

	f := newFakes()
	h := New(f.deps())
	for _, target := range []string{"/dictionary", "/dictionary?word=", "/dictionary?word=%20%20"} {
		rec := do(h, http.MethodGet, target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
		decodeError(t, rec)
	}
	if f.dict.Calls() != 0 {
		t.Error("upstream must not be called without a word")
	}
}

func TestDictionary_UnknownWord(t *testing.T) {
	t.Parallel()

	f := newFakes()
	f.dict.DefineFn = func(context.Context, string) ([]gateway.DictionaryEntry, error) {
		return nil, fmt.Errorf("dictionary: %w: HTTP 404: No Definitions Found", gateway.ErrNotFound)
	}
	rec := do(New(f.deps()), http.MethodGet, "/dictionary?word=zzzqqq")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if msg := decodeError(t, rec); strings.Contains(msg, "No Definitions") {
		t.Errorf("provider text leaked to client: %q", msg)
	}
}

func TestDictionary_CachedWithinTTL(t *testing.T) {
	t.Parallel()

	f := newFakes()
	h := New(f.deps())
	first := do(h, http.MethodGet, "/dictionary?word=hello")
	second := do(h, http.MethodGet, "/dictionary?word=hello")

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("status = %d, %d", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("cached body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
	if f.dict.Calls() != 1 {
		t.Errorf("upstream calls = %d, want 1", f.dict.Calls())
	}
	if got := f.cache.TTL(cache.DictionaryKey("hello")); got != 40*time.Second {
		t.Errorf("ttl = %v, want 40s", got)
	}
}

func TestDictionary_CacheDownStillServes(t *testing.T) {
	t.Parallel()

	f := newFakes()
	f.cache.SetDown(true)
	rec := do(New(f.deps()), http.MethodGet, "/dictionary?word=hello")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestUpstreamErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		err    error
		want   int
	}{
		{"dictionary 5xx", "/dictionary?word=hello", gateway.ErrUpstream, http.StatusInternalServerError},
		{"dictionary breaker", "/dictionary?word=hello", gateway.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
		{"quote 5xx", "/quote", gateway.ErrUpstream, http.StatusInternalServerError},
		{"quote breaker", "/quote", gateway.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
		{"news 5xx", "/spaceflight_news", gateway.ErrUpstream, http.StatusInternalServerError},
		{"news untyped", "/spaceflight_news", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFakes()
			wrapped := fmt.Errorf("provider said: secret detail: %w", tt.err)
			f.dict.DefineFn = func(context.Context, string) ([]gateway.DictionaryEntry, error) { return nil, wrapped }
			f.quotes.QuoteFn = func(context.Context) (*gateway.Quote, error) { return nil, wrapped }
			f.news.HeadlinesFn = func(context.Context, int) ([]string, error) { return nil, wrapped }

			rec := do(New(f.deps()), http.MethodGet, tt.target)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if msg := decodeError(t, rec); strings.Contains(msg, "secret") {
				t.Errorf("error detail leaked: %q", msg)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	t.Parallel()

	f := newFakes()
	h := New(f.deps())
	rec := do(h, http.MethodGet, "/quote")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body) != 2 {
		t.Errorf("fields = %v, want exactly quote and author", body)
	}
	if body["quote"] != "Simplicity is prerequisite for reliability." || body["author"] != "Edsger W. Dijkstra" {
		t.Errorf("body = %v", body)
	}

	do(h, http.MethodGet, "/quote")
	if f.quotes.Calls() != 2 {
		t.Errorf("calls = %d, want 2 (quotes are not cached)", f.quotes.Calls())
	}
}

func TestSpaceflightNews(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provided int
		want     int
	}{
		{"fewer than five", 3, 3},
		{"five", 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFakes()
			f.news.HeadlinesFn = func(_ context.Context, limit int) ([]string, error) {
				if limit != 5 {
					t.Errorf("limit = %d, want 5", limit)
				}
				titles := make([]string, min(tt.provided, limit))
				for i := range titles {
					titles[i] = fmt.Sprintf("title %d", i)
				}
				return titles, nil
			}

			rec := do(New(f.deps()), http.MethodGet, "/spaceflight_news")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var titles []string
			if err := json.Unmarshal(rec.Body.Bytes(), &titles); err != nil {
				t.Fatal(err)
			}
			if len(titles) != tt.want {
				t.Errorf("len = %d, want %d", len(titles), tt.want)
			}
			for i, title := range titles {
				if title != fmt.Sprintf("title %d", i) {
					t.Errorf("titles[%d] = %q, order not preserved", i, title)
				}
			}
			if keys := f.cache.Keys(); len(keys) != 1 || keys[0] != cache.SpaceNewsKey {
				t.Errorf("cache keys = %v, want [space-news]", keys)
			}
		})
	}
}

func TestUnmatchedRoute(t *testing.T) {
	t.Parallel()
	rec := do(newTestHandler(), http.MethodGet, "/nope")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	decodeError(t, rec)
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id should be set on 404")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	rec := do(newTestHandler(), http.MethodPost, "/quote")

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
	decodeError(t, rec)
}

func TestPanicRecovered(t *testing.T) {
	t.Parallel()

	f := newFakes()
	f.dict.DefineFn = func(context.Context, string) ([]gateway.DictionaryEntry, error) {
		panic("adapter bug")
	}
	rec := do(New(f.deps()), http.MethodGet, "/dictionary?word=hello")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	decodeError(t, rec)
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	rec := do(newTestHandler(), http.MethodGet, "/readyz")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestReadyzFailing(t *testing.T) {
	t.Parallel()

	f := newFakes()
	f.cache.SetDown(true)
	rec := do(New(f.deps()), http.MethodGet, "/readyz")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if rec.Body.String() != "not ready" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()
	h := newTestHandler()

	rec := do(h, http.MethodGet, "/healthz")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header should be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "caller-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "caller-123" {
		t.Errorf("request id = %q, want caller-123", got)
	}
}

func TestNodeIDHeader(t *testing.T) {
	t.Parallel()

	d := newFakes().deps()
	d.NodeID = "node-7"
	rec := do(New(d), http.MethodGet, "/ping")
	if got := rec.Header().Get("X-Node-Id"); got != "node-7" {
		t.Errorf("X-Node-Id = %q, want node-7", got)
	}

	rec = do(newTestHandler(), http.MethodGet, "/ping")
	if _, ok := rec.Header()["X-Node-Id"]; ok {
		t.Error("X-Node-Id should be absent when no node id is configured")
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	d := newFakes().deps()
	d.RateLimiter = ratelimit.NewRegistry(2)
	h := New(d)

	for i := range 2 {
		if rec := do(h, http.MethodGet, "/quote"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}
	rec := do(h, http.MethodGet, "/quote")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After should be set")
	}
	decodeError(t, rec)

	// System endpoints are exempt.
	if rec := do(h, http.MethodGet, "/ping"); rec.Code != http.StatusOK {
		t.Errorf("ping status = %d, want 200", rec.Code)
	}
}

func TestRateLimit_TrustProxyHeaders(t *testing.T) {
	t.Parallel()

	d := newFakes().deps()
	d.RateLimiter = ratelimit.NewRegistry(1)
	d.TrustProxyHeaders = true
	h := New(d)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/quote", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := send("203.0.113.1"); code != http.StatusOK {
		t.Fatalf("first client: status = %d", code)
	}
	if code := send("203.0.113.2"); code != http.StatusOK {
		t.Errorf("second client should have its own budget: status = %d", code)
	}
	if code := send("203.0.113.1"); code != http.StatusTooManyRequests {
		t.Errorf("first client again: status = %d, want 429", code)
	}
}

// TestDictionary_EndToEnd runs the real adapter against a fake provider and
// the redis backend, checking one upstream call per TTL window.
func TestDictionary_EndToEnd(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		word := strings.TrimPrefix(r.URL.Path, "/api/v2/entries/en/")
		if word == "zzzqqq" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"title":"No Definitions Found"}`)
			return
		}
		fmt.Fprintf(w, `[{"word":%q,"meanings":[{"partOfSpeech":"noun","definitions":[{"definition":"d"}]}]}]`, word)
	}))
	defer provider.Close()

	mr := miniredis.RunT(t)
	store, err := cache.NewRedis("redis://" + mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	rt := app.NewReadThrough(app.ReadThroughConfig{Store: store, TTL: 10 * time.Second})
	h := New(Deps{
		Dictionary: app.NewDictionaryService(dictionary.New(provider.URL, nil, nil), rt, nil),
	})

	for range 2 {
		rec := do(h, http.MethodGet, "/dictionary?word=hello")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; body = %s", rec.Code, rec.Body.String())
		}
		var entries []gateway.DictionaryEntry
		if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
			t.Fatal(err)
		}
		if entries[0].Word != "hello" {
			t.Errorf("word = %q", entries[0].Word)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("upstream calls within ttl = %d, want 1", calls.Load())
	}

	mr.FastForward(11 * time.Second)
	do(h, http.MethodGet, "/dictionary?word=hello")
	if calls.Load() != 2 {
		t.Errorf("upstream calls after ttl = %d, want 2", calls.Load())
	}

	if rec := do(h, http.MethodGet, "/dictionary?word=zzzqqq"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown word: status = %d, want 404", rec.Code)
	}
}
