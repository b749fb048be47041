package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gateway "github.com/eugener/meridian/internal"
)

var pongBody = []byte("Pong!")

func (s *server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(pongBody)
}

func (s *server) handleDictionary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	word := strings.TrimSpace(r.URL.Query().Get("word"))
	if word == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing required query parameter: word"))
		return
	}
	slog.LogAttrs(r.Context(), slog.LevelInfo, "dictionary lookup requested",
		slog.String("word", word),
		slog.String("request_id", gateway.RequestIDFromContext(r.Context())),
	)

	res, err := s.deps.Dictionary.Lookup(r.Context(), word)
	if err != nil {
		s.writeError(w, r, gateway.RouteDictionary, err)
	} else {
		writeRawJSON(w, http.StatusOK, res.Body)
	}
	s.deps.Recorder.ResponseTime(gateway.RouteDictionary, res.Cache, time.Since(start))
}

func (s *server) handleQuote(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	slog.LogAttrs(r.Context(), slog.LevelInfo, "quote requested",
		slog.String("request_id", gateway.RequestIDFromContext(r.Context())),
	)

	q, err := s.deps.Quotes.Random(r.Context())
	if err != nil {
		s.writeError(w, r, gateway.RouteQuote, err)
	} else {
		writeJSON(w, http.StatusOK, q)
	}
	s.deps.Recorder.ResponseTime(gateway.RouteQuote, gateway.CacheBypass, time.Since(start))
}

func (s *server) handleSpaceflightNews(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	slog.LogAttrs(r.Context(), slog.LevelInfo, "spaceflight news requested",
		slog.String("request_id", gateway.RequestIDFromContext(r.Context())),
	)

	res, err := s.deps.News.Headlines(r.Context())
	if err != nil {
		s.writeError(w, r, gateway.RouteSpaceflightNews, err)
	} else {
		writeRawJSON(w, http.StatusOK, res.Body)
	}
	s.deps.Recorder.ResponseTime(gateway.RouteSpaceflightNews, res.Cache, time.Since(start))
}

func (s *server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse("route not found"))
}

func (s *server) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
}

// writeError logs err in full and answers with a short message for its status.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, route string, err error) {
	status := errorStatus(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.LogAttrs(r.Context(), level, "request failed",
		slog.String("route", route),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("request_id", gateway.RequestIDFromContext(r.Context())),
	)
	writeJSON(w, status, errorResponse(errorMessage(status)))
}

type apiError struct {
	Error string `json:"error"`
}

func errorResponse(msg string) apiError {
	return apiError{Error: msg}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, gateway.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, gateway.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the client-facing text for status. Upstream and Go error
// strings stay in the logs.
func errorMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad request"
	case http.StatusNotFound:
		return "word not found"
	case http.StatusTooManyRequests:
		return "rate limit exceeded"
	case http.StatusServiceUnavailable:
		return "upstream temporarily unavailable"
	default:
		return "upstream request failed"
	}
}

// jsonCT is a pre-allocated header value slice. Direct map assignment
// (w.Header()["Content-Type"] = jsonCT) avoids the []string{v} alloc
// that Header.Set creates on every call.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeRawJSON writes an already-encoded body, as served from the cache.
func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}
