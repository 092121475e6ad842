package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
)

type stubLimiter struct {
	err         error
	identifiers []string
}

func (s *stubLimiter) CheckRateLimit(ctx context.Context, identifier, action string, max int, window time.Duration) error {
	s.identifiers = append(s.identifiers, identifier)
	return s.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRateLimitPassesUnderLimit(t *testing.T) {
	limiter := &stubLimiter{}
	mw := RateLimit(limiter, "login", 5, time.Minute, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	mw(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	if len(limiter.identifiers) != 1 || limiter.identifiers[0] != "203.0.113.9" {
		t.Fatalf("expected forwarded ip as identifier, got %v", limiter.identifiers)
	}
}

func TestRateLimitBlocksOverLimit(t *testing.T) {
	limiter := &stubLimiter{err: pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded")}
	mw := RateLimit(limiter, "login", 5, time.Minute, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	mw(okHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
}

func TestRateLimitDisabledWithoutPolicy(t *testing.T) {
	limiter := &stubLimiter{err: pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded")}

	// zero limit and zero window both disable the middleware entirely
	for _, mw := range []func(http.Handler) http.Handler{
		RateLimit(limiter, "login", 0, time.Minute, nil),
		RateLimit(limiter, "login", 5, 0, nil),
		RateLimit(nil, "login", 5, time.Minute, nil),
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		mw(okHandler()).ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204 got %d", rec.Code)
		}
	}
	if len(limiter.identifiers) != 0 {
		t.Fatalf("limiter should not be consulted when disabled")
	}
}
