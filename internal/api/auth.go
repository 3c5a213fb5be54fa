package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"hilot/internal/config"
)

type actorContextKey struct{}

// Actor identifies the authenticated caller for authorization decisions in
// the service layer.
type Actor struct {
	Name string
	Type string
	ID   int64
}

// HTTPAuth resolves API keys from config into actors. Key comparison is
// constant-time.
type HTTPAuth struct {
	header  string
	keys    []config.APIClientKey
	limiter *rateLimiter
}

func NewHTTPAuth(cfg *config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		header:  cfg.HeaderAPIKey,
		keys:    cfg.APIKeys,
		limiter: newRateLimiter(cfg),
	}
}

// Wrap authenticates and rate-limits every request before the mux sees it.
func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(a.header)
		actor, ok := a.resolve(key)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid or missing api key")
			return
		}

		if !a.limiter.getLimiter(key).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *HTTPAuth) resolve(key string) (Actor, bool) {
	if key == "" {
		return Actor{}, false
	}
	for _, candidate := range a.keys {
		if subtle.ConstantTimeCompare([]byte(candidate.Key), []byte(key)) == 1 {
			return Actor{Name: candidate.Name, Type: candidate.ActorType, ID: candidate.ActorID}, true
		}
	}
	return Actor{}, false
}

// actorFrom extracts the authenticated actor from the request context.
func actorFrom(r *http.Request) Actor {
	actor, _ := r.Context().Value(actorContextKey{}).(Actor)
	return actor
}
