package middleware

import (
	"context"
	"net/http"

	"github.com/nikhilpatel/fieldflow/internal/lifecycle"
)

type contextKey string

const (
	actorKey     contextKey = "actor"
	keyPrefixKey contextKey = "key_prefix"
	scopesKey    contextKey = "api_key_scopes"
)

// SetActor stores the authenticated actor in the context.
func SetActor(ctx context.Context, actor lifecycle.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor returns the authenticated actor set by the auth middleware.
func GetActor(r *http.Request) (lifecycle.Actor, bool) {
	actor, ok := r.Context().Value(actorKey).(lifecycle.Actor)
	return actor, ok
}

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

func setScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, scopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(scopesKey).([]string)
	return scopes
}

// ExportedKeyPrefixKey returns the context key for key_prefix (for testing).
func ExportedKeyPrefixKey() contextKey {
	return keyPrefixKey
}
