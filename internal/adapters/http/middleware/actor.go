package middleware

import (
	"context"
	"net/http"
	"strings"
)

// ActorHeader names the request header carrying the acting coach or admin id.
// Sign-in lives upstream; the agenda only records who created an event.
const ActorHeader = "X-Academy-Actor"

// contextKey is an unexported type for context keys in this package.
type contextKey string

const actorContextKey contextKey = "actor"

// Actor copies the acting user id from ActorHeader into the request context.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(ActorHeader)); id != "" {
			r = r.WithContext(ContextWithActor(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// ActorFrom returns the acting user id, empty when none was sent.
func ActorFrom(ctx context.Context) string {
	id, _ := ctx.Value(actorContextKey).(string)
	return id
}

// ContextWithActor returns a context carrying the acting user id.
func ContextWithActor(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, actorContextKey, id)
}
