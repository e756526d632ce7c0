package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/customer-import/internal/core"
)

// ActorHeader carries the operator id on every import request.
const ActorHeader = "X-Actor-ID"

type ctxKey string

const ctxKeyActor ctxKey = "actor_id"

// RequireActor rejects requests without an X-Actor-ID header and stores the
// actor on the request context.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			slog.Warn("auth: missing actor id",
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"actor id is required","message":"The request did not say who is importing","action":"Send the X-Actor-ID header","code":"IMP003"}` + "\n"))
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyActor, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromContext returns the actor stored by RequireActor.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(ctxKeyActor).(string)
	return actor
}

// RequestInfo copies the client address and user agent into the context so
// audit entries written while serving the request carry them. It must run
// after TrustedRealIP.
func RequestInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := core.RequestInfo{UserAgent: r.UserAgent()}
		if addr, ok := ClientAddr(r.RemoteAddr); ok {
			info.IPAddress = addr.String()
		}
		next.ServeHTTP(w, r.WithContext(core.ContextWithRequestInfo(r.Context(), info)))
	})
}
