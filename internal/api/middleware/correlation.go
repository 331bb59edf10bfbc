package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"

	// maxCorrelationIDLen caps caller-supplied ids before they reach the logs.
	maxCorrelationIDLen = 128
)

// Headers consulted for an inbound id, in order. Proxies in front of the
// job board set X-Request-ID; our own clients send X-Correlation-ID.
var correlationHeaders = []string{"X-Correlation-ID", "X-Request-ID"}

// CorrelationID tags every request with an id that is stored on the context
// and echoed in the X-Correlation-ID response header. A caller-supplied id
// is kept when it is short printable ASCII; otherwise a UUID is minted.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := inboundCorrelationID(r)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Correlation-ID", id)
		next.ServeHTTP(w, r.WithContext(WithCorrelationID(r.Context(), id)))
	})
}

func inboundCorrelationID(r *http.Request) string {
	for _, h := range correlationHeaders {
		if id := r.Header.Get(h); validCorrelationID(id) {
			return id
		}
	}
	return ""
}

func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// WithCorrelationID returns a copy of ctx carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// GetCorrelationID returns the id stored by CorrelationID, or "".
func GetCorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}
