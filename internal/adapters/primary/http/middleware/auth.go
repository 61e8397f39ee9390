package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// IngressKeyHeader carries the shared collaborator key.
const IngressKeyHeader = "X-Ingress-Key"

// BearerToken extracts the token from an "Authorization: Bearer {token}" header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// IngressKeyAuth admits collaborator requests whose X-Ingress-Key matches the
// bcrypt hash. An empty hash disables the endpoint entirely.
func IngressKeyAuth(keyHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	hash := []byte(keyHash)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IngressKeyHeader)
			if len(hash) == 0 || key == "" {
				writeUnauthorized(w, "Ingress key is required")
				return
			}

			if err := bcrypt.CompareHashAndPassword(hash, []byte(key)); err != nil {
				logger.Warn("ingress request rejected",
					"request_id", GetRequestID(r.Context()),
					"client_ip", ClientIP(r),
				)
				writeUnauthorized(w, "Invalid ingress key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"UNAUTHORIZED"}`))
}
