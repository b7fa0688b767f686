package ratelimit

import "net/http"

const (
	rateLimitedBody = `{"detail": "Rate limit exceeded. Please try again later."}`
	busyBody        = `{"detail": "Server is busy. Please try again later."}`
)

// writeJSON escreve um corpo JSON já serializado. Os corpos de rejeição são fixos,
// então não passam por encoder.
func writeJSON(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}
