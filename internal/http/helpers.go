package http

import (
	"encoding/json"
	"net/http"
	"strings"
)

// writeJSON encodes v with the proper content type. Encoding failures
// after the header is written can only be logged by the caller.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorPayload struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Error: msg})
}

// decodeBody parses a JSON request body into dst, rejecting unknown
// fields so typos fail loudly.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// queryCurrency returns the display currency, defaulting to the
// canonical code.
func queryCurrency(r *http.Request, canonical string) string {
	if v := strings.TrimSpace(r.URL.Query().Get("currency")); v != "" {
		return strings.ToUpper(v)
	}
	return canonical
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
