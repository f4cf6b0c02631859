package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// respondJSON writes a JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// httpError writes a JSON error envelope.
func httpError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// ownerID resolves the acting owner from the X-User-ID header. Absent or
// malformed headers fall back to owner 1, the single-user default.
func ownerID(r *http.Request) int64 {
	v := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if v == "" {
		return 1
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 1
	}
	return id
}

// parseYear extracts the year query parameter, defaulting to the current
// year.
func parseYear(r *http.Request) int {
	year := time.Now().Year()
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	return year
}

// parseMonth extracts the optional month query parameter. Nil means the
// yearly view; an out-of-range value is an error.
func parseMonth(r *http.Request) (*int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return nil, nil
	}
	m, err := strconv.Atoi(v)
	if err != nil || m < 1 || m > 12 {
		return nil, fmt.Errorf("invalid month %q", v)
	}
	return &m, nil
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// sanitizeInput removes control characters and trims whitespace. Control
// characters are stripped first so they cannot shield surrounding
// whitespace from the trim.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
