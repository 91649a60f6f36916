package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
)

// MaxBodyBytes bounds request bodies read by RequireValidJSON.
const MaxBodyBytes = 10 << 20

// InvalidJSONMessage is the error body for unparseable JSON requests.
const InvalidJSONMessage = "Invalid JSON format"

// RequireValidJSON rejects requests whose JSON body does not parse with
// 400 {"error":"Invalid JSON format"} before any handler runs. Empty bodies and
// non-JSON content types pass through; handlers decide whether a body is required.
func RequireValidJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody || !hasJSONBody(r) {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
		_ = r.Body.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read request body")
			return
		}
		if len(body) > MaxBodyBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		if len(bytes.TrimSpace(body)) > 0 && !json.Valid(body) {
			writeError(w, http.StatusBadRequest, InvalidJSONMessage)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		next.ServeHTTP(w, r)
	})
}

// hasJSONBody reports whether the request carries (or may carry) a JSON body.
// A missing Content-Type on a write method is treated as JSON.
func hasJSONBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return false
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || (len(mediaType) > 5 && mediaType[len(mediaType)-5:] == "+json")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
