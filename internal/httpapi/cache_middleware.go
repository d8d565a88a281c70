package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"retailpos/backend/internal/apperr"
)

const cacheHitMessage = "Data fetched successfully (from cache)"

// cacheRecorder tees the response so the envelope can be inspected after the
// handler has written it.
type cacheRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *cacheRecorder) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *cacheRecorder) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

// cached serves a stored result under the key from keyFn, or runs the handler
// and stores the result of a successful envelope. Cache failures fail the
// request.
func (a *API) cached(keyFn func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok, err := a.cache.Get(r.Context(), key)
			if err != nil {
				writeError(w, r, apperr.Internal(err, "reading cache"))
				return
			}
			if ok {
				writeResult(w, http.StatusOK, cacheHitMessage, json.RawMessage(raw))
				return
			}

			rec := &cacheRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status < 200 || rec.status >= 300 {
				return
			}

			var body struct {
				Result json.RawMessage `json:"result"`
			}
			if err := json.Unmarshal(rec.body.Bytes(), &body); err != nil {
				return
			}
			result := bytes.TrimSpace(body.Result)
			if len(result) == 0 || (result[0] != '{' && result[0] != '[') {
				return
			}
			if err := a.cache.Set(r.Context(), key, result, a.cacheTTL); err != nil {
				a.logger.Warn("cache write failed", "key", key, "error", err)
			}
		})
	}
}
