package metrics

import (
	"net/http"
	"time"
)

// HTTPMetricsMiddleware records the duration and status of every request to
// one API route. route is the label for the route with its path parameters
// dropped, e.g. "/api/v1/addresses/balance" for
// "GET /api/v1/addresses/{address}/balance", which keeps label cardinality
// bounded by the route table rather than by addresses or hashes.
// A nil m disables recording.
func HTTPMetricsMiddleware(m *Metrics, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			m.RecordHTTPRequest(route, r.Method, rec.status, time.Since(start).Seconds())
		})
	}
}

// statusRecorder remembers the first status code written.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
