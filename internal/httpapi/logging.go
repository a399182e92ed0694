package httpapi

import (
	"net/http"
	"time"

	"github.com/nguyengg/rangezip/internal/reqid"
	"github.com/sirupsen/logrus"
)

// statusRecorder captures the status code written to w so the logging
// middleware can report it after the handler returns.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestID attaches a fresh request id to the request's context and
// echoes it as X-Request-Id, grounded on google/uuid's direct use in the
// teacher.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := reqid.New()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(reqid.WithValue(r.Context(), id)))
	})
}

// withLogging logs one structured line per request (method, path, status,
// duration, request id), grounded on dselans-mmmbop's logrus-based
// request/run logging.
func withLogging(logger *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start).String(),
			"request_id": reqid.FromContext(r.Context()),
		}).Info("handled request")
	})
}
