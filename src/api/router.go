package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs request details and latency.
func loggingMiddleware(log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Info("Handled request")
		})
	}
}

// NewRouter creates and configures the HTTP router.
func NewRouter(handler *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(handler.log))

	r.HandleFunc("/health", handler.HandleHealth).Methods(http.MethodGet)

	secured := r.PathPrefix("/api").Subrouter()
	secured.Use(handler.requireCronSecret)
	secured.HandleFunc("/init-batches", handler.HandleInitBatches)
	secured.HandleFunc("/batches/status", handler.HandleBatchStatus).Methods(http.MethodGet)

	return r
}
