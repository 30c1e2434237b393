// Package api exposes batch initialization over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"reco-batch/src/model"
	"reco-batch/src/scheduler"

	"github.com/sirupsen/logrus"
)

type Initializer interface {
	Run(ctx context.Context) (*scheduler.Result, error)
}

type ProgressReader interface {
	Progress(ctx context.Context) (*model.BatchProgress, error)
}

// Handler holds the dependencies for HTTP handlers.
type Handler struct {
	initializer Initializer
	progress    ProgressReader
	secret      string
	log         *logrus.Logger
}

func NewHandler(initializer Initializer, progress ProgressReader, secret string, log *logrus.Logger) *Handler {
	return &Handler{
		initializer: initializer,
		progress:    progress,
		secret:      secret,
		log:         log,
	}
}

type InitResponse struct {
	Success      bool `json:"success"`
	TotalBatches *int `json:"totalBatches,omitempty"`
}

type ErrorResponse struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// HandleInitBatches resets recommendation_batches and kicks off batch 0.
func (h *Handler) HandleInitBatches(w http.ResponseWriter, r *http.Request) {
	result, err := h.initializer.Run(r.Context())
	if errors.Is(err, scheduler.ErrAlreadyRunning) {
		failed := false
		sendJSON(w, http.StatusConflict, ErrorResponse{
			Success: &failed,
			Error:   "Initialization already running",
		})
		return
	}
	if err != nil {
		sendJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Initialization failed",
			Details: err.Error(),
		})
		return
	}

	if result.TotalBatches == 0 {
		sendJSON(w, http.StatusOK, InitResponse{Success: true})
		return
	}

	total := result.TotalBatches
	sendJSON(w, http.StatusOK, InitResponse{Success: true, TotalBatches: &total})
}

// HandleBatchStatus reports how many batches sit in each status.
func (h *Handler) HandleBatchStatus(w http.ResponseWriter, r *http.Request) {
	progress, err := h.progress.Progress(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Failed to read batch progress")
		sendJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "Status unavailable",
			Details: err.Error(),
		})
		return
	}
	sendJSON(w, http.StatusOK, progress)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// requireCronSecret rejects any request whose Authorization header is not
// exactly "Bearer <secret>". An empty secret rejects everything.
func (h *Handler) requireCronSecret(next http.Handler) http.Handler {
	expected := []byte("Bearer " + h.secret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if h.secret == "" || subtle.ConstantTimeCompare(got, expected) != 1 {
			h.log.WithFields(logrus.Fields{
				"path":   r.URL.Path,
				"remote": r.RemoteAddr,
			}).Warn("Rejected unauthorized request")
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
