package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/markdave123-py/Lectern/internal/api/middlewares"
	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/ingestion_engine"
	"github.com/markdave123-py/Lectern/internal/core/resilience"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/models"
	"github.com/markdave123-py/Lectern/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrUnsupportedFile),
		errors.Is(err, ingestion_engine.ErrNothingToReprocess):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case core.IsCode(err, core.CodeNotFound):
		return http.StatusNotFound
	case core.IsCode(err, core.CodeFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case resilience.IsOpen(err), core.IsCode(err, core.CodeAllServicesFailed):
		return http.StatusServiceUnavailable
	case core.IsCode(err, core.CodeGenerationFailed),
		core.IsCode(err, core.CodeInvalidJSON),
		core.IsCode(err, core.CodeInvalidQuizSchema):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError writes err as {"error": ...}. Internal errors are logged and
// replaced by a generic message.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// lectureGetter is the part of LectureService the ownership check needs.
type lectureGetter interface {
	Get(ctx context.Context, id string) (*models.Lecture, error)
}

// ownedLecture loads the {id} lecture and checks it belongs to the caller.
// It writes the error response itself and reports false on any failure.
func ownedLecture(w http.ResponseWriter, r *http.Request, lectures lectureGetter, log *logger.Logger) (*models.Lecture, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return nil, false
	}
	lec, err := lectures.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, log, err)
		return nil, false
	}
	if lec.UploaderID != userID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "you are not allowed to access this lecture"})
		return nil, false
	}
	return lec, true
}
