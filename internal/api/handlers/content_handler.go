package handlers

import (
	"net/http"
	"strconv"

	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/services"
)

// ContentHandler serves summaries, quizzes and translations generated on demand.
type ContentHandler struct {
	lectures lectureGetter
	content  *services.ContentService
	log      *logger.Logger
}

func NewContentHandler(lectures lectureGetter, content *services.ContentService, log *logger.Logger) *ContentHandler {
	return &ContentHandler{lectures: lectures, content: content, log: log.With("handler", "content")}
}

// Summary handles GET /lectures/{id}/summary?lang=&style=&force=.
func (h *ContentHandler) Summary(w http.ResponseWriter, r *http.Request) {
	lec, ok := ownedLecture(w, r, h.lectures, h.log)
	if !ok {
		return
	}
	q := r.URL.Query()
	force, _ := strconv.ParseBool(q.Get("force"))

	s, err := h.content.Summary(r.Context(), lec.ID, q.Get("lang"), q.Get("style"), force)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Quiz handles GET /lectures/{id}/quiz?lang=&difficulty=&n=&force=.
func (h *ContentHandler) Quiz(w http.ResponseWriter, r *http.Request) {
	lec, ok := ownedLecture(w, r, h.lectures, h.log)
	if !ok {
		return
	}
	q := r.URL.Query()
	force, _ := strconv.ParseBool(q.Get("force"))

	n := 0
	if v := q.Get("n"); v != "" {
		var err error
		if n, err = strconv.Atoi(v); err != nil || n <= 0 {
			badRequest(w, "n must be a positive integer")
			return
		}
	}

	quiz, err := h.content.Quiz(r.Context(), lec.ID, q.Get("lang"), q.Get("difficulty"), n, force)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

// Translate handles GET /lectures/{id}/translation?target=&lang=&style=.
func (h *ContentHandler) Translate(w http.ResponseWriter, r *http.Request) {
	lec, ok := ownedLecture(w, r, h.lectures, h.log)
	if !ok {
		return
	}
	q := r.URL.Query()
	if q.Get("target") == "" {
		badRequest(w, "target is required")
		return
	}

	t, err := h.content.Translate(r.Context(), lec.ID, q.Get("lang"), q.Get("style"), q.Get("target"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
