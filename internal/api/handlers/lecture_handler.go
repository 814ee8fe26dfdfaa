package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	middleware "github.com/markdave123-py/Lectern/internal/api/middlewares"
	"github.com/markdave123-py/Lectern/internal/core/ingestion_engine"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/models"
	"github.com/markdave123-py/Lectern/internal/services"
)

const multipartMemory = 32 << 20

type LectureHandler struct {
	lectures  *services.LectureService
	maxUpload int64
	log       *logger.Logger
}

func NewLectureHandler(lectures *services.LectureService, maxUpload int64, log *logger.Logger) *LectureHandler {
	return &LectureHandler{lectures: lectures, maxUpload: maxUpload, log: log.With("handler", "lecture")}
}

// Upload accepts a multipart form with a "video" file, an optional "slides"
// file and the title, description and language fields. Processing runs in
// the background; the response carries the lecture id to poll.
func (h *LectureHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
			return
		}
		badRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	video, videoHdr, err := r.FormFile("video")
	if err != nil {
		badRequest(w, "video file is required")
		return
	}
	defer video.Close()

	req := services.UploadRequest{
		UploaderID:  userID,
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Language:    r.FormValue("language"),
		Video:       fileUpload(video, videoHdr),
	}

	slides, slidesHdr, err := r.FormFile("slides")
	switch {
	case err == nil:
		defer slides.Close()
		up := fileUpload(slides, slidesHdr)
		req.Slides = &up
	case !errors.Is(err, http.ErrMissingFile):
		badRequest(w, "invalid slides file")
		return
	}

	id, err := h.lectures.Upload(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"lecture_id": id,
		"status":     models.StatusPending,
	})
}

func fileUpload(f multipart.File, hdr *multipart.FileHeader) services.FileUpload {
	return services.FileUpload{
		Name:        hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Body:        f,
	}
}

func (h *LectureHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	lectures, err := h.lectures.ListByUploader(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if lectures == nil {
		lectures = []models.Lecture{}
	}
	writeJSON(w, http.StatusOK, lectures)
}

func (h *LectureHandler) Get(w http.ResponseWriter, r *http.Request) {
	lec, ok := ownedLecture(w, r, h.lectures, h.log)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, lec)
}

func (h *LectureHandler) Status(w http.ResponseWriter, r *http.Request) {
	lec, ok := ownedLecture(w, r, h.lectures, h.log)
	if !ok {
		return
	}
	st, err := h.lectures.Status(r.Context(), lec.ID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *LectureHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	lec, ok := ownedLecture(w, r, h.lectures, h.log)
	if !ok {
		return
	}
	chunks, err := h.lectures.Transcript(r.Context(), lec.ID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if chunks == nil {
		chunks = []models.TranscriptChunk{}
	}
	writeJSON(w, http.StatusOK, chunks)
}

func (h *LectureHandler) Delete(w http.ResponseWriter, r *http.Request) {
	lec, ok := ownedLecture(w, r, h.lectures, h.log)
	if !ok {
		return
	}
	if err := h.lectures.Delete(r.Context(), lec.ID); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reprocessRequest struct {
	Retranscribe bool   `json:"retranscribe"`
	Summary      bool   `json:"summary"`
	Quiz         bool   `json:"quiz"`
	Language     string `json:"language"`
	Style        string `json:"style"`
	Difficulty   string `json:"difficulty"`
	NumQuestions int    `json:"num_questions"`
}

type reprocessResponse struct {
	LectureID string          `json:"lecture_id"`
	Status    string          `json:"status"`
	Chunks    int             `json:"chunks,omitempty"`
	Summary   *models.Summary `json:"summary,omitempty"`
	Quiz      *models.Quiz    `json:"quiz,omitempty"`
}

// Reprocess re-runs the selected steps for a lecture and waits for them.
func (h *LectureHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	lec, ok := ownedLecture(w, r, h.lectures, h.log)
	if !ok {
		return
	}

	var req reprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid body")
		return
	}

	res, err := h.lectures.Reprocess(r.Context(), lec.ID, ingestion_engine.ReprocessOptions{
		Retranscribe: req.Retranscribe,
		Summary:      req.Summary,
		Quiz:         req.Quiz,
		Language:     req.Language,
		Style:        req.Style,
		Difficulty:   req.Difficulty,
		NumQuestions: req.NumQuestions,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, reprocessResponse{
		LectureID: res.LectureID,
		Status:    res.Status,
		Chunks:    res.Chunks,
		Summary:   res.Summary,
		Quiz:      res.Quiz,
	})
}
