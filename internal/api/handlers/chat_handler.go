package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/services"
)

type ChatHandler struct {
	lectures lectureGetter
	chat     *services.ChatService
	log      *logger.Logger
}

func NewChatHandler(lectures lectureGetter, chat *services.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{lectures: lectures, chat: chat, log: log.With("handler", "chat")}
}

type askRequest struct {
	Question string `json:"question"`
}

// Ask answers a question about a lecture from its transcript.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	lec, ok := ownedLecture(w, r, h.lectures, h.log)
	if !ok {
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request")
		return
	}

	ans, err := h.chat.Ask(r.Context(), lec.ID, req.Question)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}
