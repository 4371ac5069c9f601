package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pliu/dmchat/internal/logging"
	"github.com/pliu/dmchat/internal/messaging"
	"github.com/pliu/dmchat/internal/middleware"
	"github.com/pliu/dmchat/internal/models"
	"github.com/pliu/dmchat/internal/status"
)

// Presence reports who is online.
type Presence interface {
	Online() []string
}

type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type MessageHandler struct {
	Service  *messaging.Service
	Presence Presence
	Logger   logging.Logger
}

// Sidebar lists every other user ranked by last interaction.
func (h *MessageHandler) Sidebar(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	entries, err := h.Service.Sidebar(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	messages, err := h.Service.History(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	msg, err := h.Service.Send(r.Context(), userID, mux.Vars(r)["id"], req.Text, req.Image)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

type updateStatusResponse struct {
	Message        string          `json:"message"`
	UpdatedMessage *models.Message `json:"updated_message"`
}

func (h *MessageHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	requested, err := status.Parse(req.Status)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	_, updated, err := h.Service.UpdateStatus(r.Context(), userID, mux.Vars(r)["messageId"], requested)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updateStatusResponse{
		Message:        "Message status updated successfully",
		UpdatedMessage: updated,
	})
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	if _, err := h.Service.Delete(r.Context(), userID, mux.Vars(r)["messageId"]); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Message deleted successfully",
	})
}

type onlineResponse struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

func (h *MessageHandler) Online(w http.ResponseWriter, r *http.Request) {
	users := h.Presence.Online()
	writeJSON(w, http.StatusOK, onlineResponse{Count: len(users), Users: users})
}
