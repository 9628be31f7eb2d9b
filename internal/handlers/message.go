package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/socialspace/socialspace/internal/models"
	"github.com/socialspace/socialspace/internal/services"
)

type MessageHandler struct {
	messageService services.MessageServiceInterface
}

func NewMessageHandler(messageService services.MessageServiceInterface) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

type SendMessageRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
	Message    string    `json:"message"`
}

type SendMessageResponse struct {
	Success bool            `json:"success"`
	Message *models.Message `json:"message"`
}

type ConversationResponse struct {
	Success  bool                 `json:"success"`
	Messages []models.MessageView `json:"messages"`
}

type UnreadCountResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

type SetThemeRequest struct {
	FriendID uuid.UUID `json:"friend_id"`
	Theme    string    `json:"theme"`
}

type ThemeResponse struct {
	Success bool   `json:"success"`
	Theme   string `json:"theme"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReceiverID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.messageService.Send(r.Context(), user.ID, req.ReceiverID, services.SanitizeText(req.Message))
	if errors.Is(err, services.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	if errors.Is(err, services.ErrRecipientNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("Error sending message: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, SendMessageResponse{Success: true, Message: msg})
}

// Conversation returns the thread with ?friend_id= and marks the friend's
// messages read as a side effect.
func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	friendID, ok := queryUUID(r, "friend_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid friend ID")
		return
	}

	messages, err := h.messageService.Conversation(r.Context(), user.ID, friendID)
	if err != nil {
		log.Printf("Error loading conversation: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ConversationResponse{Success: true, Messages: messages})
}

func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	count, err := h.messageService.UnreadCount(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error counting unread messages: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, UnreadCountResponse{Success: true, Count: count})
}

func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	messageID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid message ID")
		return
	}

	err := h.messageService.DeleteMessage(r.Context(), user.ID, messageID)
	if errors.Is(err, services.ErrUnauthorized) {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	if err != nil {
		log.Printf("Error deleting message: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeMessage(w, http.StatusOK, "Message deleted")
}

func (h *MessageHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	friendID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid friend ID")
		return
	}

	if err := h.messageService.DeleteConversation(r.Context(), user.ID, friendID); err != nil {
		log.Printf("Error deleting conversation: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeMessage(w, http.StatusOK, "Conversation deleted")
}

func (h *MessageHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req SetThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FriendID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.messageService.SetTheme(r.Context(), user.ID, req.FriendID, req.Theme); err != nil {
		log.Printf("Error setting message theme: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeMessage(w, http.StatusOK, "Theme updated")
}

func (h *MessageHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	friendID, ok := queryUUID(r, "friend_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid friend ID")
		return
	}

	theme, err := h.messageService.Theme(r.Context(), user.ID, friendID)
	if err != nil {
		log.Printf("Error getting message theme: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ThemeResponse{Success: true, Theme: theme})
}
