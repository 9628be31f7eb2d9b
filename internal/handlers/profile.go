package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/socialspace/socialspace/internal/models"
	"github.com/socialspace/socialspace/internal/services"
)

type ProfileHandler struct {
	userService   services.UserServiceInterface
	friendService services.FriendServiceInterface
	postService   services.PostServiceInterface
	uploads       *services.UploadStore
	maxUploadSize int64
}

func NewProfileHandler(
	userService services.UserServiceInterface,
	friendService services.FriendServiceInterface,
	postService services.PostServiceInterface,
	uploads *services.UploadStore,
	maxUploadSize int64,
) *ProfileHandler {
	return &ProfileHandler{
		userService:   userService,
		friendService: friendService,
		postService:   postService,
		uploads:       uploads,
		maxUploadSize: maxUploadSize,
	}
}

type ProfileResponse struct {
	Success          bool                    `json:"success"`
	User             *models.User            `json:"user"`
	PostCount        int                     `json:"post_count"`
	FriendCount      int                     `json:"friend_count"`
	FriendshipStatus models.FriendshipState  `json:"friendship_status"`
	Posts            []models.PostWithAuthor `json:"posts"`
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewer := GetUserFromContext(r.Context())
	if viewer == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	username := r.PathValue("username")
	user, err := h.userService.GetByUsername(r.Context(), username)
	if errors.Is(err, services.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Printf("Error loading profile: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	posts, friends, err := h.userService.Stats(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error loading profile stats: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := models.FriendshipStateNone
	if user.ID != viewer.ID {
		status, err = h.friendService.StatusFor(r.Context(), viewer.ID, user.ID)
		if err != nil {
			log.Printf("Error loading friendship status: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	userPosts, err := h.postService.UserPosts(r.Context(), viewer.ID, user.ID)
	if err != nil {
		log.Printf("Error loading profile posts: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{
		Success:          true,
		User:             user,
		PostCount:        posts,
		FriendCount:      friends,
		FriendshipStatus: status,
		Posts:            userPosts,
	})
}

// Update accepts a multipart form with "full_name", "bio", and an optional
// "profile_pic" file. Unlike post images, a bad profile picture extension
// fails the whole request.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	fullName := services.SanitizeText(r.FormValue("full_name"))
	bio := services.SanitizeText(r.FormValue("bio"))
	if fullName == "" {
		writeError(w, http.StatusBadRequest, "Full name is required")
		return
	}

	var profilePic *string
	file, header, err := r.FormFile("profile_pic")
	if err == nil {
		defer file.Close()
		name, err := h.uploads.Save(services.UploadKindProfile, header.Filename, file)
		if errors.Is(err, services.ErrInvalidFileType) {
			writeError(w, http.StatusBadRequest, "Invalid file type. Only JPG, PNG, GIF allowed.")
			return
		}
		if err != nil {
			log.Printf("Error saving profile picture: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to save profile picture")
			return
		}
		profilePic = &name
	}

	updated, err := h.userService.UpdateProfile(r.Context(), user.ID, fullName, bio, profilePic)
	if err != nil {
		log.Printf("Error updating profile: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: updated})
}
