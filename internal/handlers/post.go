package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/socialspace/socialspace/internal/models"
	"github.com/socialspace/socialspace/internal/services"
)

type PostHandler struct {
	postService   services.PostServiceInterface
	uploads       *services.UploadStore
	maxUploadSize int64
}

func NewPostHandler(postService services.PostServiceInterface, uploads *services.UploadStore, maxUploadSize int64) *PostHandler {
	return &PostHandler{
		postService:   postService,
		uploads:       uploads,
		maxUploadSize: maxUploadSize,
	}
}

type PostResponse struct {
	Success bool         `json:"success"`
	Post    *models.Post `json:"post"`
}

type FeedResponse struct {
	Success bool                    `json:"success"`
	Posts   []models.PostWithAuthor `json:"posts"`
}

type LikeResponse struct {
	Success bool `json:"success"`
	Liked   bool `json:"liked"`
	Count   int  `json:"count"`
}

type CommentResponse struct {
	Success bool            `json:"success"`
	Comment *models.Comment `json:"comment"`
}

type CommentsResponse struct {
	Success  bool                 `json:"success"`
	Comments []models.CommentView `json:"comments"`
}

// Create accepts a multipart form with a "content" field and an optional
// "image" file. An image with a disallowed extension is skipped rather than
// failing the post.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	content := services.SanitizeText(r.FormValue("content"))

	var image *string
	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		if services.Allowed(header.Filename) {
			name, err := h.uploads.Save(services.UploadKindPost, header.Filename, file)
			if err != nil {
				log.Printf("Error saving post image: %v", err)
				writeError(w, http.StatusInternalServerError, "Failed to save image")
				return
			}
			image = &name
		}
	}

	post, err := h.postService.Create(r.Context(), user.ID, content, image)
	if errors.Is(err, services.ErrEmptyPost) {
		writeError(w, http.StatusBadRequest, "Post content cannot be empty")
		return
	}
	if err != nil {
		log.Printf("Error creating post: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, PostResponse{Success: true, Post: post})
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	postID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid post ID")
		return
	}

	err := h.postService.Delete(r.Context(), user.ID, postID)
	if errors.Is(err, services.ErrUnauthorized) {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	if err != nil {
		log.Printf("Error deleting post: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeMessage(w, http.StatusOK, "Post deleted")
}

func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	postID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid post ID")
		return
	}

	liked, count, err := h.postService.ToggleLike(r.Context(), user.ID, postID)
	if errors.Is(err, services.ErrPostNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		log.Printf("Error toggling like: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, LikeResponse{Success: true, Liked: liked, Count: count})
}

type AddCommentRequest struct {
	Comment string `json:"comment"`
}

func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	postID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid post ID")
		return
	}

	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	comment, err := h.postService.AddComment(r.Context(), user.ID, postID, services.SanitizeText(req.Comment))
	if errors.Is(err, services.ErrEmptyComment) {
		writeError(w, http.StatusBadRequest, "Comment cannot be empty")
		return
	}
	if errors.Is(err, services.ErrPostNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		log.Printf("Error adding comment: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, CommentResponse{Success: true, Comment: comment})
}

func (h *PostHandler) Comments(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	postID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid post ID")
		return
	}

	comments, err := h.postService.Comments(r.Context(), user.ID, postID)
	if err != nil {
		log.Printf("Error listing comments: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, CommentsResponse{Success: true, Comments: comments})
}

func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	commentID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid comment ID")
		return
	}

	err := h.postService.DeleteComment(r.Context(), user.ID, commentID)
	if errors.Is(err, services.ErrUnauthorized) {
		writeError(w, http.StatusForbidden, "Unauthorized")
		return
	}
	if err != nil {
		log.Printf("Error deleting comment: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeMessage(w, http.StatusOK, "Comment deleted")
}

func (h *PostHandler) Share(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	postID, ok := pathUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid post ID")
		return
	}

	err := h.postService.Share(r.Context(), user.ID, postID)
	if errors.Is(err, services.ErrPostNotFound) {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		log.Printf("Error sharing post: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeMessage(w, http.StatusCreated, "Post shared")
}

func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	posts, err := h.postService.Feed(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error loading feed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FeedResponse{Success: true, Posts: posts})
}
