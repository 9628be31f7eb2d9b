package handlers

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/socialspace/socialspace/internal/models"
	"github.com/socialspace/socialspace/internal/services"
	"github.com/socialspace/socialspace/internal/testutil"
)

func newTestPostHandler(t *testing.T, svc *mockPostService) *PostHandler {
	t.Helper()
	uploads, err := services.NewUploadStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("creating upload store: %v", err)
	}
	return NewPostHandler(svc, uploads, 10<<20)
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("writing field %s: %v", k, err)
		}
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("creating file part: %v", err)
		}
		if _, err := part.Write(fileContent); err != nil {
			t.Fatalf("writing file part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func TestPostHandler_Create_TextOnly(t *testing.T) {
	user := testUser()
	var gotContent string
	var gotImage *string
	svc := &mockPostService{
		CreateFunc: func(ctx context.Context, userID uuid.UUID, content string, img *string) (*models.Post, error) {
			gotContent = content
			gotImage = img
			return &models.Post{ID: uuid.New(), UserID: userID, Content: content}, nil
		},
	}
	handler := newTestPostHandler(t, svc)

	body, contentType := multipartBody(t, map[string]string{"content": "hello world"}, "", "", nil)
	req := withUser(testutil.NewTestRequest(http.MethodPost, "/api/posts", body), user)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusCreated)
	if gotContent != "hello world" || gotImage != nil {
		t.Fatalf("unexpected create args: %q %v", gotContent, gotImage)
	}
}

func TestPostHandler_Create_SanitizesContent(t *testing.T) {
	var gotContent string
	svc := &mockPostService{
		CreateFunc: func(ctx context.Context, userID uuid.UUID, content string, img *string) (*models.Post, error) {
			gotContent = content
			return &models.Post{ID: uuid.New()}, nil
		},
	}
	handler := newTestPostHandler(t, svc)

	body, contentType := multipartBody(t, map[string]string{"content": "<script>alert(1)</script>hi"}, "", "", nil)
	req := withUser(testutil.NewTestRequest(http.MethodPost, "/api/posts", body), testUser())
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusCreated)
	if gotContent != "hi" {
		t.Fatalf("expected script stripped, got %q", gotContent)
	}
}

func TestPostHandler_Create_WithImage(t *testing.T) {
	var gotImage *string
	svc := &mockPostService{
		CreateFunc: func(ctx context.Context, userID uuid.UUID, content string, img *string) (*models.Post, error) {
			gotImage = img
			return &models.Post{ID: uuid.New(), Image: img}, nil
		},
	}
	handler := newTestPostHandler(t, svc)

	body, contentType := multipartBody(t, map[string]string{"content": "look"}, "image", "pic.png", pngBytes(t))
	req := withUser(testutil.NewTestRequest(http.MethodPost, "/api/posts", body), testUser())
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusCreated)
	if gotImage == nil {
		t.Fatal("expected stored image name")
	}
}

func TestPostHandler_Create_SkipsDisallowedImage(t *testing.T) {
	var gotImage *string
	svc := &mockPostService{
		CreateFunc: func(ctx context.Context, userID uuid.UUID, content string, img *string) (*models.Post, error) {
			gotImage = img
			return &models.Post{ID: uuid.New()}, nil
		},
	}
	handler := newTestPostHandler(t, svc)

	// A .txt attachment is dropped silently; the post still goes through.
	body, contentType := multipartBody(t, map[string]string{"content": "still posts"}, "image", "notes.txt", []byte("text"))
	req := withUser(testutil.NewTestRequest(http.MethodPost, "/api/posts", body), testUser())
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusCreated)
	if gotImage != nil {
		t.Fatalf("expected image skipped, got %v", *gotImage)
	}
}

func TestPostHandler_Create_Empty(t *testing.T) {
	svc := &mockPostService{
		CreateFunc: func(ctx context.Context, userID uuid.UUID, content string, img *string) (*models.Post, error) {
			return nil, services.ErrEmptyPost
		},
	}
	handler := newTestPostHandler(t, svc)

	body, contentType := multipartBody(t, map[string]string{"content": ""}, "", "", nil)
	req := withUser(testutil.NewTestRequest(http.MethodPost, "/api/posts", body), testUser())
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.Create(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusBadRequest)
	testutil.AssertJSONContains(t, rr.Body.Bytes(), "message", "Post content cannot be empty")
}

func TestPostHandler_Delete_Forbidden(t *testing.T) {
	svc := &mockPostService{
		DeleteFunc: func(ctx context.Context, userID, postID uuid.UUID) error {
			return services.ErrUnauthorized
		},
	}
	handler := newTestPostHandler(t, svc)

	postID := uuid.NewString()
	req := withUser(testutil.NewTestRequest(http.MethodDelete, "/api/posts/"+postID, nil), testUser())
	req.SetPathValue("id", postID)
	rr := httptest.NewRecorder()
	handler.Delete(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusForbidden)
}

func TestPostHandler_Like(t *testing.T) {
	svc := &mockPostService{
		ToggleLikeFunc: func(ctx context.Context, userID, postID uuid.UUID) (bool, int, error) {
			return true, 5, nil
		},
	}
	handler := newTestPostHandler(t, svc)

	postID := uuid.NewString()
	req := withUser(testutil.NewTestRequest(http.MethodPost, "/api/posts/"+postID+"/like", nil), testUser())
	req.SetPathValue("id", postID)
	rr := httptest.NewRecorder()
	handler.Like(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusOK)
	testutil.AssertJSONContains(t, rr.Body.Bytes(), "liked", true)
	testutil.AssertJSONContains(t, rr.Body.Bytes(), "count", float64(5))
}

func TestPostHandler_Like_MissingPost(t *testing.T) {
	svc := &mockPostService{
		ToggleLikeFunc: func(ctx context.Context, userID, postID uuid.UUID) (bool, int, error) {
			return false, 0, services.ErrPostNotFound
		},
	}
	handler := newTestPostHandler(t, svc)

	postID := uuid.NewString()
	req := withUser(testutil.NewTestRequest(http.MethodPost, "/api/posts/"+postID+"/like", nil), testUser())
	req.SetPathValue("id", postID)
	rr := httptest.NewRecorder()
	handler.Like(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusNotFound)
	testutil.AssertJSONContains(t, rr.Body.Bytes(), "message", "Post not found")
}

func TestPostHandler_AddComment(t *testing.T) {
	var gotText string
	svc := &mockPostService{
		AddCommentFunc: func(ctx context.Context, userID, postID uuid.UUID, text string) (*models.Comment, error) {
			gotText = text
			return &models.Comment{ID: uuid.New(), PostID: postID, UserID: userID, Comment: text}, nil
		},
	}
	handler := newTestPostHandler(t, svc)

	postID := uuid.NewString()
	req := withUser(testutil.NewTestRequestWithJSON(t, http.MethodPost, "/api/posts/"+postID+"/comments", AddCommentRequest{Comment: "nice <b>post</b>"}), testUser())
	req.SetPathValue("id", postID)
	rr := httptest.NewRecorder()
	handler.AddComment(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusCreated)
	if gotText != "nice post" {
		t.Fatalf("expected sanitized comment, got %q", gotText)
	}
}

func TestPostHandler_AddComment_Empty(t *testing.T) {
	svc := &mockPostService{
		AddCommentFunc: func(ctx context.Context, userID, postID uuid.UUID, text string) (*models.Comment, error) {
			return nil, services.ErrEmptyComment
		},
	}
	handler := newTestPostHandler(t, svc)

	postID := uuid.NewString()
	req := withUser(testutil.NewTestRequestWithJSON(t, http.MethodPost, "/api/posts/"+postID+"/comments", AddCommentRequest{}), testUser())
	req.SetPathValue("id", postID)
	rr := httptest.NewRecorder()
	handler.AddComment(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusBadRequest)
	testutil.AssertJSONContains(t, rr.Body.Bytes(), "message", "Comment cannot be empty")
}

func TestPostHandler_Share(t *testing.T) {
	svc := &mockPostService{}
	handler := newTestPostHandler(t, svc)

	postID := uuid.NewString()
	req := withUser(testutil.NewTestRequest(http.MethodPost, "/api/posts/"+postID+"/share", nil), testUser())
	req.SetPathValue("id", postID)
	rr := httptest.NewRecorder()
	handler.Share(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusCreated)
	testutil.AssertJSONContains(t, rr.Body.Bytes(), "message", "Post shared")
}

func TestPostHandler_Feed(t *testing.T) {
	user := testUser()
	svc := &mockPostService{
		FeedFunc: func(ctx context.Context, viewerID uuid.UUID) ([]models.PostWithAuthor, error) {
			if viewerID != user.ID {
				t.Fatalf("unexpected viewer: %v", viewerID)
			}
			return []models.PostWithAuthor{
				{Post: models.Post{ID: uuid.New(), Content: "hello"}, Username: "bob", LikesCount: 2},
			}, nil
		},
	}
	handler := newTestPostHandler(t, svc)

	req := withUser(testutil.NewTestRequest(http.MethodGet, "/api/posts", nil), user)
	rr := httptest.NewRecorder()
	handler.Feed(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusOK)
	got := testutil.ParseJSONResponse(t, rr.Body.Bytes())
	posts, ok := got["posts"].([]any)
	if !ok || len(posts) != 1 {
		t.Fatalf("expected one post, got %v", got)
	}
	post := posts[0].(map[string]any)
	if post["likes_count"] != float64(2) {
		t.Fatalf("unexpected likes_count: %v", post["likes_count"])
	}
}

func TestPostHandler_Feed_Anonymous(t *testing.T) {
	handler := newTestPostHandler(t, &mockPostService{})

	req := testutil.NewTestRequest(http.MethodGet, "/api/posts", nil)
	rr := httptest.NewRecorder()
	handler.Feed(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusUnauthorized)
}
