package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/socialspace/socialspace/internal/middleware"
	"github.com/socialspace/socialspace/internal/models"
	"github.com/socialspace/socialspace/internal/services"
)

func withUser(r *http.Request, user *models.User) *http.Request {
	return r.WithContext(middleware.ContextWithUser(r.Context(), user))
}

func testUser() *models.User {
	hash := "$2a$10$hash"
	return &models.User{
		ID:           uuid.New(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: &hash,
		FullName:     "Alice Miller",
		ProfilePic:   models.DefaultProfilePic,
	}
}

type mockAuthService struct {
	HashPasswordFunc    func(password string) (string, error)
	VerifyPasswordFunc  func(hash *string, password string) bool
	CreateSessionFunc   func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateSessionFunc func(ctx context.Context, token string) (uuid.UUID, error)
	DeleteSessionFunc   func(ctx context.Context, token string) error
}

var _ services.AuthServiceInterface = (*mockAuthService)(nil)

func (m *mockAuthService) HashPassword(password string) (string, error) {
	if m.HashPasswordFunc != nil {
		return m.HashPasswordFunc(password)
	}
	return "hashed:" + password, nil
}

func (m *mockAuthService) VerifyPassword(hash *string, password string) bool {
	if m.VerifyPasswordFunc != nil {
		return m.VerifyPasswordFunc(hash, password)
	}
	return true
}

func (m *mockAuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, userID)
	}
	return "test-token", nil
}

func (m *mockAuthService) ValidateSession(ctx context.Context, token string) (uuid.UUID, error) {
	if m.ValidateSessionFunc != nil {
		return m.ValidateSessionFunc(ctx, token)
	}
	return uuid.Nil, services.ErrSessionNotFound
}

func (m *mockAuthService) DeleteSession(ctx context.Context, token string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, token)
	}
	return nil
}

type mockUserService struct {
	CreateFunc        func(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByIDFunc       func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByLoginFunc    func(ctx context.Context, login string) (*models.User, error)
	GetByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
	UpdateProfileFunc func(ctx context.Context, userID uuid.UUID, fullName, bio string, profilePic *string) (*models.User, error)
	StatsFunc         func(ctx context.Context, userID uuid.UUID) (int, int, error)
}

var _ services.UserServiceInterface = (*mockUserService)(nil)

func (m *mockUserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, services.ErrUserNotFound
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, services.ErrUserNotFound
}

func (m *mockUserService) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	if m.GetByLoginFunc != nil {
		return m.GetByLoginFunc(ctx, login)
	}
	return nil, services.ErrUserNotFound
}

func (m *mockUserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, services.ErrUserNotFound
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName, bio string, profilePic *string) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, fullName, bio, profilePic)
	}
	return nil, services.ErrUserNotFound
}

func (m *mockUserService) Stats(ctx context.Context, userID uuid.UUID) (int, int, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, userID)
	}
	return 0, 0, nil
}

type mockFriendService struct {
	SendRequestFunc   func(ctx context.Context, userID, friendID uuid.UUID) error
	AcceptRequestFunc func(ctx context.Context, userID, requestID uuid.UUID) error
	RejectRequestFunc func(ctx context.Context, userID, requestID uuid.UUID) error
	UnfriendFunc      func(ctx context.Context, userID, friendID uuid.UUID) error
	RequestsFunc      func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error)
	FriendsFunc       func(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error)
	StatusForFunc     func(ctx context.Context, viewerID, otherID uuid.UUID) (models.FriendshipState, error)
	SearchFunc        func(ctx context.Context, viewerID uuid.UUID, query string) ([]models.UserSearchResult, error)
}

var _ services.FriendServiceInterface = (*mockFriendService)(nil)

func (m *mockFriendService) SendRequest(ctx context.Context, userID, friendID uuid.UUID) error {
	if m.SendRequestFunc != nil {
		return m.SendRequestFunc(ctx, userID, friendID)
	}
	return nil
}

func (m *mockFriendService) AcceptRequest(ctx context.Context, userID, requestID uuid.UUID) error {
	if m.AcceptRequestFunc != nil {
		return m.AcceptRequestFunc(ctx, userID, requestID)
	}
	return nil
}

func (m *mockFriendService) RejectRequest(ctx context.Context, userID, requestID uuid.UUID) error {
	if m.RejectRequestFunc != nil {
		return m.RejectRequestFunc(ctx, userID, requestID)
	}
	return nil
}

func (m *mockFriendService) Unfriend(ctx context.Context, userID, friendID uuid.UUID) error {
	if m.UnfriendFunc != nil {
		return m.UnfriendFunc(ctx, userID, friendID)
	}
	return nil
}

func (m *mockFriendService) Requests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	if m.RequestsFunc != nil {
		return m.RequestsFunc(ctx, userID)
	}
	return []models.FriendRequest{}, nil
}

func (m *mockFriendService) Friends(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error) {
	if m.FriendsFunc != nil {
		return m.FriendsFunc(ctx, userID)
	}
	return []models.UserSummary{}, nil
}

func (m *mockFriendService) StatusFor(ctx context.Context, viewerID, otherID uuid.UUID) (models.FriendshipState, error) {
	if m.StatusForFunc != nil {
		return m.StatusForFunc(ctx, viewerID, otherID)
	}
	return models.FriendshipStateNone, nil
}

func (m *mockFriendService) Search(ctx context.Context, viewerID uuid.UUID, query string) ([]models.UserSearchResult, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, viewerID, query)
	}
	return []models.UserSearchResult{}, nil
}

type mockPostService struct {
	CreateFunc        func(ctx context.Context, userID uuid.UUID, content string, image *string) (*models.Post, error)
	DeleteFunc        func(ctx context.Context, userID, postID uuid.UUID) error
	ToggleLikeFunc    func(ctx context.Context, userID, postID uuid.UUID) (bool, int, error)
	AddCommentFunc    func(ctx context.Context, userID, postID uuid.UUID, text string) (*models.Comment, error)
	CommentsFunc      func(ctx context.Context, viewerID, postID uuid.UUID) ([]models.CommentView, error)
	DeleteCommentFunc func(ctx context.Context, userID, commentID uuid.UUID) error
	ShareFunc         func(ctx context.Context, userID, postID uuid.UUID) error
	FeedFunc          func(ctx context.Context, viewerID uuid.UUID) ([]models.PostWithAuthor, error)
	UserPostsFunc     func(ctx context.Context, viewerID, authorID uuid.UUID) ([]models.PostWithAuthor, error)
}

var _ services.PostServiceInterface = (*mockPostService)(nil)

func (m *mockPostService) Create(ctx context.Context, userID uuid.UUID, content string, image *string) (*models.Post, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, content, image)
	}
	return &models.Post{ID: uuid.New(), UserID: userID, Content: content, Image: image}, nil
}

func (m *mockPostService) Delete(ctx context.Context, userID, postID uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, postID)
	}
	return nil
}

func (m *mockPostService) ToggleLike(ctx context.Context, userID, postID uuid.UUID) (bool, int, error) {
	if m.ToggleLikeFunc != nil {
		return m.ToggleLikeFunc(ctx, userID, postID)
	}
	return false, 0, nil
}

func (m *mockPostService) AddComment(ctx context.Context, userID, postID uuid.UUID, text string) (*models.Comment, error) {
	if m.AddCommentFunc != nil {
		return m.AddCommentFunc(ctx, userID, postID, text)
	}
	return &models.Comment{ID: uuid.New(), PostID: postID, UserID: userID, Comment: text}, nil
}

func (m *mockPostService) Comments(ctx context.Context, viewerID, postID uuid.UUID) ([]models.CommentView, error) {
	if m.CommentsFunc != nil {
		return m.CommentsFunc(ctx, viewerID, postID)
	}
	return []models.CommentView{}, nil
}

func (m *mockPostService) DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error {
	if m.DeleteCommentFunc != nil {
		return m.DeleteCommentFunc(ctx, userID, commentID)
	}
	return nil
}

func (m *mockPostService) Share(ctx context.Context, userID, postID uuid.UUID) error {
	if m.ShareFunc != nil {
		return m.ShareFunc(ctx, userID, postID)
	}
	return nil
}

func (m *mockPostService) Feed(ctx context.Context, viewerID uuid.UUID) ([]models.PostWithAuthor, error) {
	if m.FeedFunc != nil {
		return m.FeedFunc(ctx, viewerID)
	}
	return []models.PostWithAuthor{}, nil
}

func (m *mockPostService) UserPosts(ctx context.Context, viewerID, authorID uuid.UUID) ([]models.PostWithAuthor, error) {
	if m.UserPostsFunc != nil {
		return m.UserPostsFunc(ctx, viewerID, authorID)
	}
	return []models.PostWithAuthor{}, nil
}

type mockMessageService struct {
	SendFunc               func(ctx context.Context, senderID, receiverID uuid.UUID, text string) (*models.Message, error)
	ConversationFunc       func(ctx context.Context, userID, friendID uuid.UUID) ([]models.MessageView, error)
	UnreadCountFunc        func(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteMessageFunc      func(ctx context.Context, userID, messageID uuid.UUID) error
	DeleteConversationFunc func(ctx context.Context, userID, friendID uuid.UUID) error
	SetThemeFunc           func(ctx context.Context, userID, friendID uuid.UUID, theme string) error
	ThemeFunc              func(ctx context.Context, userID, friendID uuid.UUID) (string, error)
}

var _ services.MessageServiceInterface = (*mockMessageService)(nil)

func (m *mockMessageService) Send(ctx context.Context, senderID, receiverID uuid.UUID, text string) (*models.Message, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, senderID, receiverID, text)
	}
	return &models.Message{ID: uuid.New(), SenderID: senderID, ReceiverID: receiverID, Message: text}, nil
}

func (m *mockMessageService) Conversation(ctx context.Context, userID, friendID uuid.UUID) ([]models.MessageView, error) {
	if m.ConversationFunc != nil {
		return m.ConversationFunc(ctx, userID, friendID)
	}
	return []models.MessageView{}, nil
}

func (m *mockMessageService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	if m.UnreadCountFunc != nil {
		return m.UnreadCountFunc(ctx, userID)
	}
	return 0, nil
}

func (m *mockMessageService) DeleteMessage(ctx context.Context, userID, messageID uuid.UUID) error {
	if m.DeleteMessageFunc != nil {
		return m.DeleteMessageFunc(ctx, userID, messageID)
	}
	return nil
}

func (m *mockMessageService) DeleteConversation(ctx context.Context, userID, friendID uuid.UUID) error {
	if m.DeleteConversationFunc != nil {
		return m.DeleteConversationFunc(ctx, userID, friendID)
	}
	return nil
}

func (m *mockMessageService) SetTheme(ctx context.Context, userID, friendID uuid.UUID, theme string) error {
	if m.SetThemeFunc != nil {
		return m.SetThemeFunc(ctx, userID, friendID, theme)
	}
	return nil
}

func (m *mockMessageService) Theme(ctx context.Context, userID, friendID uuid.UUID) (string, error) {
	if m.ThemeFunc != nil {
		return m.ThemeFunc(ctx, userID, friendID)
	}
	return models.DefaultMessageTheme, nil
}

type mockNotificationService struct {
	ListFunc        func(ctx context.Context, userID uuid.UUID, limit int) ([]models.NotificationView, error)
	UnreadCountFunc func(ctx context.Context, userID uuid.UUID) (int, error)
	MarkReadFunc    func(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllReadFunc func(ctx context.Context, userID uuid.UUID) error
	DeleteFunc      func(ctx context.Context, userID, notificationID uuid.UUID) error
}

var _ services.NotificationServiceInterface = (*mockNotificationService)(nil)

func (m *mockNotificationService) List(ctx context.Context, userID uuid.UUID, limit int) ([]models.NotificationView, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID, limit)
	}
	return []models.NotificationView{}, nil
}

func (m *mockNotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	if m.UnreadCountFunc != nil {
		return m.UnreadCountFunc(ctx, userID)
	}
	return 0, nil
}

func (m *mockNotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, userID, notificationID)
	}
	return nil
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if m.MarkAllReadFunc != nil {
		return m.MarkAllReadFunc(ctx, userID)
	}
	return nil
}

func (m *mockNotificationService) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, notificationID)
	}
	return nil
}

type mockAccountService struct {
	BuildExportZipFunc func(ctx context.Context, userID uuid.UUID) ([]byte, error)
	DeleteFunc         func(ctx context.Context, userID uuid.UUID) error
}

var _ services.AccountServiceInterface = (*mockAccountService)(nil)

func (m *mockAccountService) BuildExportZip(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	if m.BuildExportZipFunc != nil {
		return m.BuildExportZipFunc(ctx, userID)
	}
	return []byte{}, nil
}

func (m *mockAccountService) Delete(ctx context.Context, userID uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID)
	}
	return nil
}
