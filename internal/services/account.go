package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/socialspace/socialspace/internal/models"
)

type AccountService struct {
	db      DB
	uploads *UploadStore
}

func NewAccountService(db DB, uploads *UploadStore) *AccountService {
	return &AccountService{db: db, uploads: uploads}
}

// BuildExportZip collects everything the user owns into CSV files inside
// an in-memory zip. Memory-bound on purpose: exports are per-user and
// small.
func (s *AccountService) BuildExportZip(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	var user struct {
		ID         uuid.UUID
		Username   string
		Email      string
		FullName   string
		Bio        string
		ProfilePic string
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	err := s.db.QueryRow(ctx,
		`SELECT id, username, email, full_name, bio, profile_pic, created_at, updated_at
		 FROM users WHERE id = $1`,
		userID,
	).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.Bio,
		&user.ProfilePic,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user for export: %w", err)
	}

	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	if err := writeReadme(zipWriter, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := writeCSVFile(zipWriter, "profile.csv", []string{
		"id",
		"username",
		"email",
		"full_name",
		"bio",
		"profile_pic",
		"created_at",
		"updated_at",
	}, func(w *csv.Writer) error {
		return w.Write([]string{
			user.ID.String(),
			sanitizeCSVValue(user.Username),
			sanitizeCSVValue(user.Email),
			sanitizeCSVValue(user.FullName),
			sanitizeCSVValue(user.Bio),
			sanitizeCSVValue(user.ProfilePic),
			formatTimeValue(user.CreatedAt),
			formatTimeValue(user.UpdatedAt),
		})
	}); err != nil {
		return nil, err
	}

	if err := s.writePostsCSV(ctx, zipWriter, userID); err != nil {
		return nil, err
	}
	if err := s.writeCommentsCSV(ctx, zipWriter, userID); err != nil {
		return nil, err
	}
	if err := s.writeLikesCSV(ctx, zipWriter, userID); err != nil {
		return nil, err
	}
	if err := s.writeSharesCSV(ctx, zipWriter, userID); err != nil {
		return nil, err
	}
	if err := s.writeFriendshipsCSV(ctx, zipWriter, userID); err != nil {
		return nil, err
	}
	if err := s.writeMessagesCSV(ctx, zipWriter, userID); err != nil {
		return nil, err
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("close export zip: %w", err)
	}

	return buf.Bytes(), nil
}

// Delete removes the account and every row referencing it. Foreign keys
// cascade the child tables; uploaded files are collected first and removed
// from disk after the database commit.
func (s *AccountService) Delete(ctx context.Context, userID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin account delete: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	var profilePic string
	err = tx.QueryRow(ctx, "SELECT profile_pic FROM users WHERE id = $1", userID).Scan(&profilePic)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load user for delete: %w", err)
	}

	postImages := []string{}
	rows, err := tx.Query(ctx, "SELECT image FROM posts WHERE user_id = $1 AND image IS NOT NULL", userID)
	if err != nil {
		return fmt.Errorf("query post images: %w", err)
	}
	for rows.Next() {
		var image string
		if err := rows.Scan(&image); err != nil {
			rows.Close()
			return fmt.Errorf("scan post image: %w", err)
		}
		postImages = append(postImages, image)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate post images: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM users WHERE id = $1", userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit account delete: %w", err)
	}
	committed = true

	if s.uploads != nil {
		if profilePic != models.DefaultProfilePic {
			_ = s.uploads.Remove(UploadKindProfile, profilePic)
		}
		for _, image := range postImages {
			_ = s.uploads.Remove(UploadKindPost, image)
		}
	}

	return nil
}

func (s *AccountService) writePostsCSV(ctx context.Context, zipWriter *zip.Writer, userID uuid.UUID) error {
	rows, err := s.db.Query(ctx,
		`SELECT id, content, image, created_at
		 FROM posts
		 WHERE user_id = $1
		 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	header := []string{"id", "content", "image", "created_at"}

	return writeCSVFile(zipWriter, "posts.csv", header, func(w *csv.Writer) error {
		for rows.Next() {
			var (
				postID    uuid.UUID
				content   string
				image     *string
				createdAt time.Time
			)
			if err := rows.Scan(&postID, &content, &image, &createdAt); err != nil {
				return fmt.Errorf("scan posts: %w", err)
			}
			if err := w.Write([]string{
				postID.String(),
				sanitizeCSVValue(content),
				nullableString(image),
				formatTimeValue(createdAt),
			}); err != nil {
				return fmt.Errorf("write posts row: %w", err)
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate posts: %w", err)
		}
		return nil
	})
}

func (s *AccountService) writeCommentsCSV(ctx context.Context, zipWriter *zip.Writer, userID uuid.UUID) error {
	rows, err := s.db.Query(ctx,
		`SELECT id, post_id, comment, created_at
		 FROM comments
		 WHERE user_id = $1
		 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	header := []string{"id", "post_id", "comment", "created_at"}

	return writeCSVFile(zipWriter, "comments.csv", header, func(w *csv.Writer) error {
		for rows.Next() {
			var (
				commentID uuid.UUID
				postID    uuid.UUID
				comment   string
				createdAt time.Time
			)
			if err := rows.Scan(&commentID, &postID, &comment, &createdAt); err != nil {
				return fmt.Errorf("scan comments: %w", err)
			}
			if err := w.Write([]string{
				commentID.String(),
				postID.String(),
				sanitizeCSVValue(comment),
				formatTimeValue(createdAt),
			}); err != nil {
				return fmt.Errorf("write comments row: %w", err)
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate comments: %w", err)
		}
		return nil
	})
}

func (s *AccountService) writeLikesCSV(ctx context.Context, zipWriter *zip.Writer, userID uuid.UUID) error {
	rows, err := s.db.Query(ctx,
		`SELECT id, post_id, created_at
		 FROM likes
		 WHERE user_id = $1
		 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("query likes: %w", err)
	}
	defer rows.Close()

	header := []string{"id", "post_id", "created_at"}

	return writeCSVFile(zipWriter, "likes.csv", header, func(w *csv.Writer) error {
		for rows.Next() {
			var (
				likeID    uuid.UUID
				postID    uuid.UUID
				createdAt time.Time
			)
			if err := rows.Scan(&likeID, &postID, &createdAt); err != nil {
				return fmt.Errorf("scan likes: %w", err)
			}
			if err := w.Write([]string{
				likeID.String(),
				postID.String(),
				formatTimeValue(createdAt),
			}); err != nil {
				return fmt.Errorf("write likes row: %w", err)
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate likes: %w", err)
		}
		return nil
	})
}

func (s *AccountService) writeSharesCSV(ctx context.Context, zipWriter *zip.Writer, userID uuid.UUID) error {
	rows, err := s.db.Query(ctx,
		`SELECT id, post_id, created_at
		 FROM shares
		 WHERE user_id = $1
		 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("query shares: %w", err)
	}
	defer rows.Close()

	header := []string{"id", "post_id", "created_at"}

	return writeCSVFile(zipWriter, "shares.csv", header, func(w *csv.Writer) error {
		for rows.Next() {
			var (
				shareID   uuid.UUID
				postID    uuid.UUID
				createdAt time.Time
			)
			if err := rows.Scan(&shareID, &postID, &createdAt); err != nil {
				return fmt.Errorf("scan shares: %w", err)
			}
			if err := w.Write([]string{
				shareID.String(),
				postID.String(),
				formatTimeValue(createdAt),
			}); err != nil {
				return fmt.Errorf("write shares row: %w", err)
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate shares: %w", err)
		}
		return nil
	})
}

func (s *AccountService) writeFriendshipsCSV(ctx context.Context, zipWriter *zip.Writer, userID uuid.UUID) error {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, friend_id, status, created_at
		 FROM friendships
		 WHERE user_id = $1 OR friend_id = $1
		 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("query friendships: %w", err)
	}
	defer rows.Close()

	header := []string{"id", "user_id", "friend_id", "status", "created_at"}

	return writeCSVFile(zipWriter, "friendships.csv", header, func(w *csv.Writer) error {
		for rows.Next() {
			var (
				friendshipID uuid.UUID
				requesterID  uuid.UUID
				addresseeID  uuid.UUID
				status       string
				createdAt    time.Time
			)
			if err := rows.Scan(&friendshipID, &requesterID, &addresseeID, &status, &createdAt); err != nil {
				return fmt.Errorf("scan friendships: %w", err)
			}
			if err := w.Write([]string{
				friendshipID.String(),
				requesterID.String(),
				addresseeID.String(),
				status,
				formatTimeValue(createdAt),
			}); err != nil {
				return fmt.Errorf("write friendships row: %w", err)
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate friendships: %w", err)
		}
		return nil
	})
}

func (s *AccountService) writeMessagesCSV(ctx context.Context, zipWriter *zip.Writer, userID uuid.UUID) error {
	rows, err := s.db.Query(ctx,
		`SELECT id, sender_id, receiver_id, message, is_read, created_at
		 FROM messages
		 WHERE sender_id = $1 OR receiver_id = $1
		 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	header := []string{"id", "sender_id", "receiver_id", "message", "is_read", "created_at"}

	return writeCSVFile(zipWriter, "messages.csv", header, func(w *csv.Writer) error {
		for rows.Next() {
			var (
				messageID  uuid.UUID
				senderID   uuid.UUID
				receiverID uuid.UUID
				message    string
				isRead     bool
				createdAt  time.Time
			)
			if err := rows.Scan(&messageID, &senderID, &receiverID, &message, &isRead, &createdAt); err != nil {
				return fmt.Errorf("scan messages: %w", err)
			}
			if err := w.Write([]string{
				messageID.String(),
				senderID.String(),
				receiverID.String(),
				sanitizeCSVValue(message),
				boolString(isRead),
				formatTimeValue(createdAt),
			}); err != nil {
				return fmt.Errorf("write messages row: %w", err)
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate messages: %w", err)
		}
		return nil
	})
}

func writeReadme(zipWriter *zip.Writer, generatedAt time.Time) error {
	file, err := zipWriter.Create("README.txt")
	if err != nil {
		return fmt.Errorf("create README.txt: %w", err)
	}
	content := fmt.Sprintf(
		"Social Space account export\nexport_version: 1\ngenerated_at: %s\nnotes: password hashes and session tokens are excluded from this export.\n",
		generatedAt.Format(time.RFC3339),
	)
	if _, err := io.WriteString(file, content); err != nil {
		return fmt.Errorf("write README.txt: %w", err)
	}
	return nil
}

func writeCSVFile(zipWriter *zip.Writer, name string, header []string, writeRows func(*csv.Writer) error) error {
	file, err := zipWriter.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	if err := writeRows(writer); err != nil {
		return fmt.Errorf("write %s rows: %w", name, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return nil
}

func formatTimeValue(value time.Time) string {
	return value.UTC().Format(time.RFC3339)
}

func boolString(value bool) string {
	if value {
		return "true"
	}
	return "false"
}

func nullableString(value *string) string {
	if value == nil {
		return ""
	}
	return sanitizeCSVValue(*value)
}

// sanitizeCSVValue neutralizes formula injection for spreadsheet tools.
func sanitizeCSVValue(value string) string {
	first := firstNonSpace(value)
	if first == 0 {
		return value
	}
	switch first {
	case '=', '+', '-', '@':
		return "'" + strings.ReplaceAll(value, "'", "''")
	default:
		return value
	}
}

func firstNonSpace(value string) rune {
	for _, r := range value {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return r
		}
	}
	return 0
}

type AccountServiceInterface interface {
	BuildExportZip(ctx context.Context, userID uuid.UUID) ([]byte, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}
