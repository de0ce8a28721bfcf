package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/starblog/internal/apperror"
	"github.com/sakif/starblog/internal/model"
	"github.com/sakif/starblog/internal/repository"
)

// MaxCommentLength bounds a comment's content after trimming.
const MaxCommentLength = 5000

// CommentListener is told about every committed comment. It runs after the
// transaction, on the request goroutine, and must not block or fail the
// request; implementations handle their own errors.
type CommentListener interface {
	NotifyOnComment(postAuthorID *int64, commenterID int64, commenterName, postTitle string, postID, commentID int64)
}

// InteractionService validates likes and comments and hands them to the
// transactional repository.
type InteractionService struct {
	repo     repository.InteractionRepository
	listener CommentListener
	logger   *slog.Logger
}

// NewInteractionService creates an InteractionService. listener may be nil.
func NewInteractionService(repo repository.InteractionRepository, listener CommentListener, logger *slog.Logger) *InteractionService {
	return &InteractionService{repo: repo, listener: listener, logger: logger}
}

// ToggleLike flips the caller's like on a post.
func (s *InteractionService) ToggleLike(ctx context.Context, userID, postID int64) (*model.LikeResult, error) {
	res, err := s.repo.ToggleLike(ctx, userID, postID)
	if err != nil {
		return nil, fmt.Errorf("toggling like: %w", err)
	}
	s.logger.Debug("like toggled",
		slog.Int64("userID", userID),
		slog.Int64("postID", postID),
		slog.Bool("liked", res.Liked),
	)
	return res, nil
}

// CreateComment stores a comment and then notifies the listener.
//
// Empty or whitespace-only content is rejected before anything is written.
// The listener is called only after the transaction committed, so a
// notification never refers to a comment that was rolled back.
func (s *InteractionService) CreateComment(ctx context.Context, userID, postID int64, content string) (*model.Comment, error) {
	content, err := validateCommentContent(content)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateComment(ctx, userID, postID, content)
	if err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	s.logger.Info("comment created",
		slog.Int64("commentID", created.Comment.ID),
		slog.Int64("postID", postID),
		slog.Int64("userID", userID),
	)

	if s.listener != nil {
		name := ""
		if created.Comment.User.Name != nil {
			name = *created.Comment.User.Name
		}
		s.listener.NotifyOnComment(created.PostAuthorID, userID, name, created.PostTitle, postID, created.Comment.ID)
	}

	return &created.Comment, nil
}

// UpdateComment edits the caller's own comment.
func (s *InteractionService) UpdateComment(ctx context.Context, userID, commentID int64, content string) (*model.Comment, error) {
	content, err := validateCommentContent(content)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.UpdateComment(ctx, userID, commentID, content)
	if err != nil {
		return nil, fmt.Errorf("updating comment: %w", err)
	}
	return c, nil
}

// DeleteComment removes the caller's own comment.
func (s *InteractionService) DeleteComment(ctx context.Context, userID, commentID int64) error {
	if err := s.repo.DeleteComment(ctx, userID, commentID); err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	s.logger.Info("comment deleted", slog.Int64("commentID", commentID), slog.Int64("userID", userID))
	return nil
}

func validateCommentContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", &apperror.AppError{
			Err:     apperror.ErrEmptyContent,
			Message: "comment content must not be empty",
			Field:   "content",
		}
	}
	if len(content) > MaxCommentLength {
		return "", apperror.ValidationFailed("content",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}
	return content, nil
}
