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

const MaxPostTitleLength = 200

// PostService is the thin post glue the interactions hang off.
type PostService struct {
	repo   repository.PostRepository
	logger *slog.Logger
}

func NewPostService(repo repository.PostRepository, logger *slog.Logger) *PostService {
	return &PostService{repo: repo, logger: logger}
}

// PostView is a post as seen by one viewer.
type PostView struct {
	model.Post
	LikedByMe bool `json:"likedByMe"`
}

func (s *PostService) Create(ctx context.Context, authorID int64, title, content string) (*model.Post, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "post title is required")
	}
	if len(title) > MaxPostTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("post title must be %d characters or less", MaxPostTitleLength))
	}

	post := &model.Post{AuthorID: &authorID, Title: title, Content: content}
	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created", slog.Int64("postID", post.ID), slog.Int64("userID", authorID))
	return post, nil
}

// Get returns the post; viewerID 0 means an anonymous viewer.
func (s *PostService) Get(ctx context.Context, id, viewerID int64) (*PostView, error) {
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &PostView{Post: *post}
	if viewerID > 0 {
		if view.LikedByMe, err = s.repo.HasLiked(ctx, viewerID, id); err != nil {
			return nil, fmt.Errorf("checking like: %w", err)
		}
	}
	return view, nil
}

func (s *PostService) Comments(ctx context.Context, postID int64) ([]model.Comment, error) {
	return s.repo.ListComments(ctx, postID)
}
