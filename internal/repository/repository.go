// Package repository declares the storage interfaces the services depend on.
//
// Services accept these interfaces, never a concrete database, so tests can
// hand them an in-memory fake and production hands them repository/sqlite.
package repository

import (
	"context"

	"github.com/sakif/starblog/internal/model"
)

// UserStore is the set of user operations that can run either standalone or
// inside a transaction opened by UserRepository.InUserTx.
//
// Lookups return an error wrapping apperror.ErrUserNotFound when no row
// matches. CreateUser and UpdateIdentity return an error wrapping
// apperror.ErrDuplicateEmail when the email or Google ID is already taken.
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// CreateUser inserts the user and fills in ID and timestamps.
	CreateUser(ctx context.Context, user *model.User) error

	// UpdateIdentity writes GoogleID, Name and AvatarURL of an existing user.
	// It never touches email or password_hash.
	UpdateIdentity(ctx context.Context, user *model.User) error
}

// UserRepository is the full user storage surface.
type UserRepository interface {
	UserStore

	UpdatePassword(ctx context.Context, id int64, hash string) error

	// InUserTx runs fn inside one transaction. fn's error (or panic) rolls
	// the transaction back; a nil return commits it.
	InUserTx(ctx context.Context, fn func(tx UserStore) error) error
}

// PostRepository covers the post glue the interactions need.
type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error

	// GetPost returns the post with its like count, or an error wrapping
	// apperror.ErrPostNotFound.
	GetPost(ctx context.Context, id int64) (*model.Post, error)

	// ListComments returns a post's comments oldest first, or an error
	// wrapping apperror.ErrPostNotFound.
	ListComments(ctx context.Context, postID int64) ([]model.Comment, error)

	HasLiked(ctx context.Context, userID, postID int64) (bool, error)
}

// InteractionRepository performs the multi-statement social writes. Each
// method is one transaction; any failing step rolls back every earlier one.
type InteractionRepository interface {
	// ToggleLike flips the (user, post) like and returns the new state with
	// the post's like count. A missing post yields apperror.ErrPostNotFound.
	ToggleLike(ctx context.Context, userID, postID int64) (*model.LikeResult, error)

	// CreateComment inserts a comment and reports what the post author needs
	// to be notified. A missing post yields apperror.ErrPostNotFound.
	CreateComment(ctx context.Context, userID, postID int64, content string) (*model.CommentCreated, error)

	// UpdateComment and DeleteComment are owner-only: another user's comment
	// yields apperror.ErrForbidden, a missing one apperror.ErrCommentNotFound.
	UpdateComment(ctx context.Context, userID, commentID int64, content string) (*model.Comment, error)
	DeleteComment(ctx context.Context, userID, commentID int64) error
}
