package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/starblog/internal/apperror"
	"github.com/sakif/starblog/internal/model"
	"github.com/sakif/starblog/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

// commentSelect reads comments joined with their author. The dotted aliases
// let sqlx fill the nested model.Comment.User struct.
const commentSelect = `
	SELECT c.id, c.post_id, c.content, c.created_at, c.updated_at,
	       u.id         AS "user.id",
	       u.name       AS "user.name",
	       u.avatar_url AS "user.avatar_url"
	FROM comments c
	JOIN users u ON u.id = c.user_id`

func (d *DB) CreatePost(ctx context.Context, post *model.Post) error {
	now := time.Now().UTC()
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO posts (user_id, title, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		post.AuthorID, post.Title, post.Content, now, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.Wrap(apperror.ErrUserNotFound, "post author does not exist")
		}
		return fmt.Errorf("sqlite: inserting post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new post id: %w", err)
	}
	post.ID = id
	post.CreatedAt = now
	post.UpdatedAt = now
	return nil
}

func (d *DB) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	var p model.Post
	err := d.db.GetContext(ctx, &p,
		`SELECT p.id, p.user_id, p.title, p.content, p.created_at, p.updated_at,
		        (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id) AS likes
		 FROM posts p WHERE p.id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, postNotFound(id)
		}
		return nil, fmt.Errorf("sqlite: getting post %d: %w", id, err)
	}
	return &p, nil
}

func (d *DB) ListComments(ctx context.Context, postID int64) ([]model.Comment, error) {
	var exists bool
	if err := d.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM posts WHERE id = ?)`, postID); err != nil {
		return nil, fmt.Errorf("sqlite: checking post %d: %w", postID, err)
	}
	if !exists {
		return nil, postNotFound(postID)
	}

	comments := []model.Comment{}
	if err := d.db.SelectContext(ctx, &comments,
		commentSelect+` WHERE c.post_id = ? ORDER BY c.created_at, c.id`, postID); err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of post %d: %w", postID, err)
	}
	return comments, nil
}

func (d *DB) HasLiked(ctx context.Context, userID, postID int64) (bool, error) {
	var liked bool
	if err := d.db.GetContext(ctx, &liked,
		`SELECT EXISTS(SELECT 1 FROM likes WHERE user_id = ? AND post_id = ?)`, userID, postID); err != nil {
		return false, fmt.Errorf("sqlite: checking like (user=%d, post=%d): %w", userID, postID, err)
	}
	return liked, nil
}

func postNotFound(id int64) error {
	return apperror.NotFound(apperror.ErrPostNotFound, id)
}
