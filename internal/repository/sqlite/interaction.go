package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/starblog/internal/apperror"
	"github.com/sakif/starblog/internal/model"
	"github.com/sakif/starblog/internal/repository"
)

var _ repository.InteractionRepository = (*DB)(nil)

// ToggleLike flips the like of (userID, postID) in one transaction:
//
//  1. look for the (user, post) row
//  2. present → delete it; absent → insert it
//  3. count the post's likes
//
// The insert is also the existence check for the post: a missing post fails
// the foreign key and nothing is written.
func (d *DB) ToggleLike(ctx context.Context, userID, postID int64) (*model.LikeResult, error) {
	var result model.LikeResult

	err := d.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM likes WHERE user_id = ? AND post_id = ?)`,
			userID, postID); err != nil {
			return fmt.Errorf("sqlite: checking like: %w", err)
		}

		if exists {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM likes WHERE user_id = ? AND post_id = ?`, userID, postID); err != nil {
				return fmt.Errorf("sqlite: deleting like: %w", err)
			}
			result.Liked = false
		} else {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO likes (user_id, post_id, created_at) VALUES (?, ?, ?)`,
				userID, postID, time.Now().UTC()); err != nil {
				if isForeignKeyViolation(err) {
					return postNotFound(postID)
				}
				return fmt.Errorf("sqlite: inserting like: %w", err)
			}
			result.Liked = true
		}

		if err := tx.GetContext(ctx, &result.Likes,
			`SELECT COUNT(*) FROM likes WHERE post_id = ?`, postID); err != nil {
			return fmt.Errorf("sqlite: counting likes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateComment inserts the comment and, in the same transaction, reads
// what the notifier needs: the post's author and title, and the comment as
// displayed (joined with its author).
func (d *DB) CreateComment(ctx context.Context, userID, postID int64, content string) (*model.CommentCreated, error) {
	var created model.CommentCreated

	err := d.withTx(ctx, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO comments (post_id, user_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			postID, userID, content, now, now)
		if err != nil {
			if isForeignKeyViolation(err) {
				return postNotFound(postID)
			}
			return fmt.Errorf("sqlite: inserting comment: %w", err)
		}
		commentID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("sqlite: reading new comment id: %w", err)
		}

		var post struct {
			AuthorID *int64 `db:"user_id"`
			Title    string `db:"title"`
		}
		if err := tx.GetContext(ctx, &post,
			`SELECT user_id, title FROM posts WHERE id = ?`, postID); err != nil {
			return fmt.Errorf("sqlite: reading post %d after comment insert: %w", postID, err)
		}
		created.PostAuthorID = post.AuthorID
		created.PostTitle = post.Title

		// The row was inserted a moment ago in this transaction; not finding
		// it means the database is inconsistent, not that the caller erred.
		if err := tx.GetContext(ctx, &created.Comment,
			commentSelect+` WHERE c.id = ?`, commentID); err != nil {
			return fmt.Errorf("sqlite: reading back comment %d: %w", commentID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateComment replaces the content of the caller's own comment.
func (d *DB) UpdateComment(ctx context.Context, userID, commentID int64, content string) (*model.Comment, error) {
	var updated model.Comment

	err := d.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := checkCommentOwner(ctx, tx, userID, commentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE comments SET content = ?, updated_at = ? WHERE id = ?`,
			content, time.Now().UTC(), commentID); err != nil {
			return fmt.Errorf("sqlite: updating comment %d: %w", commentID, err)
		}
		if err := tx.GetContext(ctx, &updated, commentSelect+` WHERE c.id = ?`, commentID); err != nil {
			return fmt.Errorf("sqlite: reading back comment %d: %w", commentID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteComment removes the caller's own comment.
func (d *DB) DeleteComment(ctx context.Context, userID, commentID int64) error {
	return d.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := checkCommentOwner(ctx, tx, userID, commentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, commentID); err != nil {
			return fmt.Errorf("sqlite: deleting comment %d: %w", commentID, err)
		}
		return nil
	})
}

func checkCommentOwner(ctx context.Context, tx *sqlx.Tx, userID, commentID int64) error {
	var ownerID int64
	err := tx.GetContext(ctx, &ownerID, `SELECT user_id FROM comments WHERE id = ?`, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound(apperror.ErrCommentNotFound, commentID)
		}
		return fmt.Errorf("sqlite: reading comment %d: %w", commentID, err)
	}
	if ownerID != userID {
		return apperror.Forbidden("you can only change your own comments")
	}
	return nil
}
