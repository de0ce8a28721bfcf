package model

import "time"

// Comment is a comment joined with its author's display identity.
type Comment struct {
	ID        int64     `json:"id"        db:"id"`
	PostID    int64     `json:"postId"    db:"post_id"`
	Content   string    `json:"content"   db:"content"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
	User      Identity  `json:"user"      db:"user"`
}

// CommentCreated is what the storage layer reports after a committed comment
// insert: the comment itself plus the facts needed to notify the post author.
type CommentCreated struct {
	Comment      Comment
	PostAuthorID *int64
	PostTitle    string
}
