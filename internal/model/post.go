package model

import "time"

// Post is the target of likes and comments.
//
// AuthorID is nil for an orphaned post (its author row is gone); such a post
// still accepts comments but nobody is notified about them.
type Post struct {
	ID        int64     `json:"id"        db:"id"`
	AuthorID  *int64    `json:"userId"    db:"user_id"`
	Title     string    `json:"title"     db:"title"`
	Content   string    `json:"content"   db:"content"`
	Likes     int       `json:"likes"     db:"likes"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// LikeResult is the state of a (user, post) like after a toggle.
type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}
