package model

import "time"

// EventNewNotification is the push event name for comment notifications.
const EventNewNotification = "new_notification"

// Notification is the payload of a new_notification push. It is never stored.
type Notification struct {
	Message   string    `json:"message"`
	PostID    int64     `json:"postId"`
	CommentID int64     `json:"commentId"`
	Timestamp time.Time `json:"timestamp"`
}
