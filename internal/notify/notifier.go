// Package notify turns committed comments into pushes to the post author.
package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/starblog/internal/model"
	"github.com/sakif/starblog/internal/service"
)

const anonymousCommenter = "Someone"

// Pusher delivers an event to every open connection of a user.
// *realtime.Hub implements it.
type Pusher interface {
	PushToUser(userID int64, event string, data any) (int, error)
}

// Notifier is the comment listener that fans a new comment out to the
// post author's live connections.
//
// Delivery is best-effort. Nothing is queued for offline users, and every
// failure is logged and swallowed so the comment request never sees it.
type Notifier struct {
	pusher Pusher
	logger *slog.Logger
	now    func() time.Time
}

var _ service.CommentListener = (*Notifier)(nil)

func New(pusher Pusher, logger *slog.Logger) *Notifier {
	return &Notifier{pusher: pusher, logger: logger, now: time.Now}
}

// NotifyOnComment pushes a new_notification event to the post author.
// Orphaned posts and self-comments produce nothing.
func (n *Notifier) NotifyOnComment(postAuthorID *int64, commenterID int64, commenterName, postTitle string, postID, commentID int64) {
	if postAuthorID == nil || *postAuthorID == commenterID {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("notification panicked",
				slog.Int64("postID", postID),
				slog.Any("panic", r),
			)
		}
	}()

	event := model.Notification{
		Message:   Message(commenterName, postTitle),
		PostID:    postID,
		CommentID: commentID,
		Timestamp: n.now().UTC(),
	}

	delivered, err := n.pusher.PushToUser(*postAuthorID, model.EventNewNotification, event)
	if err != nil {
		n.logger.Warn("notification not delivered",
			slog.Int64("userID", *postAuthorID),
			slog.Int64("commentID", commentID),
			slog.String("error", err.Error()),
		)
		return
	}

	n.logger.Debug("notification pushed",
		slog.Int64("userID", *postAuthorID),
		slog.Int64("commentID", commentID),
		slog.Int("connections", delivered),
	)
}

// Message is the human-readable notification text.
func Message(commenterName, postTitle string) string {
	if commenterName == "" {
		commenterName = anonymousCommenter
	}
	return fmt.Sprintf("%s commented on your post \"%s\"", commenterName, postTitle)
}
