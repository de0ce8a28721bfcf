package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/starblog/internal/apperror"
	"github.com/sakif/starblog/internal/auth"
	"github.com/sakif/starblog/internal/service"
)

// InteractionHandler serves likes and comments. All routes require a
// signed-in caller.
type InteractionHandler struct {
	interactions *service.InteractionService
	logger       *slog.Logger
}

func NewInteractionHandler(interactions *service.InteractionService, logger *slog.Logger) *InteractionHandler {
	return &InteractionHandler{interactions: interactions, logger: logger}
}

// Content is checked by the service, which tells empty apart from too long.
type commentRequest struct {
	Content string `json:"content"`
}

// HandleToggleLike flips the caller's like on a post.
//
// HTTP: POST /posts/{postId}/like
// RESPONSE: {"liked": true, "likes": 3}
func (h *InteractionHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}
	postID, err := pathID(r, "postId")
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.interactions.ToggleLike(r.Context(), userID, postID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// HandleCreateComment adds a comment and notifies the post author.
//
// HTTP: POST /posts/{postId}/comments
// REQUEST BODY: {"content": "..."}
func (h *InteractionHandler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}
	postID, err := pathID(r, "postId")
	if err != nil {
		writeError(w, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.interactions.CreateComment(r.Context(), userID, postID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

// HandleUpdateComment edits the caller's own comment.
//
// HTTP: PUT /comments/{commentId}
func (h *InteractionHandler) HandleUpdateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}
	commentID, err := pathID(r, "commentId")
	if err != nil {
		writeError(w, err)
		return
	}

	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.interactions.UpdateComment(r.Context(), userID, commentID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comment)
}

// HandleDeleteComment removes the caller's own comment.
//
// HTTP: DELETE /comments/{commentId}
func (h *InteractionHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}
	commentID, err := pathID(r, "commentId")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.interactions.DeleteComment(r.Context(), userID, commentID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "comment deleted"})
}
