package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/starblog/internal/apperror"
	"github.com/sakif/starblog/internal/auth"
	"github.com/sakif/starblog/internal/service"
)

// PostHandler serves the post endpoints the interactions hang off.
type PostHandler struct {
	posts    *service.PostService
	validate *RequestValidator
	logger   *slog.Logger
}

func NewPostHandler(posts *service.PostService, validate *RequestValidator, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, validate: validate, logger: logger}
}

type createPostRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content"`
}

// HandleCreate publishes a post as the caller.
//
// HTTP: POST /posts
// Auth: Required
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	var req createPostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.Create(r.Context(), userID, req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

// HandleGet returns one post with its like count. A signed-in viewer also
// learns whether they liked it.
//
// HTTP: GET /posts/{postId}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "postId")
	if err != nil {
		writeError(w, err)
		return
	}

	viewerID, _ := auth.UserIDFromContext(r.Context())
	view, err := h.posts.Get(r.Context(), postID, viewerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// HandleListComments returns a post's comments, oldest first.
//
// HTTP: GET /posts/{postId}/comments
func (h *PostHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "postId")
	if err != nil {
		writeError(w, err)
		return
	}

	comments, err := h.posts.Comments(r.Context(), postID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a positive integer")
	}
	return id, nil
}
