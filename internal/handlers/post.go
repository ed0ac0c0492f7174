package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/myopinion/apiserver/internal/events"
	"github.com/myopinion/apiserver/internal/services"
	"github.com/myopinion/apiserver/internal/storage"
	"github.com/myopinion/apiserver/types"
)

const (
	maxAttachmentMemory = 32 << 20
	maxAttachmentBytes  = 64 << 20
	formFieldFile       = "file"
)

// PostHandler provides HTTP handlers for posts, comments, and attachments.
type PostHandler struct {
	posts       *services.PostService
	auth        *services.AuthService
	attachments *services.AttachmentService
	storage     *storage.Storage
	cleanup     *events.Publisher
}

// NewPostHandler constructs a handler with the provided services.
// attachments and storage may be nil when object storage is not configured.
func NewPostHandler(
	posts *services.PostService,
	auth *services.AuthService,
	attachments *services.AttachmentService,
	store *storage.Storage,
	cleanup *events.Publisher,
) *PostHandler {
	return &PostHandler{
		posts:       posts,
		auth:        auth,
		attachments: attachments,
		storage:     store,
		cleanup:     cleanup,
	}
}

// PostRouter registers post routes on the given router.
func PostRouter(
	r chi.Router,
	posts *services.PostService,
	auth *services.AuthService,
	attachments *services.AttachmentService,
	store *storage.Storage,
	cleanup *events.Publisher,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewPostHandler(posts, auth, attachments, store, cleanup)

	r.Get("/", handler.ListPosts)
	r.With(authMiddleware, handler.requireUnrestricted).Post("/", handler.CreatePost)
	r.Route("/{postID}", func(r chi.Router) {
		r.Get("/", handler.GetPost)
		r.With(authMiddleware, RequireAdmin).Delete("/", handler.DeletePost)
		r.With(authMiddleware, handler.requireUnrestricted).Post("/comments", handler.AddComment)
		r.Get("/attachments", handler.ListAttachments)
		r.With(authMiddleware, handler.requireUnrestricted).Post("/attachments", handler.UploadAttachment)
		r.Get("/attachments/{attachmentID}", handler.DownloadAttachment)
	})
}

// requireUnrestricted blocks write actions from muted or banned users. The
// flags are derived from the stored windows at request time, so a lapsed
// restriction clears itself without any admin action.
func (h *PostHandler) requireUnrestricted(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := h.auth.User(r.Context(), userID)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load user")
			return
		}

		if h.auth.IsBanned(user) {
			writeError(w, http.StatusForbidden, "account is banned")
			return
		}
		if h.auth.IsMuted(user) {
			writeError(w, http.StatusForbidden, "account is muted")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	categoryID := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("category_id")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid category id")
			return
		}
		categoryID = parsed
	}

	posts, err := h.posts.List(r.Context(), categoryID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list posts")
		return
	}

	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch post")
		return
	}

	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" || req.Content == "" || req.CategoryID < 1 {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	post, err := h.posts.Create(r.Context(), types.Post{
		Title:      req.Title,
		Content:    req.Content,
		UserID:     userID,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		if errors.Is(err, services.ErrCategoryNotFound) {
			writeError(w, http.StatusBadRequest, "category not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create post")
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	postID, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	comment, err := h.posts.AddComment(r.Context(), types.Comment{
		Content: req.Content,
		PostID:  postID,
		UserID:  userID,
	})
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to add comment")
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var objectKeys []string
	if h.attachments != nil {
		objectKeys, _ = h.attachments.KeysByPost(r.Context(), id)
	}

	if err := h.posts.Delete(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete post")
		return
	}

	h.cleanup.PostDeleted(r.Context(), id, objectKeys)
	w.WriteHeader(http.StatusNoContent)
}

func (h *PostHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	if h.attachments == nil {
		writeError(w, http.StatusNotImplemented, "attachments are not configured")
		return
	}

	postID, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attachments, err := h.attachments.ListByPost(r.Context(), postID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list attachments")
		return
	}

	writeJSON(w, http.StatusOK, attachments)
}

func (h *PostHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	if h.attachments == nil || h.storage == nil {
		writeError(w, http.StatusNotImplemented, "attachments are not configured")
		return
	}

	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	postID, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := h.posts.Get(r.Context(), postID)
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch post")
		return
	}

	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if post.UserID != userID && !claims.HasRole(types.RoleAdmin) {
		writeError(w, http.StatusForbidden, "only the author can attach files")
		return
	}

	if err := r.ParseMultipartForm(maxAttachmentMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if header.Size > maxAttachmentBytes {
		writeError(w, http.StatusBadRequest, "uploaded file too large")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := uuid.NewString()
	if err := h.storage.Put(r.Context(), key, file, header.Size, contentType); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	attachment, err := h.attachments.Create(r.Context(), types.Attachment{
		PostID:      postID,
		ObjectKey:   key,
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		_ = h.storage.Delete(r.Context(), key)
		writeError(w, http.StatusInternalServerError, "failed to save attachment")
		return
	}

	writeJSON(w, http.StatusCreated, attachment)
}

func (h *PostHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	if h.attachments == nil || h.storage == nil {
		writeError(w, http.StatusNotImplemented, "attachments are not configured")
		return
	}

	postID, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attachmentID, err := strconv.Atoi(chi.URLParam(r, "attachmentID"))
	if err != nil || attachmentID < 1 {
		writeError(w, http.StatusBadRequest, "invalid attachment id")
		return
	}

	attachment, err := h.attachments.Get(r.Context(), attachmentID)
	if err != nil {
		if errors.Is(err, services.ErrAttachmentNotFound) {
			writeError(w, http.StatusNotFound, "attachment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch attachment")
		return
	}
	if attachment.PostID != postID {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}

	object, err := h.storage.Get(r.Context(), attachment.ObjectKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read attachment")
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", attachment.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+attachment.Filename+`"`)
	_, _ = io.Copy(w, object)
}

type CreatePostRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	CategoryID int    `json:"category_id"`
}

type CreateCommentRequest struct {
	Content string `json:"content"`
}

func parsePostID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "postID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid post id")
	}
	return id, nil
}
