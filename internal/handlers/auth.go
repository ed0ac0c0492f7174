package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/myopinion/apiserver/internal/events"
	"github.com/myopinion/apiserver/internal/services"
	"github.com/myopinion/apiserver/internal/token"
	"github.com/myopinion/apiserver/types"
)

// AuthHandler provides authentication and admin moderation endpoints.
type AuthHandler struct {
	auth        *services.AuthService
	tokens      *token.Authority
	attachments *services.AttachmentService
	cleanup     *events.Publisher
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
// attachments may be nil when object storage is not configured.
func NewAuthHandler(
	auth *services.AuthService,
	tokens *token.Authority,
	attachments *services.AttachmentService,
	cleanup *events.Publisher,
) *AuthHandler {
	return &AuthHandler{
		auth:        auth,
		tokens:      tokens,
		attachments: attachments,
		cleanup:     cleanup,
	}
}

// AuthRouter registers auth and admin routes on the given router.
func AuthRouter(
	r chi.Router,
	auth *services.AuthService,
	tokens *token.Authority,
	attachments *services.AttachmentService,
	cleanup *events.Publisher,
) {
	handler := NewAuthHandler(auth, tokens, attachments, cleanup)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Get("/me", handler.Me)

	r.Group(func(r chi.Router) {
		r.Use(handler.RequireAuth, RequireAdmin)
		r.Post("/promote/{email}", handler.Promote)
		r.Get("/users", handler.ListUsers)
		r.Delete("/users/{userID}", handler.DeleteUser)
		r.Post("/users/{userID}/mute", handler.MuteUser)
		r.Post("/users/{userID}/unmute", handler.UnmuteUser)
		r.Post("/users/{userID}/ban", handler.BanUser)
		r.Post("/users/{userID}/unban", handler.UnbanUser)
	})
}

// RequireAuth enforces bearer-token authentication and injects the
// verified claims into context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return requireAuth(h.tokens)(next)
}

// RequireAuth constructs auth middleware for other routers.
func RequireAuth(tokens *token.Authority) func(http.Handler) http.Handler {
	return requireAuth(tokens)
}

func requireAuth(tokens *token.Authority) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates a route on the admin role claim. The check is a pure
// claim comparison; an authenticated non-admin gets 403, which is distinct
// from the 401 an unauthenticated caller gets from RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := claimsFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !claims.HasRole(types.RoleAdmin) {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Register creates a new user account and returns a token for it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	user, tok, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateUsername), errors.Is(err, services.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, services.ErrPasswordTooShort):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: tok, User: user})
}

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, tok, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: tok, User: user})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, http.StatusOK, userView(h.auth, user))
}

// Promote flips the named user's role to admin.
func (h *AuthHandler) Promote(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(chi.URLParam(r, "email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.auth.Promote(r.Context(), email); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to promote user")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "user " + email + " is now an admin"})
}

// ListUsers returns every account with derived moderation flags, for the
// admin panel.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.Users(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	views := make([]UserView, 0, len(users))
	for _, user := range users {
		views = append(views, userView(h.auth, user))
	}
	writeJSON(w, http.StatusOK, views)
}

// DeleteUser removes an account. Posts and comments cascade in the store;
// orphaned attachment objects are handed to the cleanup worker.
func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var objectKeys []string
	if h.attachments != nil {
		// Collected before the delete, while the rows still exist.
		objectKeys, _ = h.attachments.KeysByUser(r.Context(), userID)
	}

	if err := h.auth.Delete(r.Context(), userID); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	h.cleanup.UserDeleted(r.Context(), userID, objectKeys)
	w.WriteHeader(http.StatusNoContent)
}

// MuteUser opens a mute window on the user. A zero duration is permanent.
func (h *AuthHandler) MuteUser(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.auth.Mute, "user muted successfully")
}

// UnmuteUser clears the user's mute window.
func (h *AuthHandler) UnmuteUser(w http.ResponseWriter, r *http.Request) {
	h.clearRestriction(w, r, h.auth.Unmute, "user unmuted successfully")
}

// BanUser opens a ban window on the user. A zero duration is permanent.
func (h *AuthHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.auth.Ban, "user banned successfully")
}

// UnbanUser clears the user's ban window.
func (h *AuthHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	h.clearRestriction(w, r, h.auth.Unban, "user unbanned successfully")
}

func (h *AuthHandler) moderate(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, userID, durationMinutes int) error,
	message string,
) {
	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ModerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.DurationMinutes < 0 {
		writeError(w, http.StatusBadRequest, "invalid duration")
		return
	}

	if err := apply(r.Context(), userID, req.DurationMinutes); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

func (h *AuthHandler) clearRestriction(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, userID int) error,
	message string,
) {
	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := apply(r.Context(), userID); err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ModerationRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

// UserView is a user plus the moderation flags derived at read time.
type UserView struct {
	types.User
	IsMuted  bool `json:"is_muted"`
	IsBanned bool `json:"is_banned"`
}

func userView(auth *services.AuthService, user types.User) UserView {
	return UserView{
		User:     user,
		IsMuted:  auth.IsMuted(user),
		IsBanned: auth.IsBanned(user),
	}
}

func parseUserID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
