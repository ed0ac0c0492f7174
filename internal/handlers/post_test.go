package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/myopinion/apiserver/internal/events"
	"github.com/myopinion/apiserver/internal/handlers"
	"github.com/myopinion/apiserver/internal/services"
	"github.com/myopinion/apiserver/internal/store"
	"github.com/myopinion/apiserver/internal/token"
	"github.com/myopinion/apiserver/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPostRepo struct {
	nextID int
	posts  map[int]types.Post
}

func (r *memPostRepo) List(_ context.Context, categoryID int) ([]types.Post, error) {
	var posts []types.Post
	for _, post := range r.posts {
		if categoryID == 0 || post.CategoryID == categoryID {
			posts = append(posts, post)
		}
	}
	return posts, nil
}

func (r *memPostRepo) Get(_ context.Context, id int) (types.Post, error) {
	post, ok := r.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (r *memPostRepo) Create(_ context.Context, post types.Post) (types.Post, error) {
	r.nextID++
	post.ID = r.nextID
	r.posts[post.ID] = post
	return post, nil
}

func (r *memPostRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.posts, id)
	return nil
}

type memCommentRepo struct {
	nextID int
}

func (r *memCommentRepo) Create(_ context.Context, comment types.Comment) (types.Comment, error) {
	r.nextID++
	comment.ID = r.nextID
	return comment, nil
}

type memCategoryRepo struct {
	categories map[int]types.Category
}

func (r *memCategoryRepo) List(_ context.Context) ([]types.Category, error) {
	var categories []types.Category
	for _, category := range r.categories {
		categories = append(categories, category)
	}
	return categories, nil
}

func (r *memCategoryRepo) GetByID(_ context.Context, id int) (types.Category, error) {
	category, ok := r.categories[id]
	if !ok {
		return types.Category{}, store.ErrNotFound
	}
	return category, nil
}

func (r *memCategoryRepo) Create(_ context.Context, category types.Category) (types.Category, error) {
	category.ID = len(r.categories) + 1
	r.categories[category.ID] = category
	return category, nil
}

type postEnv struct {
	router *chi.Mux
	auth   *services.AuthService
	repo   *memUserRepo
	clock  *testClock
}

func newPostEnv(t *testing.T) *postEnv {
	t.Helper()

	userRepo := newMemUserRepo()
	clock := &testClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
	tokens := token.NewAuthority([]byte("test-secret"), token.WithClock(clock.Now))
	auth := services.NewAuthService(userRepo, tokens, services.WithClock(clock.Now))

	posts := services.NewPostService(
		&memPostRepo{posts: map[int]types.Post{}},
		&memCommentRepo{},
		&memCategoryRepo{categories: map[int]types.Category{1: {ID: 1, Name: "General"}}},
	)

	log := logrus.New()
	log.SetOutput(io.Discard)
	cleanup := events.NewPublisher(nil, log)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, auth, tokens, nil, cleanup)
	})
	router.Route("/posts", func(r chi.Router) {
		handlers.PostRouter(r, posts, auth, nil, nil, cleanup, handlers.RequireAuth(tokens))
	})

	return &postEnv{router: router, auth: auth, repo: userRepo, clock: clock}
}

func (e *postEnv) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	return doRequest(t, e.router, method, path, bearer, body)
}

func TestCreatePostRequiresAuth(t *testing.T) {
	env := newPostEnv(t)

	rec := env.do(t, http.MethodPost, "/posts/", "", handlers.CreatePostRequest{
		Title: "hello", Content: "world", CategoryID: 1,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMutedUserCannotPost(t *testing.T) {
	env := newPostEnv(t)
	user, tok := registerUser(t, env.router, "alice", "alice@example.com")

	require.NoError(t, env.auth.Mute(context.Background(), user.ID, 30))

	rec := env.do(t, http.MethodPost, "/posts/", tok, handlers.CreatePostRequest{
		Title: "hello", Content: "world", CategoryID: 1,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "muted")

	// The window lapses on its own; no unmute needed.
	env.clock.Advance(31 * time.Minute)
	rec = env.do(t, http.MethodPost, "/posts/", tok, handlers.CreatePostRequest{
		Title: "hello", Content: "world", CategoryID: 1,
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestBannedUserCannotComment(t *testing.T) {
	env := newPostEnv(t)
	_, authorToken := registerUser(t, env.router, "bob", "bob@example.com")

	rec := env.do(t, http.MethodPost, "/posts/", authorToken, handlers.CreatePostRequest{
		Title: "hello", Content: "world", CategoryID: 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var post types.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))

	banned, bannedToken := registerUser(t, env.router, "alice", "alice@example.com")
	require.NoError(t, env.auth.Ban(context.Background(), banned.ID, 0))

	path := "/posts/" + strconv.Itoa(post.ID) + "/comments"
	rec = env.do(t, http.MethodPost, path, bannedToken, handlers.CreateCommentRequest{Content: "nice"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "banned")

	// A permanent ban never lapses.
	env.clock.Advance(365 * 24 * time.Hour)
	rec = env.do(t, http.MethodPost, path, bannedToken, handlers.CreateCommentRequest{Content: "nice"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeletePostIsAdminOnly(t *testing.T) {
	env := newPostEnv(t)
	_, tok := registerUser(t, env.router, "alice", "alice@example.com")

	rec := env.do(t, http.MethodPost, "/posts/", tok, handlers.CreatePostRequest{
		Title: "hello", Content: "world", CategoryID: 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var post types.Post
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))

	rec = env.do(t, http.MethodDelete, "/posts/"+strconv.Itoa(post.ID), tok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "authors cannot delete their own posts")
}

func TestGetPostNotFoundOverHTTP(t *testing.T) {
	env := newPostEnv(t)

	rec := env.do(t, http.MethodGet, "/posts/42", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/posts/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
