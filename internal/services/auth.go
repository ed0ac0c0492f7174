package services

import (
	"context"
	"errors"
	"time"

	"github.com/myopinion/apiserver/internal/store"
	"github.com/myopinion/apiserver/internal/token"
	"github.com/myopinion/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// permanentUntil is the sentinel window end for a permanent restriction.
// A duration of 0 minutes maps here, so permanent and time-boxed
// restrictions share one storage field and one derivation rule.
var permanentUntil = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// AuthService is the credential and moderation authority: it turns
// credentials into signed tokens, promotes users, and applies the
// time-boxed mute/ban windows admins use to moderate content.
type AuthService struct {
	repo   UserRepository
	tokens *token.Authority
	now    func() time.Time
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithClock overrides the time source, for deterministic tests of
// restriction expiry.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService constructs an AuthService issuing tokens through the
// given authority.
func NewAuthService(repo UserRepository, tokens *token.Authority, opts ...AuthOption) *AuthService {
	s := &AuthService{
		repo:   repo,
		tokens: tokens,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user with the default role and returns a fresh token
// for the new identity. Username and email must both be unused. The only
// password rule is the minimum length.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (types.User, string, error) {
	if len(password) < minPasswordLength {
		return types.User{}, "", ErrPasswordTooShort
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return types.User{}, "", ErrDuplicateUsername
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, "", err
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, "", ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, "", err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		Role:         types.RoleUser,
		PasswordHash: string(hashed),
	})
	if err != nil {
		return types.User{}, "", err
	}

	tok, err := s.tokens.Issue(user)
	if err != nil {
		return types.User{}, "", err
	}
	return user, tok, nil
}

// Login verifies credentials against the stored hash and returns a fresh
// token. Unknown email and wrong password are indistinguishable to the
// caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.User, string, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, "", ErrInvalidCredentials
		}
		return types.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, "", ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(user)
	if err != nil {
		return types.User{}, "", err
	}
	return user, tok, nil
}

// Promote flips a user's role to admin. Promoting an existing admin is a
// no-op re-write. There is no demotion operation.
func (s *AuthService) Promote(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return s.mapNotFound(err)
	}
	user.Role = types.RoleAdmin
	_, err = s.repo.Update(ctx, user)
	return s.mapNotFound(err)
}

// User fetches a single user by id.
func (s *AuthService) User(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, s.mapNotFound(err)
	}
	return user, nil
}

// Users lists every account, for the admin panel.
func (s *AuthService) Users(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

// Delete removes a user. Dependent posts and comments cascade in the
// store; attachment blobs are cleaned up by the worker.
func (s *AuthService) Delete(ctx context.Context, id int) error {
	return s.mapNotFound(s.repo.Delete(ctx, id))
}

// Mute opens a mute window on the user. A zero duration means permanent;
// a positive duration ends the window that many minutes from now, UTC.
// A new window overwrites any existing one, it never extends it.
func (s *AuthService) Mute(ctx context.Context, userID, durationMinutes int) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return s.mapNotFound(err)
	}
	user.MutedUntil = s.restrictionEnd(durationMinutes)
	_, err = s.repo.Update(ctx, user)
	return s.mapNotFound(err)
}

// Unmute clears the mute window unconditionally. Unmuting an unmuted user
// succeeds with no state change.
func (s *AuthService) Unmute(ctx context.Context, userID int) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return s.mapNotFound(err)
	}
	user.MutedUntil = nil
	_, err = s.repo.Update(ctx, user)
	return s.mapNotFound(err)
}

// Ban opens a ban window on the user, with the same duration semantics as
// Mute. Banning does not revoke tokens already issued to the user.
func (s *AuthService) Ban(ctx context.Context, userID, durationMinutes int) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return s.mapNotFound(err)
	}
	user.BannedUntil = s.restrictionEnd(durationMinutes)
	_, err = s.repo.Update(ctx, user)
	return s.mapNotFound(err)
}

// Unban clears the ban window unconditionally.
func (s *AuthService) Unban(ctx context.Context, userID int) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return s.mapNotFound(err)
	}
	user.BannedUntil = nil
	_, err = s.repo.Update(ctx, user)
	return s.mapNotFound(err)
}

// IsMuted derives the user's mute status from the stored window and the
// current clock. No state transition happens; an elapsed window simply
// stops counting.
func (s *AuthService) IsMuted(user types.User) bool {
	return user.IsMutedAt(s.now())
}

// IsBanned derives the user's ban status from the stored window and the
// current clock.
func (s *AuthService) IsBanned(user types.User) bool {
	return user.IsBannedAt(s.now())
}

func (s *AuthService) restrictionEnd(durationMinutes int) *time.Time {
	if durationMinutes == 0 {
		until := permanentUntil
		return &until
	}
	until := s.now().UTC().Add(time.Duration(durationMinutes) * time.Minute)
	return &until
}

func (s *AuthService) mapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
