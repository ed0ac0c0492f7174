package services

import "errors"

var (
	// ErrDuplicateUsername is returned when registering with a taken username.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrDuplicateEmail is returned when registering with a taken email.
	ErrDuplicateEmail = errors.New("email already exists")

	// ErrPasswordTooShort is returned when a registration password is below
	// the minimum length.
	ErrPasswordTooShort = errors.New("password too short")

	// ErrInvalidCredentials is returned for any failed login. Unknown email
	// and wrong password collapse into this one error so a caller cannot
	// probe which part was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound is returned when a user id or email does not resolve.
	ErrUserNotFound = errors.New("user not found")

	// ErrCategoryNotFound is returned when a post references an unknown category.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrPostNotFound is returned when a post id does not resolve.
	ErrPostNotFound = errors.New("post not found")
)
