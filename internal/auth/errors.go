package auth

import "errors"

var (
	// ErrUnauthorized is returned for any failed login, whether the user is
	// unknown or the password is wrong.
	ErrUnauthorized = errors.New("invalid username or password")
	ErrTokenMissing = errors.New("token missing")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)
