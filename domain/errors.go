package domain

import "errors"

var (
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrHashingFailure  = errors.New("password hashing failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrExpiredToken    = errors.New("token expired")
	ErrNotFound        = errors.New("task not found")
	ErrForbidden       = errors.New("task owned by another account")
)
