package auth

import "errors"

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrTokenExpired = errors.New("session token expired")
	ErrNoSecret     = errors.New("token secret is not configured")
)
