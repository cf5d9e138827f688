package user

import "errors"

// Store-level sentinels shared by every credential store implementation.
var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)
