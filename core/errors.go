package core

import "errors"

var (
	ErrInvalidNonce = errors.New("invalid nonce")
	ErrInvalidProof = errors.New("invalid proof")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("user record not found")
	ErrInvalidToken = errors.New("invalid token")
	ErrInternal     = errors.New("internal error")
)
