package vfs

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrUnauthorized  = errors.New("item belongs to another user")
	ErrPathExists    = errors.New("an item already exists at this path")
)
