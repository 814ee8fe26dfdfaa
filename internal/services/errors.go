package services

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnsupportedFile    = errors.New("unsupported file type")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
