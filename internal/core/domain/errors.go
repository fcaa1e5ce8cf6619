package domain

import "errors"

var (
	ErrUnexpectedRole          = errors.New("unexpected role")
	ErrUnknownRole             = errors.New("unknown role")
	ErrForbidden               = errors.New("access forbidden")
	ErrUserNotFound            = errors.New("user not found")
	ErrUserExists              = errors.New("user already exists")
	ErrUserBlocked             = errors.New("user is blocked")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrInvalidConfirmationCode = errors.New("invalid or expired confirmation code")
	ErrAssociationExists       = errors.New("manager secretary association already exists")
)
