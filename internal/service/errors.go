package service

import (
	"errors"
	"fmt"

	"github.com/d60-Lab/free99/internal/repository"
)

var (
	// ErrNotFound 资源不存在或调用方无权访问（两者刻意不区分）
	ErrNotFound = repository.ErrNotFound
	// ErrConflict 状态冲突，例如 listing 已被认领
	ErrConflict       = repository.ErrConflict
	ErrAlreadyClaimed = repository.ErrAlreadyClaimed

	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
)

var (
	ErrEmailDomain     = errors.New("email domain not allowed")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrCodeMismatch    = errors.New("verification code mismatch")
	ErrTooManyAttempts = errors.New("too many verification attempts")
	ErrClaimOwnListing = errors.New("cannot claim your own listing")
	ErrThreadWithSelf  = errors.New("cannot start a thread with yourself")
	ErrEmptyMessage    = errors.New("message text is empty")
)

// invalid 让具体原因同时匹配 ErrValidation
func invalid(cause error) error {
	return fmt.Errorf("%w: %w", ErrValidation, cause)
}
