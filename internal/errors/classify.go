package errors

import (
	"errors"
	"strings"
	"syscall"

	"github.com/manav03panchal/couponvault/internal/model"
)

// Category represents the type of error for display and handling purposes.
type Category int

const (
	// CategoryUnknown is the default for unclassified errors.
	CategoryUnknown Category = iota
	// CategoryUser indicates an error the user can fix (bad input, missing field).
	CategoryUser
	// CategorySystem indicates a local failure (storage, disk, permissions).
	CategorySystem
	// CategoryRecoverable indicates an error that can be retried.
	CategoryRecoverable
	// CategoryExternal indicates a remote service rejected or failed a request.
	CategoryExternal
)

// String returns the string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryUser:
		return "user"
	case CategorySystem:
		return "system"
	case CategoryRecoverable:
		return "recoverable"
	case CategoryExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Classify determines the category of an error.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var verr *model.ValidationError
	if IsUserError(err) || errors.As(err, &verr) || isUserSentinel(err) {
		return CategoryUser
	}
	if IsRecoverableError(err) || isRecoverablePattern(err) {
		return CategoryRecoverable
	}
	if _, ok := AsExternalServiceError(err); ok {
		return CategoryExternal
	}
	if IsSystemError(err) || IsPersistence(err) || isSystemLevel(err) {
		return CategorySystem
	}
	var ie *InitializationError
	if errors.As(err, &ie) {
		return CategorySystem
	}
	return CategoryUnknown
}

func isUserSentinel(err error) bool {
	for _, s := range []error{
		ErrCouponNotFound,
		ErrWebhookNotFound,
		ErrDuplicateKey,
		ErrInvalidExpiry,
		ErrInvalidTimeOfDay,
		ErrInvalidURL,
		ErrInvalidImage,
		ErrMissingAPIKey,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

func isSystemLevel(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOSPC, syscall.EACCES, syscall.EPERM, syscall.ENOENT, syscall.EIO, syscall.EROFS:
			return true
		}
	}
	return errors.Is(err, ErrDiskFull) ||
		errors.Is(err, ErrDatabaseCorrupted) ||
		errors.Is(err, ErrPermissionDenied)
}

func isRecoverablePattern(err error) bool {
	if errors.Is(err, ErrNetworkUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrLockHeld) {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EAGAIN, syscall.EINTR, syscall.ETIMEDOUT, syscall.ECONNREFUSED, syscall.ECONNRESET:
			return true
		}
	}
	return false
}

// ClassifiedError wraps an error with an explicit classification.
type ClassifiedError struct {
	Err      error
	Category Category
}

func (e *ClassifiedError) Error() string {
	return e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// WithCategory wraps an error with an explicit category.
func WithCategory(err error, category Category) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Err: err, Category: category}
}

// GetCategory returns the explicit category set by WithCategory, or Classify's answer.
func GetCategory(err error) Category {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category
	}
	return Classify(err)
}

// IsUserCategory returns true if the error is a user-fixable error.
func IsUserCategory(err error) bool {
	return GetCategory(err) == CategoryUser
}

// FormatByCategory returns a user-appropriate error message based on category.
func FormatByCategory(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	suggestion := GetSuggestion(err)
	if suggestion == "" {
		suggestion = GetCategorySuggestion(err)
	}

	switch GetCategory(err) {
	case CategoryUser:
		if suggestion != "" {
			msg += "\n\nTry: " + suggestion
		}
		if examples := GetExamples(err); len(examples) > 0 {
			msg += "\n\nExamples:\n  " + strings.Join(examples, "\n  ")
		}
		return msg
	case CategorySystem:
		if suggestion != "" {
			return "System error: " + msg + "\n\n" + suggestion
		}
		return "System error: " + msg
	case CategoryExternal:
		if suggestion != "" {
			return "Service error: " + msg + "\n\n" + suggestion
		}
		return "Service error: " + msg
	case CategoryRecoverable:
		return msg + " (will retry automatically)"
	default:
		return msg
	}
}
