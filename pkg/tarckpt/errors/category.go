// Package errors classifies filesystem faults and retries the transient ones.
//
// The archive worker opens checkpoint files that a training loop has only
// just written, sometimes on network filesystems. Opens that fail with a
// transient errno (EAGAIN, EINTR, EBUSY, ETIMEDOUT, ESTALE) are worth another
// attempt; a missing or unreadable file is not.
package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Attempts is the number of attempts that have been made.
	Attempts int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %v (%s, attempts: %d)", e.Context, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%v (%s, attempts: %d)", e.Err, e.Category, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient marks err as worth retrying.
func Transient(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryTransient, Context: context}
}

// Permanent marks err as final.
func Permanent(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryPermanent, Context: context}
}

var transientErrnos = []unix.Errno{
	unix.EAGAIN,
	unix.EINTR,
	unix.EBUSY,
	unix.ETIMEDOUT,
	unix.ESTALE,
}

// Categorize determines how an error should be handled.
// Unknown errors are permanent.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryPermanent
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return CategoryPermanent
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return CategoryTransient
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		for _, t := range transientErrnos {
			if errno == t {
				return CategoryTransient
			}
		}
	}
	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
