package service

import (
	"context"
	"errors"

	"sticker-rank-bot/internal/pkg/lock"
	"sticker-rank-bot/internal/repository"
)

// Domain outcomes. These are returned as UpgradeResult.Reason, or as the
// error of collection mutators; they never need a retry.
var (
	ErrInvalidTransition    = errors.New("invalid upgrade target")
	ErrInsufficientQuantity = errors.New("not enough copies")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
)

// ErrUpgradeConflict is returned when concurrent activity on the same
// holdings kept an operation from completing. Nothing was changed and the
// caller may try again.
var ErrUpgradeConflict = errors.New("concurrent modification, try again")

// errStaleSnapshot marks a guarded write that matched no row although the
// locked read said it would.
var errStaleSnapshot = errors.New("holding changed under lock")

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrUpgradeConflict),
		errors.Is(err, lock.ErrLockTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return repository.IsRetryable(err)
}

func isConflict(err error) bool {
	return errors.Is(err, errStaleSnapshot) || repository.IsRetryable(err)
}
