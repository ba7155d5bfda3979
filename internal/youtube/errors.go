package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	apperrors "github.com/dmaltsev/takeout-sync/internal/errors"
)

// TransientError marks an API failure worth retrying.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("youtube: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable API failure.
func IsTransient(err error) bool {
	var te *TransientError

	return errors.As(err, &te)
}

// classify maps a failed API call into the run's error taxonomy.
// Quota exhaustion and key problems become the fatal sentinels: the
// quota does not reset until the next day and a bad key never becomes
// good mid-run. Server and network trouble is transient. Context
// errors pass through untouched.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Op: op, Err: err}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case hasReason(gerr, "quotaExceeded", "rateLimitExceeded", "dailyLimitExceeded"):
			return fmt.Errorf("%s: %w", op, apperrors.ErrQuotaExceeded)
		case hasReason(gerr, "keyInvalid", "forbidden"),
			gerr.Code == http.StatusUnauthorized,
			gerr.Code == http.StatusForbidden:
			return fmt.Errorf("%s: %w", op, apperrors.ErrAuth)
		case gerr.Code >= http.StatusInternalServerError:
			return &TransientError{Op: op, Err: err}
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	// No structured API error means the request never got an answer.
	return &TransientError{Op: op, Err: err}
}

func hasReason(gerr *googleapi.Error, reasons ...string) bool {
	for _, item := range gerr.Errors {
		for _, reason := range reasons {
			if item.Reason == reason {
				return true
			}
		}
	}

	return false
}
