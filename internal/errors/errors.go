package errors

import "errors"

// Archive errors.
var (
	ErrCorruptArchive = errors.New("archive contains no watch records")
	ErrNoWatchFiles   = errors.New("no watch-history files found")
)

// Remote API errors. Both are fatal for the run that hits them: a bad key
// never becomes good mid-run and quota does not reset until the next day.
var (
	ErrAuth          = errors.New("API key rejected")
	ErrQuotaExceeded = errors.New("API quota exceeded")
)

// Persistence errors.
var (
	ErrStoreWrite = errors.New("store write failed")
)
