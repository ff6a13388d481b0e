package attempt

import "errors"

var (
	// ErrNotFound means the exam or attempt does not exist, or the exam is not published.
	ErrNotFound = errors.New("not found")
	// ErrMismatch means the attempt belongs to a different exam than the one supplied.
	ErrMismatch = errors.New("attempt does not belong to exam")
	// ErrInvalidState means answers were saved to an attempt that is no longer in progress.
	ErrInvalidState = errors.New("attempt is not in progress")
	// ErrAlreadySubmitted means submit was called on an attempt that is no longer in progress.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrExpired means the attempt's time limit has passed.
	ErrExpired = errors.New("attempt expired")
	// ErrAttemptLimitExceeded means the user has used all allowed attempts for the exam.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	// ErrConflict means the attempt was changed concurrently and the write was rejected.
	ErrConflict = errors.New("attempt was modified concurrently")
)
