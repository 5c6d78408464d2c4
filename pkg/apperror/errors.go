package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced to the rendering layer.
type Kind string

const (
	KindStoreUnavailable Kind = "StoreUnavailable"
	KindUploadFailed     Kind = "UploadFailed"
	KindReplyFailed      Kind = "ReplyFailed"
	KindValidation       Kind = "ValidationError"
)

var (
	ErrEmptyMessage     = errors.New("message text is empty")
	ErrNoDocuments      = errors.New("session has no attached documents")
	ErrSessionNotActive = errors.New("session is not the active session")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNoIdentity       = errors.New("no signed-in identity")
	ErrNoFiles          = errors.New("no files to upload")
)

// Error wraps a cause with its Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func StoreUnavailable(op string, err error) *Error {
	return New(KindStoreUnavailable, op, err)
}

func UploadFailed(op string, err error) *Error {
	return New(KindUploadFailed, op, err)
}

func ReplyFailed(op string, err error) *Error {
	return New(KindReplyFailed, op, err)
}

func Validation(op string, err error) *Error {
	return New(KindValidation, op, err)
}

// KindOf reports the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
