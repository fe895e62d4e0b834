package types

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way callers across the engine need to branch
// on, independent of the sentinel it wraps.
type Kind string

const (
	KindNotFound                  Kind = "not_found"
	KindValidation                Kind = "validation"
	KindStorageFailure            Kind = "storage_failure"
	KindEmbeddingFailure          Kind = "embedding_failure"
	KindLLMFailure                Kind = "llm_failure"
	KindRerankerFailure           Kind = "reranker_failure"
	KindClassificationUnavailable Kind = "classification_unavailable"
	KindTaskHandlerFailure        Kind = "task_handler_failure"
)

// Sentinel errors. Use errors.Is against these; use AsKind to branch on Kind.
var (
	ErrNotFound                  = errors.New("not found")
	ErrValidation                = errors.New("validation failed")
	ErrStorageFailure            = errors.New("storage failure")
	ErrEmbeddingFailure          = errors.New("embedding provider failure")
	ErrLLMFailure                = errors.New("llm provider failure")
	ErrRerankerFailure           = errors.New("reranker provider failure")
	ErrClassificationUnavailable = errors.New("classification unavailable")
	ErrTaskHandlerFailure        = errors.New("task handler failure")
)

var sentinelForKind = map[Kind]error{
	KindNotFound:                  ErrNotFound,
	KindValidation:                ErrValidation,
	KindStorageFailure:            ErrStorageFailure,
	KindEmbeddingFailure:          ErrEmbeddingFailure,
	KindLLMFailure:                ErrLLMFailure,
	KindRerankerFailure:           ErrRerankerFailure,
	KindClassificationUnavailable: ErrClassificationUnavailable,
	KindTaskHandlerFailure:        ErrTaskHandlerFailure,
}

// Error wraps a sentinel with a Kind and context message. errors.Is still
// matches the sentinel; callers that need the Kind use AsKind.
type Error struct {
	kind    Kind
	message string
	wrapped error
}

// NewError builds a Kind-tagged error from the given Kind's sentinel.
func NewError(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message, wrapped: sentinelForKind[kind]}
}

// WrapError tags an existing error with a Kind while keeping it matchable
// via errors.Is/errors.As against both the original error and the sentinel.
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{kind: kind, message: message, wrapped: err}
}

func (e *Error) Error() string {
	if e.message == "" {
		return e.wrapped.Error()
	}
	return fmt.Sprintf("%s: %v", e.message, e.wrapped)
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// Is reports whether target is the sentinel for e's Kind, so a WrapError
// result still matches that sentinel under errors.Is.
func (e *Error) Is(target error) bool {
	return target == sentinelForKind[e.kind]
}

// Kind returns the error's Kind.
func (e *Error) Kind() Kind {
	return e.kind
}

// AsKind extracts the Kind from err, if it (or something it wraps) is a
// *Error. Returns ("", false) otherwise.
func AsKind(err error) (Kind, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.kind, true
	}
	return "", false
}
