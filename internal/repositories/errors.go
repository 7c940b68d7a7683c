package repositories

import (
	"errors"
	"fmt"
)

type errorKind int

const (
	kindNotFound errorKind = iota
	kindConflict
	kindUnavailable
	kindInternal
)

type repoError struct {
	kind errorKind
	msg  string
	err  error
}

func (e *repoError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *repoError) Unwrap() error { return e.err }

func (e *repoError) IsNotFound() bool    { return e.kind == kindNotFound }
func (e *repoError) IsConflict() bool    { return e.kind == kindConflict }
func (e *repoError) IsUnavailable() bool { return e.kind == kindUnavailable }

// NewNotFound builds a RepositoryError describing a missing record.
func NewNotFound(msg string) RepositoryError {
	return &repoError{kind: kindNotFound, msg: msg}
}

// NewConflict builds a RepositoryError describing a concurrent-write conflict.
func NewConflict(msg string) RepositoryError {
	return &repoError{kind: kindConflict, msg: msg}
}

// NewUnavailable builds a RepositoryError describing a missing dependency.
func NewUnavailable(msg string) RepositoryError {
	return &repoError{kind: kindUnavailable, msg: msg}
}

// NewInternal wraps a low-level persistence failure.
func NewInternal(msg string, err error) RepositoryError {
	return &repoError{kind: kindInternal, msg: msg, err: err}
}

// IsNotFound reports whether err is a RepositoryError marking a missing record.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

// IsUnavailable reports whether err is a RepositoryError marking a missing dependency.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsUnavailable()
	}
	return false
}
