// Package apperr classifies failures the chat engine reacts to
// differently: validation failures are rejected before any network
// call, not-found lookups are absorbed into fallbacks, and
// network/auth/permission failures are surfaced to the caller.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNetwork
	KindAuth
	KindPermission
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindPermission:
		return "permission"
	case KindNotFound:
		return "not_found"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsNetwork(err error) bool    { return KindOf(err) == KindNetwork }
func IsAuth(err error) bool       { return KindOf(err) == KindAuth }
func IsPermission(err error) bool { return KindOf(err) == KindPermission }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
