package goals

import (
	"errors"
	"fmt"

	"github.com/existflow/goalpost/internal/deadline"
)

// Kind classifies repository failures
type Kind int

const (
	KindValidation Kind = iota + 1
	KindParse
	KindNotOwnerOrNotFound
	KindRemoteUnavailable
	KindMirrorWriteFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindParse:
		return "ParseError"
	case KindNotOwnerOrNotFound:
		return "NotOwnerOrNotFound"
	case KindRemoteUnavailable:
		return "RemoteUnavailable"
	case KindMirrorWriteFailed:
		return "MirrorWriteFailed"
	default:
		return "UnknownError"
	}
}

// Error is the tagged error every repository operation returns
type Error struct {
	Kind Kind
	Op   string
	ID   string
	Msg  string
	Err  error
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrParse              = &Error{Kind: KindParse}
	ErrNotOwnerOrNotFound = &Error{Kind: KindNotOwnerOrNotFound}
	ErrRemoteUnavailable  = &Error{Kind: KindRemoteUnavailable}
	ErrMirrorWriteFailed  = &Error{Kind: KindMirrorWriteFailed}

	// ErrInvalidStatus is a validation error for a status outside the enum
	ErrInvalidStatus = errors.New("invalid status")
	// ErrEmptyContent is a validation error for blank goal text
	ErrEmptyContent = errors.New("content is required")
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.ID != "" {
		msg += " (" + e.ID + ")"
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the Kind sentinels. deadline.ErrParse also matches parse errors through Unwrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.ID == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

func validationError(op, msg string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg, Err: err}
}

func parseError(op string, err error) *Error {
	return &Error{Kind: KindParse, Op: op, Err: err}
}

func notFoundError(op, id string, err error) *Error {
	return &Error{Kind: KindNotOwnerOrNotFound, Op: op, ID: id, Err: err}
}

func remoteError(op, id string, err error) *Error {
	return &Error{Kind: KindRemoteUnavailable, Op: op, ID: id, Err: err}
}

// KindOf returns the Kind of err, or 0 when err is not a repository error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, deadline.ErrParse) {
		return KindParse
	}
	return 0
}

// Reason turns err into a short message suitable for showing to the member
func Reason(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindValidation:
		var e *Error
		if errors.As(err, &e) && e.Msg != "" {
			return e.Msg
		}
		return "That input isn't valid."
	case KindParse:
		return "Couldn't read that deadline."
	case KindNotOwnerOrNotFound:
		return "That goal no longer exists or isn't yours."
	case KindRemoteUnavailable:
		return "Couldn't reach the server, change reverted."
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}
