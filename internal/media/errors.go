package media

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the render pipeline
var (
	ErrSourceUnreadable = errors.New("source unreadable")
	ErrEmptyTimeline    = errors.New("empty timeline")
	ErrEncodeFailure    = errors.New("encode failure")
	ErrInvalidConfig    = errors.New("invalid render config")
)

// Error is a terminal pipeline failure of a given Kind. Path names the file
// involved, if any.
type Error struct {
	Kind error
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Unreadable reports a source that cannot be opened or decoded
func Unreadable(path string, err error) error {
	return &Error{Kind: ErrSourceUnreadable, Path: path, Err: err}
}

// EncodeFailed reports a destination write or codec error
func EncodeFailed(path string, err error) error {
	return &Error{Kind: ErrEncodeFailure, Path: path, Err: err}
}

func invalidf(format string, args ...any) error {
	return &Error{Kind: ErrInvalidConfig, Msg: fmt.Sprintf(format, args...)}
}
