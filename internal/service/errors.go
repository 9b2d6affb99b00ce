package service

import (
	"errors"
	"fmt"
)

// Kind classifies why a proxied request was rejected. Kinds are never shown
// to the client; they drive logging and metrics only.
type Kind int

const (
	KindUnknown Kind = iota
	KindRoutingMismatch
	KindMissingTarget
	KindUpstreamUnreachable
	KindInvalidHeaderEncoding
	KindInvalidBodyEncoding
	KindRequestTimeout
	// KindRejected marks requests refused by the server shell (rate limit,
	// body limit, recovered panic) before or around the pipeline.
	KindRejected
)

var kindNames = map[Kind]string{
	KindUnknown:               "unknown",
	KindRoutingMismatch:       "routing_mismatch",
	KindMissingTarget:         "missing_target",
	KindUpstreamUnreachable:   "upstream_unreachable",
	KindInvalidHeaderEncoding: "invalid_header_encoding",
	KindInvalidBodyEncoding:   "invalid_body_encoding",
	KindRequestTimeout:        "request_timeout",
	KindRejected:              "rejected",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a pipeline failure tagged with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same Kind, so sentinel values such as
// ErrMissingTarget work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Sentinels for errors.Is comparisons.
var (
	ErrRoutingMismatch = &Error{Kind: KindRoutingMismatch}
	ErrMissingTarget   = &Error{Kind: KindMissingTarget}
	ErrRequestTimeout  = &Error{Kind: KindRequestTimeout}
	ErrRejected        = &Error{Kind: KindRejected}
)

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
