// Package errors defines the closed error taxonomy shared by the image
// normalizer, the transport executor, every provider adapter and the
// orchestrator. Adapters raise the most specific applicable kind; anything
// foreign is classified as BadServiceResponse before it reaches a caller.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies one member of the closed taxonomy.
type Kind string

const (
	KindInvalidConfig        Kind = "invalid_config"
	KindEmptyImageData       Kind = "empty_image_data"
	KindInvalidImageEncoding Kind = "invalid_image_encoding"
	KindInvalidImage         Kind = "invalid_image"
	KindUnknownService       Kind = "unknown_service"
	KindNoFacesFound         Kind = "no_faces_found"
	KindManyFacesFound       Kind = "many_faces_found"
	KindBadServiceResponse   Kind = "bad_service_response"
	KindTransportError       Kind = "transport_error"
)

// messages holds the human-readable default message per kind.
var messages = map[Kind]string{
	KindInvalidConfig:        "API is not configured properly",
	KindEmptyImageData:       "got empty image, expecting image data in base64 encoding",
	KindInvalidImageEncoding: "failed to decode image, only base64 is accepted",
	KindInvalidImage:         "image has unsupported type or too big/too small size",
	KindUnknownService:       "service ID is invalid or unconfigured",
	KindNoFacesFound:         "no faces were found on image",
	KindManyFacesFound:       "two or more faces were found on image",
	KindBadServiceResponse:   "unexpected response from service",
	KindTransportError:       "http request error",
}

// Error is a (kind, message, optional detail) triple. It wraps an optional
// cause and participates in errors.Is/errors.As chains.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Detail != "" {
		msg += " [" + e.Detail + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches by kind, so errors.Is(err, New(KindNoFacesFound)) holds for any
// taxonomy error of that kind regardless of detail or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New returns a taxonomy error of the given kind with its default message.
func New(kind Kind) *Error {
	return &Error{Kind: kind, Message: messages[kind]}
}

// WithDetail returns a taxonomy error carrying extra human context.
func WithDetail(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Message: messages[kind], Detail: detail}
}

// Wrap returns a taxonomy error of the given kind wrapping a cause.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: messages[kind], Err: err}
}

// Is reports whether err is a taxonomy error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of a taxonomy error, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Classify passes taxonomy errors through unchanged and wraps anything else
// as BadServiceResponse. Nothing escapes the package unclassified.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Wrap(KindBadServiceResponse, err)
}
