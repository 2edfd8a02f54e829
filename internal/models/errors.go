// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP status mapping and pipeline policy.
type Kind int

const (
	// KindInternal is the zero value: unclassified rendering or I/O failure.
	KindInternal Kind = iota

	// KindBadRequest is a validation failure; carries field details.
	KindBadRequest

	// KindUnauthorized is a webhook HMAC mismatch.
	KindUnauthorized

	// KindNotFound is an unknown stored review or adapter.
	KindNotFound

	// KindConflict is a duplicate review ID on store insert.
	KindConflict

	// KindUpstream is an adapter or chat API failure, surfaced with the
	// remote detail.
	KindUpstream
)

// FieldError is one validation failure, addressed to a request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the service-wide error type. The HTTP layer maps Kind to a status
// code; everything below HTTP works with Kind directly.
type Error struct {
	Kind    Kind
	Message string
	Details []FieldError
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to a conventional status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// E builds an error of the given kind.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// BadRequest builds a validation error with field details.
func BadRequest(message string, details ...FieldError) *Error {
	return &Error{Kind: KindBadRequest, Message: message, Details: details}
}

// KindOf extracts the Kind from any error; non-*Error values are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
