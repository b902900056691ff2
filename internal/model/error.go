package model

import (
	"fmt"
	"net/http"
)

type ErrorWithCode interface {
	Error() string
	Code() string
}

type Error struct {
	ErrCode string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e Error) Error() string {
	return e.Message
}

func (e Error) Code() string {
	return e.ErrCode
}

// HTTPStatus is the status the error is reported with; 500 when unset.
func (e Error) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// Fmt creates a new error from the base error template with provided arguments
func (e Error) Fmt(args ...any) Error {
	return Error{
		ErrCode: e.ErrCode,
		Message: fmt.Sprintf(e.Message, args...),
		Status:  e.Status,
	}
}

// Is matches errors by code so that errors.Is works on formatted copies.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	return ok && t.ErrCode == e.ErrCode
}

func NewError(code, message string) Error {
	return Error{
		ErrCode: code,
		Message: message,
	}
}

func newStatusError(status int, code, message string) Error {
	return Error{
		ErrCode: code,
		Message: message,
		Status:  status,
	}
}

var (
	ErrValidation       = newStatusError(http.StatusBadRequest, "validation", "Validation error: %s")
	ErrResourceNotFound = newStatusError(http.StatusNotFound, "resource.not_found", "Resource not found")

	ErrCollectionNotFound = newStatusError(http.StatusNotFound, "collection.not_found", "Collection %s not found")
	ErrCollectionExists   = newStatusError(http.StatusConflict, "collection.already_exists", "Collection %s already exists")
	ErrCollectionNotEmpty = newStatusError(http.StatusConflict, "collection.not_empty", "Collection %s is not empty")
	ErrCollectionReserved = newStatusError(http.StatusForbidden, "collection.reserved", "Collection %s cannot be deleted")
	ErrKeyNotFound        = newStatusError(http.StatusNotFound, "key.not_found", "Key %s not found")
	ErrVersionNotFound    = newStatusError(http.StatusNotFound, "version.not_found", "Version %s of key %s not found")
	ErrNotModified        = newStatusError(http.StatusNotModified, "key.not_modified", "Key %s not modified since %s")
	ErrPreconditionFailed = newStatusError(http.StatusPreconditionFailed, "key.modified", "Key %s modified after %s")
	ErrInvalidRange       = newStatusError(http.StatusRequestedRangeNotSatisfiable, "range.invalid", "Range %q not satisfiable for %d bytes")
	ErrUploadNotFound     = newStatusError(http.StatusNotFound, "conjoined.not_found", "Multipart upload %s not found")
	ErrUploadClosed       = newStatusError(http.StatusConflict, "conjoined.closed", "Multipart upload %s is no longer in progress")
	ErrUnauthorized       = newStatusError(http.StatusUnauthorized, "auth.unauthorized", "Unauthorized: %s")
	ErrForbidden          = newStatusError(http.StatusForbidden, "auth.forbidden", "User %s cannot act on behalf of %s")
	ErrHost               = newStatusError(http.StatusBadRequest, "request.host", "Host %q does not address %s")
)
