package api

import (
	"errors"
	"net/http"

	"velora/internal/database"
	"velora/internal/service"

	"google.golang.org/grpc/codes"
)

const (
	codeValidation         = "VALIDATION_ERROR"
	codeInvalidDateRange   = "INVALID_DATE_RANGE"
	codeDatesUnavailable   = "DATES_UNAVAILABLE"
	codePastDate           = "PAST_DATE"
	codeDressUnavailable   = "DRESS_UNAVAILABLE"
	codeDateTooFar         = "DATE_TOO_FAR"
	codeDressNotFound      = "DRESS_NOT_FOUND"
	codeRentalNotFound     = "RENTAL_NOT_FOUND"
	codeAlreadyCancelled   = "ALREADY_CANCELLED"
	codeInvalidTransition  = "INVALID_STATUS_TRANSITION"
	codeDepositNotPaid     = "DEPOSIT_NOT_PAID"
	codeDressInUse         = "DRESS_IN_USE"
	codeConcurrentUpdate   = "CONCURRENT_MODIFICATION"
	codeTooManyBookings    = "TOO_MANY_BOOKINGS"
	codeUnauthorized       = "UNAUTHORIZED"
	codeForbidden          = "FORBIDDEN"
	codeRateLimited        = "RATE_LIMITED"
	codeNotFound           = "NOT_FOUND"
	codeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	codeServiceUnavailable = "SERVICE_UNAVAILABLE"
	codeInternal           = "INTERNAL_ERROR"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

type apiError struct {
	status  int
	grpc    codes.Code
	code    string
	message string
}

// classify maps a domain error to its HTTP status, gRPC code and error code.
// Sub-kinds of ErrDatesUnavailable are matched before the parent.
func classify(err error) apiError {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return apiError{http.StatusBadRequest, codes.InvalidArgument, codeValidation, err.Error()}
	case errors.Is(err, database.ErrInvalidDateRange):
		return apiError{http.StatusBadRequest, codes.InvalidArgument, codeInvalidDateRange, err.Error()}
	case errors.Is(err, database.ErrPastDate):
		return apiError{http.StatusBadRequest, codes.InvalidArgument, codePastDate, err.Error()}
	case errors.Is(err, database.ErrDressUnavailable):
		return apiError{http.StatusBadRequest, codes.FailedPrecondition, codeDressUnavailable, err.Error()}
	case errors.Is(err, database.ErrDatesUnavailable):
		return apiError{http.StatusConflict, codes.AlreadyExists, codeDatesUnavailable, err.Error()}
	case errors.Is(err, database.ErrDateTooFar):
		return apiError{http.StatusBadRequest, codes.InvalidArgument, codeDateTooFar, err.Error()}
	case errors.Is(err, database.ErrDressNotFound):
		return apiError{http.StatusNotFound, codes.NotFound, codeDressNotFound, err.Error()}
	case errors.Is(err, database.ErrRentalNotFound):
		return apiError{http.StatusNotFound, codes.NotFound, codeRentalNotFound, err.Error()}
	case errors.Is(err, database.ErrAlreadyCancelled):
		return apiError{http.StatusConflict, codes.FailedPrecondition, codeAlreadyCancelled, err.Error()}
	case errors.Is(err, database.ErrInvalidTransition):
		return apiError{http.StatusConflict, codes.FailedPrecondition, codeInvalidTransition, err.Error()}
	case errors.Is(err, database.ErrDepositNotPaid):
		return apiError{http.StatusConflict, codes.FailedPrecondition, codeDepositNotPaid, err.Error()}
	case errors.Is(err, database.ErrDressInUse):
		return apiError{http.StatusConflict, codes.FailedPrecondition, codeDressInUse, err.Error()}
	case errors.Is(err, database.ErrConcurrentModification):
		return apiError{http.StatusConflict, codes.Aborted, codeConcurrentUpdate, err.Error()}
	case errors.Is(err, service.ErrTooManyBookings):
		return apiError{http.StatusTooManyRequests, codes.ResourceExhausted, codeTooManyBookings, err.Error()}
	default:
		return apiError{http.StatusInternalServerError, codes.Internal, codeInternal, "internal server error"}
	}
}
