// Package apperror defines the error taxonomy shared by every layer of the
// server. Each failure the API can report is a sentinel *Error; callers match
// them with errors.Is and attach detail with WithMessage or Wrap.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups error codes by how the HTTP layer treats them.
type Kind string

const (
	KindAuthentication Kind = "AUTHENTICATION"
	KindAuthorization  Kind = "AUTHORIZATION"
	KindEntitlement    Kind = "ENTITLEMENT"
	KindStateConflict  Kind = "STATE_CONFLICT"
	KindUpstream       Kind = "UPSTREAM"
	KindValidation     Kind = "VALIDATION"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindIntegrity      Kind = "INTEGRITY"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target carries the same code, so copies made by
// WithMessage and Wrap still match their sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithMessage returns a copy of e with a different client-facing message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// Wrap returns a copy of e that records err as its cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrTokenMissing       = newErr(KindAuthentication, "TOKEN_MISSING", "token not found")
	ErrTokenExpired       = newErr(KindAuthentication, "TOKEN_EXPIRED", "token has expired")
	ErrTokenInvalid       = newErr(KindAuthentication, "TOKEN_INVALID", "invalid token")
	ErrInvalidCredentials = newErr(KindAuthentication, "INVALID_CREDENTIALS", "invalid username or password")

	ErrNotOwner       = newErr(KindAuthorization, "NOT_OWNER", "you can only act on your own queue")
	ErrTicketNotOwned = newErr(KindAuthorization, "TICKET_NOT_OWNED", "you can only change your own tickets")

	ErrNoActiveTicketToday    = newErr(KindEntitlement, "NO_ACTIVE_TICKET_TODAY", "no active ticket for today")
	ErrTicketTypeMismatch     = newErr(KindEntitlement, "TICKET_TYPE_MISMATCH", "ticket type does not match your ticket")
	ErrEntitlementDataMissing = newErr(KindIntegrity, "ENTITLEMENT_DATA_MISSING", "ticket data is incomplete")

	ErrAlreadyWaitingOrCompleted = newErr(KindStateConflict, "ALREADY_WAITING_OR_COMPLETED", "already waiting for or completed this ride today")
	ErrNoWaitingReservation      = newErr(KindStateConflict, "NO_WAITING_RESERVATION", "no waiting reservation for this ride")
	ErrInvalidTransition         = newErr(KindStateConflict, "INVALID_TRANSITION", "reservation is not in a state that allows this change")

	ErrUpstreamTimeout            = newErr(KindUpstream, "UPSTREAM_TIMEOUT", "queue server timed out")
	ErrUpstreamUnreachable        = newErr(KindUpstream, "UPSTREAM_UNREACHABLE", "queue server is unreachable")
	ErrUpstreamUnexpectedResponse = newErr(KindUpstream, "UPSTREAM_UNEXPECTED_RESPONSE", "queue server returned an unexpected response")

	ErrInvalidRequest      = newErr(KindValidation, "INVALID_REQUEST", "invalid request")
	ErrInvalidTicketType   = newErr(KindValidation, "INVALID_TICKET_TYPE", "ticket type must be GENERAL or PREMIUM")
	ErrInvalidStatus       = newErr(KindValidation, "INVALID_STATUS", "status must be ACTIVE or INACTIVE")
	ErrNotFound            = newErr(KindNotFound, "NOT_FOUND", "resource not found")
	ErrTicketNotOnSale     = newErr(KindNotFound, "TICKET_NOT_ON_SALE", "no ticket of that type is on sale for that day")
	ErrTicketOrderNotFound = newErr(KindNotFound, "TICKET_ORDER_NOT_FOUND", "ticket order not found")
	ErrUsernameTaken       = newErr(KindConflict, "USERNAME_TAKEN", "username already exists")
	ErrSoldOut             = newErr(KindConflict, "SOLD_OUT", "tickets for that day are sold out")
)

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// HTTPStatus maps err to the status code the API responds with.
// Errors outside the taxonomy are internal failures.
func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindEntitlement, KindStateConflict, KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
