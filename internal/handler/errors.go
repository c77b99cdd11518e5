package handler

import (
    "net/http"

    "github.com/getsentry/sentry-go"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ride-queue-auth/internal/apperror"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
    Error string `json:"error"`
    Code  string `json:"code,omitempty"`
}

// respondError maps err onto the client response. Upstream and unclassified
// failures are reported to Sentry. Upstream bodies carry the queue server's
// own failure after the fixed message; unclassified errors never leak.
func respondError(c echo.Context, err error) error {
    status := apperror.HTTPStatus(err)
    if e, ok := apperror.As(err); ok {
        if status >= http.StatusInternalServerError {
            sentry.CaptureException(err)
        }
        return c.JSON(status, errorResponse{Error: clientMessage(e), Code: e.Code})
    }
    sentry.CaptureException(err)
    return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "INTERNAL"})
}

func clientMessage(e *apperror.Error) string {
    if e.Kind == apperror.KindUpstream && e.Err != nil {
        return e.Message + ": " + e.Err.Error()
    }
    return e.Message
}

func badRequest(c echo.Context, msg string) error {
    return respondError(c, apperror.ErrInvalidRequest.WithMessage(msg))
}
