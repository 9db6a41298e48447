package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/kanban/internal/domain"
	"github.com/gosuda/kanban/internal/server/middleware"
)

// Envelope wraps every successful response body.
type Envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
}

func ok[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: data}
}

// Empty is the data of responses that carry nothing.
type Empty struct{}

// ErrorBody is the error envelope. It replaces huma's problem+json so that
// clients see one response shape.
type ErrorBody struct {
	status  int
	Success bool   `json:"success"`
	Message string `json:"error"`
}

func (e *ErrorBody) Error() string  { return e.Message }
func (e *ErrorBody) GetStatus() int { return e.status }

// newError replaces huma.NewError. Request validation failures are reported
// as 400 with their details; server errors never expose details.
func newError(status int, msg string, errs ...error) huma.StatusError {
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}
	if status < http.StatusInternalServerError {
		details := make([]string, 0, len(errs))
		for _, err := range errs {
			if err != nil {
				details = append(details, err.Error())
			}
		}
		if len(details) > 0 {
			msg += ": " + strings.Join(details, "; ")
		}
	}
	return &ErrorBody{status: status, Message: msg}
}

func init() { //nolint:gochecknoinits // huma exposes its error constructor as a package variable
	huma.NewError = newError
}

// principal returns the authenticated caller or a 401.
func principal(ctx context.Context) (domain.Principal, error) {
	p, ok := middleware.PrincipalFromContext(ctx)
	if !ok {
		return domain.Principal{}, huma.Error401Unauthorized("not authorized, no token")
	}
	return p, nil
}

// mapError converts a service error into an API error. Messages carried by
// *domain.Error are safe to return; everything else becomes a generic 500.
func mapError(err error, fallback string) error {
	msg := ""
	var de *domain.Error
	if errors.As(err, &de) {
		msg = de.Msg
	}
	or := func(def string) string {
		if msg != "" {
			return msg
		}
		return def
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return huma.Error400BadRequest(or("invalid request"))
	case errors.Is(err, domain.ErrUnauthorized):
		return huma.Error401Unauthorized(or("not authorized"))
	case errors.Is(err, domain.ErrForbidden):
		return huma.Error403Forbidden(or("not authorized"))
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(or("not found"))
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict(or("conflict"))
	}

	log.Error().Err(err).Msg(fallback)
	return huma.Error500InternalServerError(fallback)
}
