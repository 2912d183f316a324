package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"hypothesis-lab/internal/storage"
)

// Error codes returned in ErrResponse.Code.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeUnavailable    = "UNAVAILABLE"
	CodeInternal       = "INTERNAL"
)

// ErrResponse implements render.Renderer for API errors.
type ErrResponse struct {
	Err            error  `json:"-"`
	HTTPStatusCode int    `json:"-"`
	StatusText     string `json:"status"`
	Code           string `json:"code,omitempty"`
	ErrorText      string `json:"error,omitempty"`
}

// Render implements render.Renderer.
func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// ErrInvalidRequest is a 400 response.
func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request",
		Code:           CodeInvalidRequest,
		ErrorText:      err.Error(),
	}
}

// ErrNotFound is a 404 response.
func ErrNotFound(what string) render.Renderer {
	return &ErrResponse{
		HTTPStatusCode: http.StatusNotFound,
		StatusText:     "Not found",
		Code:           CodeNotFound,
		ErrorText:      what + " not found",
	}
}

// ErrUnavailable is a 503 response for features that are not configured.
func ErrUnavailable(what string) render.Renderer {
	return &ErrResponse{
		HTTPStatusCode: http.StatusServiceUnavailable,
		StatusText:     "Unavailable",
		Code:           CodeUnavailable,
		ErrorText:      what + " is not configured",
	}
}

// ErrInternal is a 500 response. The cause is not exposed.
func ErrInternal(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		StatusText:     "Internal server error",
		Code:           CodeInternal,
	}
}

// storeError maps storage errors to responses.
func storeError(err error, what string) render.Renderer {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound(what)
	case errors.Is(err, storage.ErrInvalidInput):
		return ErrInvalidRequest(err)
	default:
		return ErrInternal(err)
	}
}
