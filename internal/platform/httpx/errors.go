// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// ErrMalformedBody marks a request body that is not valid JSON.
var ErrMalformedBody = errors.New("malformed request body")

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var stepErr *shared.StepError
	if errors.As(err, &stepErr) {
		JSON(w, http.StatusInternalServerError, ProblemDetail{
			Type:      "pipeline-step-failed",
			Title:     "Pipeline Step Failed",
			Status:    http.StatusInternalServerError,
			Detail:    stepErr.Error(),
			Pipeline:  stepErr.Pipeline,
			Step:      stepErr.Step,
			Completed: stepErr.Completed,
		})
		return
	}
	switch {
	case errors.Is(err, ErrMalformedBody):
		Problem(w, http.StatusBadRequest, "Malformed Body", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrAlreadyConverted):
		Problem(w, http.StatusConflict, "Already Converted", err.Error())
	case errors.Is(err, shared.ErrPipelineBusy):
		Problem(w, http.StatusConflict, "Conversion In Progress", err.Error())
	case errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrStatusDerived):
		Problem(w, http.StatusUnprocessableEntity, "Status Derived", err.Error())
	case errors.Is(err, shared.ErrLocked):
		Problem(w, http.StatusUnprocessableEntity, "Locked", err.Error())
	case errors.Is(err, shared.ErrPersistence):
		Problem(w, http.StatusInternalServerError, "Persistence Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
