package session

import (
	"errors"

	"github.com/persistorai/canvas/internal/collab"
	"github.com/persistorai/canvas/internal/models"
)

// Error codes sent in error and mutation_failed events.
const (
	CodeBadRequest     = "bad_request"
	CodeNotMounted     = "not_mounted"
	CodeIllegalAction  = "illegal_action"
	CodeNotFound       = "not_found"
	CodeValidation     = "validation_error"
	CodeInvalidGraph   = "invalid_graph"
	CodeUnavailable    = "backend_unavailable"
	CodeClosed         = "closed"
	CodeInternalError  = "internal_error"
	CodeUnknownCommand = "unknown_command"
)

var (
	errNotMounted     = errors.New("canvas not mounted")
	errAlreadyMounted = errors.New("canvas already mounted")
	errBadRequest     = errors.New("malformed command")
	errUnknownCommand = errors.New("unknown command")
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, errBadRequest):
		return CodeBadRequest
	case errors.Is(err, errUnknownCommand):
		return CodeUnknownCommand
	case errors.Is(err, errNotMounted):
		return CodeNotMounted
	case errors.Is(err, models.ErrIllegalAction), errors.Is(err, errAlreadyMounted):
		return CodeIllegalAction
	case errors.Is(err, models.ErrInvalidTopology), errors.Is(err, models.ErrIDRetired):
		return CodeInvalidGraph
	case errors.Is(err, models.ErrNotFound), collab.IsNotFound(err):
		return CodeNotFound
	case errors.Is(err, models.ErrValidationFailed):
		return CodeValidation
	case errors.Is(err, collab.ErrUnavailable):
		return CodeUnavailable
	case errors.Is(err, models.ErrClosed):
		return CodeClosed
	default:
		return CodeInternalError
	}
}
