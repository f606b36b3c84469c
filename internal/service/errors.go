package service

import (
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	ierr "github.com/mmynk/billdesk/internal/errors"
)

// ErrorCodeHeader carries the machine-readable error code to clients.
const ErrorCodeHeader = ierr.CodeHeader

// toConnectError maps a domain error onto a Connect error. The user-facing
// hint becomes the message; errors outside the taxonomy are logged and
// reported as internal.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}

	code := connect.CodeInternal
	switch {
	case ierr.IsNotFound(err):
		code = connect.CodeNotFound
	case ierr.IsValidation(err), ierr.IsInvalidIDFormat(err), ierr.IsOverflow(err):
		code = connect.CodeInvalidArgument
	case ierr.IsDuplicateReturn(err):
		code = connect.CodeAlreadyExists
	case ierr.IsStoreUnavailable(err):
		code = connect.CodeUnavailable
	case ierr.IsStaleResponse(err):
		code = connect.CodeAborted
	case ierr.IsInvalidOperation(err), ierr.IsRequestInFlight(err):
		code = connect.CodeFailedPrecondition
	}

	msg := ierr.Hint(err)
	if code == connect.CodeInternal {
		slog.Error("Unhandled error", "error", err)
		msg = "internal error"
	} else if msg == "" {
		msg = err.Error()
	}

	ce = connect.NewError(code, errors.New(msg))
	ce.Meta().Set(ErrorCodeHeader, ierr.Code(err))
	return ce
}
