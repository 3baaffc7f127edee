package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bibbank/microfinance/internal/domain/model"
	"github.com/bibbank/microfinance/internal/domain/port"
)

// toStatus maps application errors onto gRPC status codes. Unexpected errors
// are logged and surface as Internal without detail.
func toStatus(ctx context.Context, logger *slog.Logger, method string, err error) error {
	var code codes.Code
	switch {
	// An exceeded limit is also a validation error; check it first.
	case errors.Is(err, model.ErrApprovalLimitExceeded), errors.Is(err, port.ErrNotAuthorized):
		code = codes.PermissionDenied
	case errors.Is(err, model.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, model.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, model.ErrInvalidStateTransition), errors.Is(err, model.ErrAllocationInvariant):
		code = codes.FailedPrecondition
	case errors.Is(err, model.ErrConcurrencyConflict):
		code = codes.Aborted
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		logger.ErrorContext(ctx, "unhandled error", "method", method, "error", err)
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
