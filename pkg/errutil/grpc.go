package errutil

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var grpcCodes = map[CoreStatus]codes.Code{
	StatusBadRequest:           codes.InvalidArgument,
	StatusValidationFailed:     codes.InvalidArgument,
	StatusUnsupportedMediaType: codes.InvalidArgument,
	StatusUnauthorized:         codes.Unauthenticated,
	StatusForbidden:            codes.PermissionDenied,
	StatusNotFound:             codes.NotFound,
	StatusConflict:             codes.Aborted,
	StatusLimitReached:         codes.ResourceExhausted,
	StatusTooManyRequests:      codes.ResourceExhausted,
	StatusUnprocessableEntity:  codes.FailedPrecondition,
	StatusClientClosedRequest:  codes.Canceled,
	StatusInternal:             codes.Internal,
	StatusNotImplemented:       codes.Unimplemented,
	StatusBadGateway:           codes.Unavailable,
	StatusServiceUnavailable:   codes.Unavailable,
	StatusTimeout:              codes.DeadlineExceeded,
	StatusGatewayTimeout:       codes.DeadlineExceeded,
}

// GRPCCode maps the status onto a gRPC code. Conflicts from concurrent
// license writes map to Aborted so clients know a retry may succeed.
func (s CoreStatus) GRPCCode() codes.Code {
	if c, ok := grpcCodes[s]; ok {
		return c
	}
	return codes.Unknown
}

// ToGRPCError converts err into a status error. Errors that already are
// status errors pass through; the message of 5xx-class errors omits the cause.
func ToGRPCError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	if st, ok := status.FromError(err); ok {
		return st.Err()
	}

	var be BaseError
	if !errors.As(err, &be) {
		return status.Error(codes.Internal, "internal error")
	}

	msg := be.messageWithErr()
	if be.Code.HTTPStatus() >= 500 {
		msg = be.Message
	}
	return status.Error(be.Code.GRPCCode(), msg)
}
