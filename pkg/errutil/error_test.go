package errutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestHelpersAttachCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := ServiceUnavailable("license store unavailable", cause)

	require.ErrorIs(t, err, cause)
	require.Equal(t, StatusServiceUnavailable, StatusOf(err))
	require.Contains(t, err.Error(), "connection refused")

	body := err.(BaseError).JSON().(map[string]interface{})["error"].(map[string]interface{})
	require.Equal(t, "license store unavailable", body["message"])
}

func TestStatusOfWrapped(t *testing.T) {
	err := fmt.Errorf("grant: %w", LimitReached("user limit reached", nil))

	require.True(t, Is(err, StatusLimitReached))
	require.False(t, Is(err, StatusNotFound))
	require.Equal(t, StatusUnknown, StatusOf(errors.New("plain")))
	require.Equal(t, CoreStatus(""), StatusOf(nil))

	var be BaseError
	require.True(t, errors.As(err, &be))
	require.Equal(t, "user limit reached", be.Message)
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusNotFound, StatusNotFound.HTTPStatus())
	require.Equal(t, http.StatusConflict, StatusLimitReached.HTTPStatus())
	require.Equal(t, http.StatusServiceUnavailable, StatusServiceUnavailable.HTTPStatus())
	require.Equal(t, http.StatusBadRequest, StatusValidationFailed.HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, CoreStatus("whatever").HTTPStatus())
}

func TestToGRPCError(t *testing.T) {
	require.Nil(t, ToGRPCError(nil))

	st, ok := status.FromError(ToGRPCError(NotFound("license not found", nil)))
	require.True(t, ok)
	require.Equal(t, codes.NotFound, st.Code())

	st, _ = status.FromError(ToGRPCError(LimitReached("full", nil)))
	require.Equal(t, codes.ResourceExhausted, st.Code())

	st, _ = status.FromError(ToGRPCError(context.DeadlineExceeded))
	require.Equal(t, codes.DeadlineExceeded, st.Code())

	st, _ = status.FromError(ToGRPCError(errors.New("boom")))
	require.Equal(t, codes.Internal, st.Code())
}
