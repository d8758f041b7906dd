package utils

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrBadRequest      = errors.New("Bad request")
	ErrCancelled       = errors.New("Cancelled")
	ErrInvalidLease    = errors.New("Token is not leased")
	ErrNotFound        = errors.New("Not found")
	ErrTimeout         = errors.New("Timeout")
	ErrTransferFailure = errors.New("Transfer failure")
)

// Convert errors to errors with grpc status codes
func GrpcError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrBadRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrTimeout):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, ErrCancelled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, ErrInvalidLease):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrTransferFailure):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// Convert a grpc status error back into one of the sentinel errors above.
// Errors without a known status code are returned unchanged.
func FromGrpcError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var sentinel error
	switch st.Code() {
	case codes.OK:
		return nil
	case codes.NotFound:
		sentinel = ErrNotFound
	case codes.InvalidArgument:
		sentinel = ErrBadRequest
	case codes.DeadlineExceeded:
		sentinel = ErrTimeout
	case codes.Canceled:
		sentinel = ErrCancelled
	case codes.FailedPrecondition:
		sentinel = ErrInvalidLease
	default:
		return err
	}

	return &remoteError{sentinel: sentinel, message: st.Message()}
}

// HttpStatus returns the HTTP status code for an error.
func HttpStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusRequestTimeout
	case errors.Is(err, ErrCancelled):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidLease):
		return http.StatusConflict
	case errors.Is(err, ErrTransferFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// FromHttpStatus is the inverse of HttpStatus.
// Returns nil for codes without a sentinel.
func FromHttpStatus(code int) error {
	switch code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusRequestTimeout:
		return ErrTimeout
	case http.StatusServiceUnavailable:
		return ErrCancelled
	case http.StatusConflict:
		return ErrInvalidLease
	case http.StatusBadGateway:
		return ErrTransferFailure
	}
	return nil
}

// An error received from a remote peer.
// Keeps the peer's message while still matching the local sentinel.
type remoteError struct {
	sentinel error
	message  string
}

func (e *remoteError) Error() string {
	return e.message
}

func (e *remoteError) Unwrap() error {
	return e.sentinel
}

// RemoteError wraps a message received from a peer so that errors.Is
// matches the given sentinel.
func RemoteError(sentinel error, message string) error {
	if message == "" {
		return sentinel
	}
	return &remoteError{sentinel: sentinel, message: message}
}
