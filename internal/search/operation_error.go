package search

import "fmt"

type OperationErrorCode string

const (
	OperationErrorEncodeFailed    OperationErrorCode = "encode_failed"
	OperationErrorDecodeFailed    OperationErrorCode = "decode_failed"
	OperationErrorTransportFailed OperationErrorCode = "transport_failed"
	OperationErrorQueryFailed     OperationErrorCode = "query_failed"
	OperationErrorNotFound        OperationErrorCode = "not_found"
	OperationErrorTimeout         OperationErrorCode = "timeout"
)

// OperationError describes a failed index call. It matches ErrNotFound for
// OperationErrorNotFound and ErrUnavailable for every other code.
type OperationError struct {
	Code       OperationErrorCode
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "search operation failed"
	}
	detail := e.Message
	if detail == "" && e.Cause != nil {
		detail = e.Cause.Error()
	}
	if detail == "" {
		return fmt.Sprintf("search operation failed (op=%s code=%s status=%d)", e.Operation, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("search operation failed (op=%s code=%s status=%d): %s", e.Operation, e.Code, e.StatusCode, detail)
}

func (e *OperationError) Unwrap() []error {
	if e == nil {
		return nil
	}
	sentinel := ErrUnavailable
	if e.Code == OperationErrorNotFound {
		sentinel = ErrNotFound
	}
	if e.Cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Cause}
}

func opErr(op string, code OperationErrorCode, status int, msg string, cause error) error {
	return &OperationError{
		Code:       code,
		Operation:  op,
		StatusCode: status,
		Message:    msg,
		Cause:      cause,
	}
}
