package application

import (
	"errors"
	"fmt"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeStorage      = "STORAGE_ERROR"
	ErrCodeInvalidInput = "INVALID_INPUT"
)

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:    ErrCodeInternal,
		Message: "an internal error occurred",
		Err:     err,
	}
}

func NewStorageError(op string, err error) *ServiceError {
	return &ServiceError{
		Code:    ErrCodeStorage,
		Message: fmt.Sprintf("storage operation %s failed", op),
		Err:     err,
	}
}

func NewInvalidInputError(detail string) *ServiceError {
	return &ServiceError{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf("invalid input: %s", detail),
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
