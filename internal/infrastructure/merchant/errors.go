package merchant

import (
	"errors"
	"fmt"
)

// ServiceError is a non-2xx reply from the merchant configuration service.
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
}

type serviceErrorResponse struct {
	Err     string `json:"error"`
	Message string `json:"message"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("merchant service error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

func (e *ServiceError) IsRetryable() bool {
	return e.StatusCode >= 500
}

func IsServiceError(err error) (*ServiceError, bool) {
	var serr *ServiceError
	ok := errors.As(err, &serr)
	return serr, ok
}
