package tracking

import (
	"fmt"
	"net/http"

	"ratetracker/internal/models"
)

// ServiceError carries the HTTP status and error code a failure maps to.
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
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

func NewInvalidRequestError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeBadRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewInvalidClientError reports an address with no usable client identity.
func NewInvalidClientError(address string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInvalidClient,
		Message:    fmt.Sprintf("address %q does not contain a usable IPv4 client identity", address),
		StatusCode: http.StatusBadRequest,
	}
}

func NewInternalError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInternalError,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
