package weberror

import (
	"fmt"
	"net/http"

	"github.com/mdouchement/padbank/internal/service"
)

type (
	// HTTPCoder interface is implemented by application errors.
	HTTPCoder interface {
		// HTTPCode return the HTTP status code for the given error.
		HTTPCode() int
	}

	// Error is the payload rendered in case of error.
	Error struct {
		Code    int    `json:"-"`
		Class   string `json:"class,omitempty"`
		Message string `json:"message"`
	}
)

var codes = map[service.Class]int{
	service.ClassInvalidFile:   http.StatusBadRequest,
	service.ClassInvalidPad:    http.StatusBadRequest,
	service.ClassDecryption:    http.StatusUnprocessableEntity,
	service.ClassNoPads:        http.StatusUnprocessableEntity,
	service.ClassLogin:         http.StatusUnauthorized,
	service.ClassAccess:        http.StatusForbidden,
	service.ClassNotExportable: http.StatusForbidden,
	service.ClassLocked:        http.StatusForbidden,
	service.ClassNotFound:      http.StatusNotFound,
	service.ClassDuplicate:     http.StatusConflict,
	service.ClassQuota:         http.StatusInsufficientStorage,
	service.ClassTimeout:       http.StatusGatewayTimeout,
	service.ClassInternal:      http.StatusInternalServerError,
}

// StatusCode the know HHTP status for the given err. If unknown, it returns 500.
func StatusCode(err error) int {
	if hc, ok := err.(HTTPCoder); ok {
		return hc.HTTPCode()
	}
	return http.StatusInternalServerError
}

// New returns a new Error.
func New(code int, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// FromService returns the Error matching the class of a service error.
func FromService(err error) error {
	class := service.Cause(err)
	code, ok := codes[class]
	if !ok {
		code = http.StatusInternalServerError
	}

	return &Error{
		Code:    code,
		Class:   string(class),
		Message: err.Error(),
	}
}

// Error stringifies the error.
func (e *Error) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// HTTPCode returns the HTTP status code.
func (e *Error) HTTPCode() int {
	return e.Code
}
