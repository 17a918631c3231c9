package xclient

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// Twitter v1.1 error codes the checker reacts to.
const (
	CodeNoUserMatches     = 17
	CodeUserNotFound      = 50
	CodeUserSuspended     = 63
	CodeRateLimitExceeded = 88
)

// APIError is a non-2xx response from the Twitter API.
// Code is the first entry of the "errors" array, 0 when the body carried none.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("twitter api status %d: code %d: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("twitter api status %d", e.Status)
}

// ErrorCode extracts the Twitter error code from err, 0 if err carries none.
func ErrorCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code int) bool {
	return err != nil && ErrorCode(err) == code
}

func parseAPIError(status int, body []byte) *APIError {
	out := &APIError{Status: status}
	var errResp struct {
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if sonic.Unmarshal(body, &errResp) != nil || len(errResp.Errors) == 0 {
		return out
	}
	out.Code = errResp.Errors[0].Code
	out.Message = errResp.Errors[0].Message
	return out
}
