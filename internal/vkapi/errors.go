package vkapi

import (
	"errors"
	"fmt"
)

// Error codes the engine's callers branch on. The API defines many more;
// unlisted codes still arrive as *Error with the code set.
const (
	CodeAuthFailed       = 5
	CodeTooManyRequests  = 6
	CodePermissionDenied = 7
	CodeFloodControl     = 9
	CodeMessageNotSent   = 900
)

// Error is an application-level rejection returned inside a 200 response.
type Error struct {
	Code          int            `json:"error_code"`
	Message       string         `json:"error_msg"`
	RequestParams []RequestParam `json:"request_params,omitempty"`
}

// RequestParam echoes one request parameter back in an error response.
type RequestParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

// IsCode reports whether err is an API rejection with the given code.
func IsCode(err error, code int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
