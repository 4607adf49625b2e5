//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the platform.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	// Code is the platform errorCode, e.g. INVALID_SESSION_ID.
	Code string
	// Message is the platform message, or the raw body when it is not JSON.
	Message string
}

func (e *APIError) Error() string {
	var builder strings.Builder

	fmt.Fprintf(&builder, "%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)

	if e.Code != "" {
		fmt.Fprintf(&builder, " %s", e.Code)
	}

	if e.Message != "" {
		fmt.Fprintf(&builder, ": %s", e.Message)
	}

	return builder.String()
}

// IsUnauthorized reports whether err is a 401 from the platform.
func IsUnauthorized(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusUnauthorized
}

// platformError is one element of the error array the REST API returns.
type platformError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

// newAPIError extracts the first platform error from body when possible.
func newAPIError(method, url string, status int, body []byte) *APIError {
	apiError := &APIError{
		Method:     method,
		URL:        url,
		StatusCode: status,
		Message:    strings.TrimSpace(string(body)),
	}

	var list []platformError
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		apiError.Code = list[0].ErrorCode
		apiError.Message = list[0].Message

		return apiError
	}

	var single platformError
	if err := json.Unmarshal(body, &single); err == nil && (single.ErrorCode != "" || single.Message != "") {
		apiError.Code = single.ErrorCode
		apiError.Message = single.Message
	}

	return apiError
}
