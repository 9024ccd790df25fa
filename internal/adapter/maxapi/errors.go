package maxapi

import (
	"errors"
	"fmt"
)

// ErrInsecureWebhookURL is returned for webhook URLs that are not https.
var ErrInsecureWebhookURL = errors.New("webhook url must use https")

// APIError represents a non-2xx response from the MAX Bot API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("max api: HTTP %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("max api: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err wraps an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == code
	}
	return false
}
