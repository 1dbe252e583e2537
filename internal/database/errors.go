package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a write that must touch exactly one row
// touched none.
var ErrNotFound = errors.New("row not found")

// APIError is an error reported by the backend, decoded from its JSON body.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend error (status %d)", e.StatusCode)
}

func parseAPIError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		// Gateways answer with plain text or {"error": "..."}.
		var alt struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
			Msg              string `json:"msg"`
		}
		if json.Unmarshal(body, &alt) == nil {
			switch {
			case alt.Msg != "":
				apiErr.Message = alt.Msg
			case alt.ErrorDescription != "":
				apiErr.Message = alt.ErrorDescription
			case alt.Error != "":
				apiErr.Message = alt.Error
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
	}
	return apiErr
}
