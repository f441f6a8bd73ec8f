// Package shared holds response helpers used by every HTTP handler package.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "attest/pkg/domain-errors"
)

// ErrorResponse is the JSON envelope for all error replies.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError translates err into the JSON error envelope. Domain errors map
// to their HTTP status; anything else becomes a 500.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.GetCode(err)
	message := "Internal server error"
	var de *dErrors.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), ErrorResponse{
		Error:            string(code),
		ErrorDescription: message,
	})
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
