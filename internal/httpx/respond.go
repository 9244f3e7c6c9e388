package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"restaurant-pos/internal/logger"
)

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes an error response in JSON format
func WriteError(w http.ResponseWriter, status int, message, requestID string) {
	WriteJSON(w, status, map[string]interface{}{
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	})
}

// Fail logs err under action and answers with the status it maps to.
// Server-side failures hide the cause from the client.
func Fail(w http.ResponseWriter, r *http.Request, log *logger.Logger, action string, err error) {
	requestID := RequestID(r.Context())
	status := StatusFor(err)

	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		message = "Internal server error"
	}

	if status >= http.StatusInternalServerError {
		log.Error(action, "Request failed", requestID, err, map[string]interface{}{"status_code": status})
	} else {
		log.Debug(action, err.Error(), requestID, map[string]interface{}{"status_code": status})
	}
	WriteError(w, status, message, requestID)
}

// DecodeJSON parses the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return &BadRequestError{Message: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	return nil
}

// BadRequestError marks malformed input that never reached the domain.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string { return e.Message }

// BadRequest builds a BadRequestError.
func BadRequest(format string, args ...interface{}) error {
	return &BadRequestError{Message: fmt.Sprintf(format, args...)}
}

func isBadRequest(err error) bool {
	var br *BadRequestError
	return errors.As(err, &br)
}
