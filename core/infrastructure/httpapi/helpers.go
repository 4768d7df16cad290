package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/carlosrabelo/stbmon/core/infrastructure/transport"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id"`
}

// encodeFailure is sent when a response body cannot be encoded
const encodeFailure = `{"error":{"code":"INTERNAL_ERROR","message":"Failed to encode response"}}` + "\n"

// SendJSON sends a JSON response. The body is encoded before the status is
// written so an unencodable value becomes a 500 instead of an empty reply.
func SendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(status)
		return
	}
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, encodeFailure)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// SendError sends a standardized error response
func SendError(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	requestID, _ := r.Context().Value(RequestIDKey).(string)
	SendJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
	})
}

// DecodeJSON decodes request body with error handling
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var input T
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		SendError(w, r, http.StatusBadRequest, "INVALID_BODY", "Invalid JSON body", err.Error())
		return input, false
	}
	return input, true
}

// HandleDeviceError maps session errors to gateway responses
func HandleDeviceError(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, transport.ErrAuthentication):
		SendError(w, r, http.StatusBadGateway, "AUTHENTICATION_FAILED", "Device rejected the credentials", err.Error())
	case errors.Is(err, transport.ErrTimeout):
		SendError(w, r, http.StatusGatewayTimeout, "DEVICE_TIMEOUT", "Device did not answer in time", err.Error())
	case errors.Is(err, transport.ErrCommand):
		SendError(w, r, http.StatusBadGateway, "COMMAND_FAILED", "Device rejected a command", err.Error())
	default:
		SendError(w, r, http.StatusBadGateway, "DEVICE_ERROR", "Device session failed", err.Error())
	}
	return true
}
