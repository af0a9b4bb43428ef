package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"cinema-ticketing/internal/apperr"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Code      string      `json:"code,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(code, message string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// WriteJSON writes v with the given status. Encoding failures are ignored
// here; the connection is already committed.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError classifies err: business errors keep their code and status,
// anything else is collapsed to SYSTEM_BUSY.
func WriteError(w http.ResponseWriter, err error) {
	if e, ok := apperr.AsError(err); ok {
		WriteJSON(w, e.Status, ErrorResponse(e.Code, e.Error()))
		return
	}
	e := apperr.ErrSystemBusy
	WriteJSON(w, e.Status, ErrorResponse(e.Code, e.Error()))
}
