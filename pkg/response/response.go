package response

import (
	"encoding/json"
	"net/http"
)

// Envelope is the JSON shape for every API response. Error carries a
// machine-readable code when one is stable; Details carries per-field reasons.
type Envelope struct {
	Ok      bool        `json:"ok"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

func Error(w http.ResponseWriter, statusCode int, code string) {
	JSON(w, statusCode, Envelope{Ok: false, Error: code})
}

func ErrorWithDetails(w http.ResponseWriter, statusCode int, code string, details interface{}) {
	JSON(w, statusCode, Envelope{Ok: false, Error: code, Details: details})
}

func BadRequest(w http.ResponseWriter, code string) {
	Error(w, http.StatusBadRequest, code)
}

func NotFound(w http.ResponseWriter, code string) {
	Error(w, http.StatusNotFound, code)
}

func Forbidden(w http.ResponseWriter, code string) {
	Error(w, http.StatusForbidden, code)
}

func Conflict(w http.ResponseWriter, code string) {
	Error(w, http.StatusConflict, code)
}

// InternalError hides the detailed reason; it belongs in the structured logs,
// keyed by request id, never in the response body.
func InternalError(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "Internal error")
}
