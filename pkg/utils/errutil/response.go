package errutil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the error payload shared by the REST API and its client
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// WriteJSONError writes {"detail": msg} with the given status code
func WriteJSONError(w http.ResponseWriter, msg string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Detail: msg})
}
