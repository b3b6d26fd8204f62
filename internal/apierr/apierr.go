package apierr

import (
	"encoding/json"
	"net/http"
)

// failureBody is the structured failure payload of the single-shot API.
type failureBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WriteFailure writes the structured non-streaming failure payload.
func WriteFailure(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(failureBody{Success: false, Message: message})
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
