package apperr

import (
	"encoding/json"
	"net/http"
)

// Body is the failure response shape.
type Body struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Write renders err as {status, message} with the mapped status code.
// Client errors use "fail", server errors "error".
func Write(w http.ResponseWriter, err error) {
	e := From(err)
	code := e.HTTPStatus()

	status := "fail"
	if code >= http.StatusInternalServerError {
		status = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(Body{Status: status, Message: e.Message})
}
