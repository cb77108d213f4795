package kit

import (
	"encoding/json"
	"net/http"
)

// ErrorStatus maps an endpoint or decode error to an HTTP status code.
type ErrorStatus func(error) int

// HTTPHandler serves an Endpoint over HTTP. decode builds the request from
// r; the response is written as JSON. Errors are written as
// {"error": "..."} with the status chosen by status (400 when nil).
// The request id already on the context, if any, is kept.
func HTTPHandler(endpoint Endpoint, decode func(*http.Request) (any, error), status ErrorStatus) http.HandlerFunc {
	if status == nil {
		status = func(error) int { return http.StatusBadRequest }
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := WithTransport(r.Context(), "http")
		req, err := decode(r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp, err := endpoint(ctx, req)
		if err != nil {
			WriteError(w, status(err), err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": msg}.
func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, map[string]string{"error": msg})
}
