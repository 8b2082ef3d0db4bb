package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/render"
)

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Code: code, Message: message})
}

// decode reads a JSON body into dst and writes the error response on
// failure. It returns false when the handler must stop.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := render.DecodeJSON(r.Body, dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge, codeBodyTooLarge,
			fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
		return false
	}
	writeError(w, r, http.StatusBadRequest, codeInvalidJSON, "Invalid JSON payload: "+err.Error())
	return false
}

// parseOptionalInt extracts an integer from the query string.
// If the parameter is missing, it returns the defaultValue.
// It only returns an error if the parameter is present but malformed.
func parseOptionalInt(r *http.Request, key string, defaultValue int) (int, error) {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("parameter '%s' must be an integer", key)
	}
	return val, nil
}
