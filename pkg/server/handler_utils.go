package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ticobot/ticobot/pkg/models"
	"github.com/ticobot/ticobot/pkg/providers"
)

const OKResponse = "OK"

// APIError represents an error response. Used for swagger documentation.
type APIError struct {
	Message string `json:"message"`
}

// extractQueryStringValueToInt extracts a query string value and converts it
// to an int if it is not empty. If the value is empty, it returns 0.
func extractQueryStringValueToInt(
	r *http.Request,
	param string,
) (int, error) {
	p := r.URL.Query().Get(param)
	if p == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(p, 10, 32)
	if err != nil {
		return 0, err
	}
	return int(value), nil
}

// encodeJSON encodes data into JSON and writes it to the response writer.
func encodeJSON(w http.ResponseWriter, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}

// encodeJSONTo encodes data into JSON and writes it to w, followed by a
// newline.
func encodeJSONTo(w io.Writer, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes a JSON request body into the provided data struct.
func decodeJSON(r *http.Request, data interface{}) error {
	return json.NewDecoder(r.Body).Decode(&data)
}

// renderError renders an error response.
func renderError(w http.ResponseWriter, err error, status int) {
	if status != http.StatusNotFound {
		// Don't log not found errors
		log.Error(err)
	}
	http.Error(w, err.Error(), status)
}

// renderRequestError maps an error to its HTTP status and renders it.
func renderRequestError(w http.ResponseWriter, err error) {
	renderError(w, err, statusForError(err))
}

func statusForError(err error) int {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrBadRequest), errors.As(err, &validationErrors):
		return http.StatusBadRequest
	case providers.IsRateLimited(err):
		return http.StatusTooManyRequests
	case providers.IsUnauthorized(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// parseUUIDFromURL parses a UUID from a URL parameter. If the UUID is
// invalid, an error is rendered and uuid.Nil is returned.
func parseUUIDFromURL(r *http.Request, w http.ResponseWriter, paramName string) uuid.UUID {
	uuidStr := chi.URLParam(r, paramName)
	documentUUID, err := uuid.Parse(uuidStr)
	if err != nil {
		renderError(
			w,
			fmt.Errorf("unable to parse document UUID: %w", err),
			http.StatusBadRequest,
		)
		return uuid.Nil
	}
	return documentUUID
}
