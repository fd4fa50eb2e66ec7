package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/seriarr/seriarr/internal/data"
)

// ErrContentType is returned when a request body carries an unacceptable
// Content-Type header.
var ErrContentType = errors.New("unsupported content type")

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps engine sentinels onto HTTP statuses. Unknown errors are
// internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, data.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, data.ErrInvalidSource), errors.Is(err, ErrContentType):
		return http.StatusBadRequest
	case errors.Is(err, data.ErrUnsupportedOperation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, data.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, data.ErrMetadataTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, data.ErrConverterUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, data.ErrExhausted), errors.Is(err, data.ErrConversionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
