package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cityshare/cityshare/internal/catalog"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps a catalog error onto an HTTP status. Only the sentinel
// message of a storage failure reaches the client.
func writeError(w http.ResponseWriter, err error) {
	var invalid *catalog.InvalidInputError
	switch {
	case errors.As(err, &invalid):
		jsonError(w, http.StatusBadRequest, invalid.Reason)
	case errors.Is(err, catalog.ErrUnauthorized):
		jsonError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, catalog.ErrForbidden):
		jsonError(w, http.StatusForbidden, catalog.ErrForbidden.Error())
	case errors.Is(err, catalog.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	default:
		jsonError(w, http.StatusInternalServerError, catalog.ErrStorage.Error())
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(target)
}
