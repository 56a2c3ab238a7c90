package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/playcat/catconsult/internal/models"
)

// fallbackErrorResponse is pre-marshaled so a response can always be written
// even if encoding the intended payload fails.
var fallbackErrorResponse = []byte(`{"status":"error","message":"internal server error"}`)

// writeJSONResponse writes an API response as JSON with the given status.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("api.writeJSONResponse: failed to marshal response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(fallbackErrorResponse)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		slog.Warn("api.writeJSONResponse: failed to write response", "error", err)
	}
}
