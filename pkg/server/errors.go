package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mlfoundry/metastore/pkg/rbac"
	"github.com/mlfoundry/metastore/pkg/registry"
	"github.com/mlfoundry/metastore/pkg/secrets"
)

// errorResponse is the JSON body of every non-2xx answer.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`

	// Occupant identifies the version holding a contested stage, set
	// only for stage_occupied errors so clients can prompt before
	// retrying with force.
	OccupantID   string `json:"occupant_id,omitempty"`
	OccupantName string `json:"occupant_name,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeStoreError maps a domain error to its HTTP answer. Unknown errors
// become opaque 500s; the detail stays in the server log.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var occupied *registry.StageOccupiedError

	switch {
	case errors.Is(err, rbac.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, secrets.ErrSecretNotFound),
		errors.Is(err, registry.ErrModelNotFound),
		errors.Is(err, registry.ErrModelVersionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, secrets.ErrSecretExists),
		errors.Is(err, registry.ErrModelExists),
		errors.Is(err, registry.ErrModelVersionExists):
		writeError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.As(err, &occupied):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:        "stage_occupied",
			Message:      occupied.Error(),
			OccupantID:   occupied.OccupantID,
			OccupantName: occupied.OccupantName,
		})
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
