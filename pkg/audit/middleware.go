package audit

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mlfoundry/metastore/pkg/auth"
)

// responseCapture wraps http.ResponseWriter to capture the status code.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Middleware records mutating API calls as audit events after the
// handler completes. Reads are not recorded. It must run behind the
// identity middleware. Writes are best effort and never fail the
// request.
func Middleware(store *EventStore, cfg *Config, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil || !cfg.Enabled || store == nil || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			outcome := outcomeFromStatus(capture.statusCode)
			if outcome == OutcomeDenied && !cfg.LogDenied {
				return
			}

			ctx := r.Context()
			actor, actorName := "anonymous", ""
			if ac, ok := auth.FromContext(ctx); ok {
				actor = ac.User.ID.String()
				actorName = ac.User.Name
			}

			resourceType, resourceID := extractResource(r.URL.Path)
			event := &EventRecord{
				ID:           uuid.New().String(),
				RequestID:    middleware.GetReqID(ctx),
				Actor:        actor,
				ActorName:    actorName,
				ResourceType: resourceType,
				ResourceID:   resourceID,
				Action:       actionVerb(r.Method, r.URL.Path),
				Outcome:      outcome,
				StatusCode:   capture.statusCode,
				Method:       r.Method,
				Path:         r.URL.Path,
				DurationMS:   time.Since(start).Milliseconds(),
				CreatedAt:    start,
			}

			if err := store.Append(event); err != nil {
				logger.Error("failed to write audit event", "error", err, "request_id", event.RequestID)
			}
		})
	}
}

func outcomeFromStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return OutcomeSuccess
	case code == http.StatusForbidden:
		return OutcomeDenied
	default:
		return OutcomeFailure
	}
}

// extractResource derives the resource type and ID from an API path such
// as /api/v1/secrets/{id} or /api/v1/model_versions/{id}/stage.
func extractResource(path string) (string, string) {
	parts := apiParts(path)
	if len(parts) == 0 {
		return "", ""
	}

	resourceType := strings.TrimSuffix(parts[0], "s")
	if parts[0] == "model_versions" {
		resourceType = "model_version"
	}

	var id string
	if len(parts) > 1 {
		if _, err := uuid.Parse(parts[1]); err == nil {
			id = parts[1]
		}
	}
	return resourceType, id
}

// actionVerb maps the method and path shape to a verb. Sub-resource
// routes get their own verbs so the trail reads as intent, not plumbing.
func actionVerb(method, path string) string {
	parts := apiParts(path)
	if len(parts) == 3 {
		switch parts[2] {
		case "stage":
			return "promote"
		case "artifacts", "runs":
			if method == http.MethodPost {
				return "link"
			}
		case "versions":
			if method == http.MethodPost {
				return "create_version"
			}
		case "secrets":
			if method == http.MethodDelete {
				return "purge"
			}
		}
	}

	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

func apiParts(path string) []string {
	trimmed := strings.TrimPrefix(path, "/api/v1/")
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
