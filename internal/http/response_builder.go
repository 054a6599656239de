package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"symptomlog/internal/core"
	applog "symptomlog/internal/log"
	"symptomlog/internal/middleware/trace"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// RespondWithJSON writes data as JSON with the given status.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes a JSON error body.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithJSON(w, r, status, ErrorResponse{
		Error:     message,
		RequestID: trace.GetRequestID(r.Context()),
	})
}

// RespondWithServiceError maps core error kinds to HTTP statuses.
// Validation problems are the caller's fault; anything else is ours and the
// details stay in the log.
func RespondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	var ve *core.ValidationError
	if errors.As(err, &ve) {
		logger.DebugContext(ctx, "Request rejected", "error", err, applog.FieldPath, r.URL.Path)
		RespondWithJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:     ve.Error(),
			Field:     ve.Field,
			RequestID: trace.GetRequestID(ctx),
		})
		return
	}

	fields := applog.NewFields()
	fields[applog.FieldPath] = r.URL.Path
	fields["storage_error"] = core.IsStorageError(err)

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logger.WarnContext(ctx, "Request abandoned", fields.WithError(err).ToSlice()...)
	} else {
		applog.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, operationFor(r.Method), fields)
	}
	RespondWithError(w, r, http.StatusInternalServerError, "internal error")
}

func operationFor(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return applog.OpRead
	case http.MethodPost:
		return applog.OpCreate
	case http.MethodPut, http.MethodPatch:
		return applog.OpUpdate
	case http.MethodDelete:
		return applog.OpDelete
	default:
		return method
	}
}

// attachment marks the response as a download.
func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}
