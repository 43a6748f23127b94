package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/book-expert/tts-pipeline/internal/apperrors"
)

// writeError renders err as the standard error envelope, mapping
// AppErrors to their taxonomy status code and sanitizing everything else
// down to a generic internal error so no implementation detail escapes.
// Unknown/internal errors are logged in full here, since the sanitized
// response body never carries enough detail to debug from.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if appErr, ok := apperrors.As(err); ok {
		writeErrorEnvelope(w, appErr.HTTPStatus(), string(appErr.Code), appErr.Message, appErr.Details)

		return
	}

	if s.log != nil {
		s.log.Error("unhandled internal error: %v", err)
	}

	writeErrorEnvelope(w, http.StatusInternalServerError, string(apperrors.CodeInternal), "an internal error occurred", "")
}

func writeErrorEnvelope(w http.ResponseWriter, status int, code, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		ErrorCode: code,
		Message:   message,
		Details:   details,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
