package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/opencode-ai/toolrun/internal/logging"
	"github.com/opencode-ai/toolrun/pkg/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Kind    string         `json:"kind,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorWithDetails(w, status, code, message, nil)
}

// writeErrorWithDetails writes an error response with details.
func writeErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeSuccess writes a success response.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// statusFor maps an error kind to an HTTP status and error code.
func statusFor(kind types.ErrorKind) (int, string) {
	switch kind {
	case types.KindUnknownTool, types.KindInvalidParameters,
		types.KindInvalidWorkingDirectory, types.KindUnknownParent:
		return http.StatusBadRequest, ErrCodeInvalidRequest
	case types.KindPermissionDenied:
		return http.StatusForbidden, ErrCodePermissionDenied
	case types.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// writeCoreError writes a runtime error. Only the kind and the public
// reason are sent; paths and causes are logged.
func writeCoreError(w http.ResponseWriter, err error) {
	var coreErr *types.Error
	if !errors.As(err, &coreErr) {
		logging.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
		return
	}

	status, code := statusFor(coreErr.Kind)
	if status == http.StatusInternalServerError {
		logging.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: coreErr.PublicMessage(),
			Kind:    string(coreErr.Kind),
		},
	})
}

// writeValidationError reports DTO validation failures field by field.
func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	writeErrorWithDetails(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body", fields)
}

// decodeBody decodes and validates a JSON request body. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}
