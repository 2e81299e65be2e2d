package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "leak-audit/internal/common/errors"
	"leak-audit/internal/common/validation"

	"github.com/go-chi/chi/v5"
)

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	ErrorID string `json:"errorId"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err in the standard error envelope. Internal errors
// never expose their details.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(stdErr.Code)

	endpoint := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		endpoint = rctx.RoutePattern()
	}
	body := errorBody{
		Error:   stdErr.Message,
		Code:    string(stdErr.Code),
		ErrorID: apperrors.ErrorID(apperrors.GetErrorCategory(stdErr.Code), endpoint, status, stdErr.Code),
	}
	if status < http.StatusInternalServerError {
		body.Details = stdErr.Details
	}

	fields := map[string]interface{}{
		"endpoint": endpoint,
		"status":   status,
		"code":     body.Code,
		"errorId":  body.ErrorID,
	}
	if status >= http.StatusInternalServerError {
		fields["error"] = err
		s.logger.Error("request failed", fields)
	} else {
		s.logger.Debug("request rejected", fields)
	}

	writeJSON(w, status, body)
}

// decode reads the body under the size limit, validates it against schema
// and unmarshals it into dst. An empty body is treated as {}.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema *validation.Schema, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.NewPayloadTooLargeError(s.maxBody)
		}
		return apperrors.NewInvalidRequestError("Unable to read request body", "")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	res, err := schema.ValidateJSON(raw)
	if err != nil {
		return apperrors.NewInvalidRequestError("Malformed JSON body", "")
	}
	if !res.Valid {
		return apperrors.NewInvalidRequestError("Invalid request body", res.Message())
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperrors.NewInvalidRequestError("Malformed JSON body", "")
	}
	return nil
}
