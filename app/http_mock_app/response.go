package http_mock_app

import (
	"encoding/json"
	"errors"
	"net/http"

	model "fake_api_server/internal/domain/model/mock_rule"
	"fake_api_server/utils"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		utils.GetLogger().WithError(err).Warn("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string, fields []string) {
	writeJSON(w, status, errorResponse{Error: msg, Fields: fields})
}

// writeDomainError 领域错误映射到状态码，其余一律 500
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		ve  *model.ValidationError
		ce  *model.ConflictError
		ne  *model.NotFoundError
		ume *model.UnsupportedMediaTypeError
	)
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error(), ve.Fields)
	case errors.As(err, &ce):
		writeError(w, http.StatusConflict, ce.Error(), nil)
	case errors.As(err, &ne):
		writeError(w, http.StatusNotFound, ne.Error(), nil)
	case errors.As(err, &ume):
		writeError(w, http.StatusUnsupportedMediaType, ume.Error(), nil)
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}
