package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prudhvinik1/storeledger/internal/forms"
	"github.com/prudhvinik1/storeledger/internal/localstore"
	"github.com/prudhvinik1/storeledger/internal/refdata"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps domain errors to status codes. A storage failure means the
// submission was saved nowhere, and the UI must tell the user so.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var verr *forms.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Reason, Field: verr.Field})
	case errors.Is(err, forms.ErrChecklistIncomplete):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, refdata.ErrNoReferenceData):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, localstore.ErrStorage):
		s.log.WithError(err).Error("Local storage failure")
		writeErrorMessage(w, http.StatusInsufficientStorage, "submission could not be saved on this device")
	default:
		s.log.WithError(err).Error("Request failed")
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}
