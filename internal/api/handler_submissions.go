package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prudhvinik1/storeledger/internal/forms"
	"github.com/prudhvinik1/storeledger/internal/models"
)

// submit decodes the body into In and hands it to fn with the caller's
// identity. Confirmed records answer 201, locally queued ones 202.
func submit[In any](s *Server, fn func(context.Context, models.Submitter, In) (*models.Receipt, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, ok := submitterFrom(r.Context())
		if !ok {
			writeErrorMessage(w, http.StatusUnauthorized, "missing submitter")
			return
		}

		var in In
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		receipt, err := fn(r.Context(), who, in)
		if err != nil {
			s.writeError(w, err)
			return
		}

		status := http.StatusAccepted
		if receipt.State == models.RecordConfirmed {
			status = http.StatusCreated
		}
		writeJSON(w, status, receipt)
	}
}

func (s *Server) handleSubmitCash(w http.ResponseWriter, r *http.Request) {
	submit[forms.CashInput](s, s.forms.SubmitCash)(w, r)
}

func (s *Server) handleSubmitChecklist(w http.ResponseWriter, r *http.Request) {
	submit[forms.ChecklistInput](s, s.forms.SubmitChecklist)(w, r)
}

func (s *Server) handleSubmitIncident(w http.ResponseWriter, r *http.Request) {
	submit[forms.IncidentInput](s, s.forms.SubmitIncident)(w, r)
}

func (s *Server) handleSubmitInventory(w http.ResponseWriter, r *http.Request) {
	submit[forms.InventoryInput](s, s.forms.SubmitInventory)(w, r)
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	submit[forms.ReportInput](s, s.forms.SubmitReport)(w, r)
}

func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, ok := s.references[key]; !ok {
		writeErrorMessage(w, http.StatusNotFound, "unknown reference collection")
		return
	}

	data, err := s.reference.Get(r.Context(), key, key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}
