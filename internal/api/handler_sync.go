package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prudhvinik1/storeledger/internal/models"
	"github.com/prudhvinik1/storeledger/internal/utils"
)

type syncStatusResponse struct {
	Online  bool   `json:"online"`
	State   string `json:"state"`
	Pending int    `json:"pending"`
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, syncStatusResponse{
		Online:  s.engine.Online(),
		State:   s.engine.State().String(),
		Pending: s.engine.PendingCount(),
	})
}

// handleDrain runs one pass and answers with its result. A client that gives
// up waiting does not cut the pass short.
func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Drain(context.WithoutCancel(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type connectivityRequest struct {
	Online *bool `json:"online"`
}

// handleConnectivity lets the UI report what the device's network stack sees.
func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	var req connectivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Online == nil {
		writeErrorMessage(w, http.StatusBadRequest, "body must be {\"online\": true|false}")
		return
	}

	changed := s.connectivity.Report(*req.Online)
	writeJSON(w, http.StatusOK, map[string]bool{"online": *req.Online, "changed": changed})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.Queued(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if items == nil {
		items = []models.QueuedWrite{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleReset discards unsent submissions. It needs the manager PIN.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if s.resetPINHash == "" {
		writeErrorMessage(w, http.StatusForbidden, "reset is disabled")
		return
	}
	if !utils.CheckPIN(s.resetPINHash, r.Header.Get("X-Manager-PIN")) {
		writeErrorMessage(w, http.StatusForbidden, "invalid manager pin")
		return
	}

	discarded, err := s.engine.Reset(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.WithField("discarded", discarded).Warn("Local data reset by manager")
	writeJSON(w, http.StatusOK, map[string]int{"discarded": discarded})
}
