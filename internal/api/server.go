// Package api is the agent's local HTTP surface: the till UI posts forms and
// reads sync status here.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prudhvinik1/storeledger/internal/forms"
	"github.com/prudhvinik1/storeledger/internal/models"
	"github.com/prudhvinik1/storeledger/internal/refdata"
	"github.com/prudhvinik1/storeledger/internal/syncengine"
	"github.com/sirupsen/logrus"
)

// SyncEngine is the part of the engine the API exposes.
type SyncEngine interface {
	State() syncengine.State
	Online() bool
	PendingCount() int
	Drain(ctx context.Context) (syncengine.DrainResult, error)
	Queued(ctx context.Context) ([]models.QueuedWrite, error)
	Reset(ctx context.Context) (int, error)
}

// ConnectivityReporter accepts manual connectivity overrides from the UI.
type ConnectivityReporter interface {
	Report(online bool) bool
}

type TokenVerifier interface {
	VerifyToken(token string) (*models.Submitter, error)
}

type ReferenceLoader interface {
	Get(ctx context.Context, key, collection string) (*refdata.Data, error)
}

type Deps struct {
	Engine       SyncEngine
	Connectivity ConnectivityReporter
	Forms        *forms.Forms
	Reference    ReferenceLoader
	Auth         TokenVerifier
	// ResetPINHash is the bcrypt hash of the manager PIN. Empty disables reset.
	ResetPINHash string
	// ReferenceCollections lists the keys GET /v1/reference/{key} serves.
	ReferenceCollections []string
	Log                  logrus.FieldLogger
}

type Server struct {
	engine       SyncEngine
	connectivity ConnectivityReporter
	forms        *forms.Forms
	reference    ReferenceLoader
	auth         TokenVerifier
	resetPINHash string
	references   map[string]struct{}
	log          logrus.FieldLogger
}

func NewServer(deps Deps) *Server {
	refs := make(map[string]struct{}, len(deps.ReferenceCollections))
	for _, c := range deps.ReferenceCollections {
		refs[c] = struct{}{}
	}
	return &Server{
		engine:       deps.Engine,
		connectivity: deps.Connectivity,
		forms:        deps.Forms,
		reference:    deps.Reference,
		auth:         deps.Auth,
		resetPINHash: deps.ResetPINHash,
		references:   refs,
		log:          deps.Log.WithField("component", "api"),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/sync/status", s.handleSyncStatus)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSubmitter)

			// A drain pass runs to the end of its snapshot, so it has no request timeout
			r.Post("/sync/drain", s.handleDrain)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))
				r.Put("/connectivity", s.handleConnectivity)
				r.Get("/queue", s.handleQueue)
				r.Post("/reset", s.handleReset)
				r.Post("/submissions/cash", s.handleSubmitCash)
				r.Post("/submissions/checklist", s.handleSubmitChecklist)
				r.Post("/submissions/incident", s.handleSubmitIncident)
				r.Post("/submissions/inventory", s.handleSubmitInventory)
				r.Post("/submissions/report", s.handleSubmitReport)
				r.Get("/reference/{key}", s.handleReference)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
