package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prudhvinik1/storeledger/internal/models"
	"github.com/sirupsen/logrus"
)

type ctxKey int

const submitterKey ctxKey = iota

// requireSubmitter verifies the bearer token and puts the submitter in the
// request context.
func (s *Server) requireSubmitter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeErrorMessage(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		who, err := s.auth.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeErrorMessage(w, http.StatusUnauthorized, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), submitterKey, *who)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func submitterFrom(ctx context.Context) (models.Submitter, bool) {
	who, ok := ctx.Value(submitterKey).(models.Submitter)
	return who, ok
}

// requestLogger logs one line per request through logrus.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("Request handled")
		})
	}
}
