package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"parcellink/internal/config"
	"parcellink/internal/database"
	"parcellink/internal/ingest"
)

// Server exposes the stored results of the latest run as a read-only JSON
// API.
type Server struct {
	store database.Reader
	log   logrus.FieldLogger
	cfg   config.ServerConfig
}

func New(store database.Reader, cfg config.ServerConfig, log logrus.FieldLogger) *Server {
	return &Server{store: store, cfg: cfg, log: log}
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc(Health, s.health).Methods(http.MethodGet)
	router.HandleFunc(SummaryRoute, s.summary).Methods(http.MethodGet)
	router.HandleFunc(BuildingRoute, s.building).Methods(http.MethodGet)
	router.HandleFunc(ParcelBuildings, s.parcelBuildings).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(router)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Starting report server on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.store.Summary(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to load summary")
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to load summary")
		return
	}
	respondWithJSON(w, http.StatusOK, sum)
}

func (s *Server) building(w http.ResponseWriter, r *http.Request) {
	structID := mux.Vars(r)["structID"]
	rows, err := s.store.BuildingAssessments(r.Context(), structID)
	if err != nil {
		s.log.WithError(err).WithField("struct_id", structID).Error("Failed to load building")
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to load building")
		return
	}
	if len(rows) == 0 {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "No building with struct id "+structID)
		return
	}
	respondWithJSON(w, http.StatusOK, toDTOs(rows))
}

func (s *Server) parcelBuildings(w http.ResponseWriter, r *http.Request) {
	parcelID := ingest.CanonicalParcelID(mux.Vars(r)["parcelID"])
	rows, err := s.store.ParcelBuildings(r.Context(), parcelID)
	if err != nil {
		s.log.WithError(err).WithField("parcel_id", parcelID).Error("Failed to load parcel")
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to load parcel")
		return
	}
	respondWithJSON(w, http.StatusOK, toDTOs(rows))
}
