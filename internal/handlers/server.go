package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marquee/internal/config"
	"marquee/internal/core"
	"marquee/internal/utils"
)

type Server struct {
	config     *config.Holder
	manager    *core.Manager
	logger     *utils.Logger
	httpServer *http.Server
	apiHandler *APIHandler
}

func NewServer(holder *config.Holder, manager *core.Manager, logger *utils.Logger) *Server {
	return &Server{
		config:     holder,
		manager:    manager,
		logger:     logger.Component("http"),
		apiHandler: NewAPIHandler(manager, logger.Component("api")),
	}
}

// Router builds the full route table.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(instrument)

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/rows", s.apiHandler.GetRows).Methods("GET")
	api.HandleFunc("/rows/{row}", s.apiHandler.GetRow).Methods("GET")
	api.HandleFunc("/media/{kind}/{id:[0-9]+}/videos", s.apiHandler.GetVideos).Methods("GET")
	api.HandleFunc("/trending/{kind}", s.apiHandler.GetTrending).Methods("GET")
	api.HandleFunc("/status", s.apiHandler.GetSystemStatus).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.apiHandler.GetSession).Methods("GET")
	api.HandleFunc("/carousel/{row}/ws", s.apiHandler.CarouselSocket).Methods("GET")

	// Web UI (if enabled)
	cfg := s.config.Get()
	if cfg.App.UIEnabled {
		dir := filepath.Join(cfg.App.DataPath, "web")
		if _, err := os.Stat(dir); err == nil {
			router.PathPrefix("/").Handler(http.FileServer(http.Dir(dir)))
		} else {
			s.logger.Debug().Str("dir", dir).Msg("ui enabled but no web directory, serving API only")
		}
	}

	return router
}

func (s *Server) Start() error {
	port := s.config.Get().App.Port
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	s.logger.Info().Int("port", port).Msg("starting server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
