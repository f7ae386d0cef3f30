package rest

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	log        *logrus.Entry
	app        App
	address    string
	version    string
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	server     *http.Server
}

func NewServer(log *logrus.Logger, app App, address, version string, key *rsa.PrivateKey) *Server {
	s := Server{
		log:        log.WithField("component", "rest"),
		app:        app,
		address:    address,
		version:    version,
		privateKey: key,
		publicKey:  &key.PublicKey,
	}
	return &s
}

func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.log.Warnf("err during shutdown: %v", err)
		}
	}()
	s.log.Infof("starting http server on %s", s.address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/version", s.versionHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Post("/auth/login", s.loginHandler)
			r.Get("/teams", s.listTeamsHandler)
			r.Get("/teams/{id}/availability", s.teamAvailabilityHandler)
			r.Get("/hosts/{id}/slots", s.hostSlotsHandler)
			r.Post("/bookings", s.createBookingHandler)
			r.Get("/bookings/{id}", s.getBookingHandler)
			r.Group(func(r chi.Router) {
				r.Use(s.jwtAuth)
				r.Get("/bookings", s.listBookingsHandler)
				r.Put("/bookings/{id}/status", s.updateBookingStatusHandler)
				r.Post("/bookings/{id}/reschedule", s.rescheduleBookingHandler)
				r.Get("/availability", s.listRulesHandler)
				r.Post("/availability", s.createRuleHandler)
				r.Put("/availability/{id}", s.updateRuleHandler)
				r.Delete("/availability/{id}", s.deleteRuleHandler)
			})
		})
	})
	return r
}
