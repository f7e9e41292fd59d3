// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package api exposes the hub over HTTP: the collect/processed submission
// endpoints, the generic RPC dispatch, the RSS feed, the read-only
// intelligence and statistics endpoints, the websocket live feed, health
// probes, and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/osintwire/intelhub/internal/config"
	"github.com/osintwire/intelhub/internal/hub"
	"github.com/osintwire/intelhub/internal/logging"
	"github.com/osintwire/intelhub/internal/metrics"
)

// Server is the HTTP surface over a Hub.
type Server struct {
	cfg  config.ServerConfig
	rss  config.RSSConfig
	hub  *hub.Hub
	live *LiveFeed
	log  zerolog.Logger
}

// NewServer builds the HTTP server. live may be nil to disable the
// websocket feed endpoint.
func NewServer(cfg config.ServerConfig, rssCfg config.RSSConfig, h *hub.Hub, live *LiveFeed) *Server {
	return &Server{
		cfg:  cfg,
		rss:  rssCfg,
		hub:  h,
		live: live,
		log:  logging.With().Str("component", "api").Logger(),
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestContext)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.cfg.RateLimitRPM > 0 {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitRPM, time.Minute))
	}
	r.Use(observeRequests)

	// submission surface; tokens travel in the body
	r.Post("/collect", s.handleCollect)
	r.Post("/processed", s.handleProcessed)
	r.Post("/api", s.handleRPC)

	// public surface
	r.Get("/rssfeed.xml", s.handleFeed)
	r.Handle("/metrics", promhttp.Handler())

	// read surface, guarded by the rpc token set
	r.Group(func(r chi.Router) {
		r.Use(s.rpcTokenAuth)
		r.Get("/intelligence/{uuid}", s.handleIntelligence)
		r.Get("/statistics/archive", s.handleStatsArchive)
		r.Get("/statistics/scores", s.handleStatsScores)
		r.Get("/statistics/informants", s.handleStatsInformants)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/health/live", s.handleLive)
		r.Get("/health/ready", s.handleReady)

		r.Group(func(r chi.Router) {
			r.Use(s.rpcTokenAuth)
			r.Get("/status", s.handleStatus)
			if s.live != nil {
				r.Get("/ws", s.live.Handle)
			}
		})
	})

	return r
}

// Serve runs the HTTP listener until ctx is cancelled, then drains with
// the configured shutdown timeout. Implements the supervisor's contract.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		s.log.Warn().Err(err).Msg("http shutdown did not drain cleanly")
		srv.Close()
	}
	<-errCh
	return ctx.Err()
}

// rpcTokenAuth guards read endpoints with the rpc token set. The token
// travels as a bearer header or a token query parameter.
func (s *Server) rpcTokenAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := trimBearer(r.Header.Get("Authorization"))
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if !s.hub.RPCTokenAllowed(token) {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestContext copies chi's request ID into the logging context.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// observeRequests records per-route request metrics.
func observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}
		metrics.ObserveAPIRequest(r.Method, path, ww.Status(), start)
	})
}
