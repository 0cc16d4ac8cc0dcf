// Package server implements the practice target service: a small HTTP
// endpoint plus a TCP banner service that exposes a flag, so parsed scan
// output can be produced against a local target. It is an independent
// process with no call interface into the ingestion pipeline.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scanledger/internal/config"
)

const bannerService = "MY_FAKE_SERVICE 1.0"

// PracticeServer runs the HTTP index and the TCP banner listener.
type PracticeServer struct {
	cfg        *config.Config
	flag       string
	logger     zerolog.Logger
	httpServer *http.Server
	bannerLn   net.Listener
	done       chan struct{}
}

// New creates a practice server. flag overrides the configured flag when
// non-empty.
func New(cfg *config.Config, flag string) *PracticeServer {
	if flag == "" {
		flag = cfg.Server.Flag
	}
	return &PracticeServer{
		cfg:    cfg,
		flag:   flag,
		logger: log.With().Str("component", "server").Logger(),
		done:   make(chan struct{}),
	}
}

// RegisterRoutes attaches the HTTP handlers.
func (s *PracticeServer) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", s.index).Methods("GET")
	r.HandleFunc("/healthz", s.healthz).Methods("GET")
}

func (s *PracticeServer) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<h3>Welcome to the practice server.</h3><p>Scan the network services here with nmap.</p>")
}

func (s *PracticeServer) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// Start brings up both listeners and returns immediately. The banner listener
// binds first so a port conflict leaves nothing running.
func (s *PracticeServer) Start() error {
	bannerAddr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.BannerPort)
	ln, err := net.Listen("tcp", bannerAddr)
	if err != nil {
		return fmt.Errorf("failed to start banner listener: %w", err)
	}
	s.bannerLn = ln

	router := mux.NewRouter()
	s.RegisterRoutes(router)

	corsMiddleware := handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	httpAddr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.HTTPPort)
	s.httpServer = &http.Server{
		Addr:         httpAddr,
		Handler:      corsMiddleware(router),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", httpAddr).Msg("Starting HTTP listener")
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	go s.serveBanner()
	s.logger.Info().Str("addr", bannerAddr).Msg("Starting banner listener")
	return nil
}

// serveBanner accepts connections, sends the banner with the flag, and
// closes. The trailing newline keeps nmap's version probes happy.
func (s *PracticeServer) serveBanner() {
	banner := fmt.Sprintf("%s\n%s\n", bannerService, s.flag)
	for {
		conn, err := s.bannerLn.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.logger.Warn().Err(err).Msg("Banner accept failed")
				continue
			}
		}

		s.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Banner connection")
		if _, err := conn.Write([]byte(banner)); err != nil {
			s.logger.Warn().Err(err).Msg("Banner write failed")
		}
		conn.Close()
	}
}

// BannerAddr returns the bound banner address, for tests that listen on an
// ephemeral port.
func (s *PracticeServer) BannerAddr() net.Addr {
	if s.bannerLn == nil {
		return nil
	}
	return s.bannerLn.Addr()
}

// Shutdown stops both listeners, waiting for in-flight HTTP requests up to
// the context deadline.
func (s *PracticeServer) Shutdown(ctx context.Context) error {
	close(s.done)
	if s.bannerLn != nil {
		s.bannerLn.Close()
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("HTTP shutdown failed: %w", err)
		}
	}
	return nil
}
