// Package server is the transport boundary: it exposes the TTS facade to
// the UI layer over a loopback HTTP API plus a websocket event stream, and
// owns the audio file store the speak endpoint writes into.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/voxhost/voxhost/internal/config"
	"github.com/voxhost/voxhost/internal/engine"
	"github.com/voxhost/voxhost/internal/manager"
)

const reapInterval = 10 * time.Minute

// Facade is the manager surface the server consumes.
type Facade interface {
	ListEngines() []manager.EngineInfo
	Start(ctx context.Context, id engine.ID) (*manager.Config, error)
	Stop(ctx context.Context) error
	Status(ctx context.Context) manager.Status
	ActiveConfig(ctx context.Context) (*manager.Config, bool)
	Voices(ctx context.Context) ([]string, error)
	Speak(ctx context.Context, text, voice string) manager.SpeakResult
}

// Server wires the HTTP routes, event hub, audio store, and engine watcher.
type Server struct {
	cfg   config.Config
	mgr   Facade
	store *AudioStore
	hub   *EventHub
	mux   *http.ServeMux
}

// New assembles the server. The hub should also be registered as the
// manager's notifier so engine events reach UI clients.
func New(cfg config.Config, mgr Facade, store *AudioStore, hub *EventHub) *Server {
	s := &Server{cfg: cfg, mgr: mgr, store: store, hub: hub}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/engines", s.handleListEngines)
	mux.HandleFunc("POST /api/engines/{id}/start", s.handleStart)
	mux.HandleFunc("POST /api/stop", s.handleStop)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/voices", s.handleVoices)
	mux.HandleFunc("POST /api/speak", s.handleSpeak)
	mux.HandleFunc("GET /audio/{ref}", s.handleAudio)
	mux.Handle("GET /events", hub)
	s.mux = mux

	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until the context is cancelled, then shuts down the HTTP
// listener, disconnects event clients, and wipes the audio store.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Transport boundary listening", "addr", s.cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		s.store.Reap(gctx, reapInterval)
		return nil
	})

	g.Go(func() error {
		watchEngines(gctx, s.cfg.ResourcesDir, s.hub)
		return nil
	})

	err := g.Wait()

	s.hub.Close()
	if closeErr := s.store.Close(); closeErr != nil {
		log.Warn("Audio store cleanup failed", "error", closeErr)
	}
	return err
}
