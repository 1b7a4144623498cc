// Package server exposes the demo over HTTP: the browser pages, the JSON API
// and the conversation WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/gorilla/websocket"

	"github.com/book-expert/voice-demo/internal/agent"
	"github.com/book-expert/voice-demo/internal/config"
	"github.com/book-expert/voice-demo/internal/core"
	"github.com/book-expert/voice-demo/internal/tts"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultShutdownTimeout   = 5 * time.Second
	maxRequestBodyBytes      = 64 << 10
	maxSocketMessageBytes    = 64 << 10
)

const (
	logFmtListening      = "Voice demo listening on %s"
	logFmtShuttingDown   = "Shutting down HTTP server (%d live sessions)"
	errFmtListen         = "failed to listen on %s: %w"
	errFmtServe          = "http server failed: %w"
	errFmtShutdownServer = "failed to shut down http server: %w"
)

// Speech is what the server needs from the provider registry. *tts.Manager
// satisfies it.
type Speech interface {
	agent.Speaker
	Compare(ctx context.Context, input, language string) ([]tts.CompareResult, error)
	SupportedLanguages() map[string]string
}

// Options configures a Server.
type Options struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	DefaultProvider   core.Provider
	ResponderTimeout  time.Duration
}

// OptionsFromConfig maps the server and agent sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Addr:              cfg.Server.ListenAddr(),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeoutSeconds) * time.Second,
		ShutdownTimeout:   time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second,
		ResponderTimeout:  cfg.Agent.Timeout(),
	}
}

// Server serves the demo. Every WebSocket connection gets its own agent
// session; the HTTP conversation endpoint shares one.
type Server struct {
	speech    Speech
	responder agent.Responder
	store     core.ObjectStore
	httpAgent *agent.Agent
	upgrader  websocket.Upgrader
	opts      Options
	log       *logger.Logger

	mu       sync.Mutex
	sessions map[*websocket.Conn]string
}

// New wires a server. store receives the audio of HTTP conversation turns
// and backs GET /api/audio/{filename}.
func New(
	speech Speech,
	responder agent.Responder,
	store core.ObjectStore,
	opts Options,
	log *logger.Logger,
) *Server {
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = defaultReadHeaderTimeout
	}

	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	if opts.DefaultProvider == 0 {
		opts.DefaultProvider = core.ProviderOpenAI
	}

	server := &Server{
		speech:    speech,
		responder: responder,
		store:     store,
		opts:      opts,
		log:       log,
		sessions:  make(map[*websocket.Conn]string),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	server.httpAgent = server.newSession(store)

	return server
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handlePage(pageIndex))
	mux.HandleFunc("GET /demo", s.handlePage(pageDemo))
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /api/tts", s.handleTTS)
	mux.HandleFunc("GET /api/providers", s.handleProviders)
	mux.HandleFunc("POST /api/conversation", s.handleConversation)
	mux.HandleFunc("GET /api/audio/{filename}", s.handleAudio)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

// Run listens on Options.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var listenConfig net.ListenConfig

	listener, err := listenConfig.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf(errFmtListen, s.opts.Addr, err)
	}

	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled, then shuts
// down gracefully: in-flight requests finish and live WebSocket sessions get
// a close frame.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
	}
	httpServer.RegisterOnShutdown(s.closeSessions)

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	s.log.Info(logFmtListening, listener.Addr())

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf(errFmtServe, err)
	case <-ctx.Done():
	}

	s.log.Info(logFmtShuttingDown, s.liveSessions())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	shutdownErr := httpServer.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		return fmt.Errorf(errFmtShutdownServer, shutdownErr)
	}

	return nil
}

func (s *Server) newSession(store core.ObjectStore) *agent.Agent {
	return agent.New(s.speech, s.responder, agent.Options{
		Store:            store,
		DefaultProvider:  s.opts.DefaultProvider,
		ResponderTimeout: s.opts.ResponderTimeout,
	}, s.log)
}

func (s *Server) liveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}
