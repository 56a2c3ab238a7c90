// Package api exposes the consultation chatbot over HTTP: session
// lifecycle, message processing, and the intake submission surface.
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/playcat/catconsult/internal/flow"
	"github.com/playcat/catconsult/internal/notify"
	"github.com/playcat/catconsult/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// Opts holds configuration for the API server.
type Opts struct {
	Addr        string
	CORSOrigins []string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithCORSOrigins sets the origins allowed to call the API from a browser.
func WithCORSOrigins(origins []string) Option {
	return func(o *Opts) { o.CORSOrigins = origins }
}

// Server wires the conversation engine, store, and notifier behind the HTTP
// surface.
type Server struct {
	addr        string
	corsOrigins []string
	engine      *flow.Engine
	st          store.Store
	notifier    notify.Notifier
	guard       *sessionGuard
}

// NewServer creates the API server.
func NewServer(engine *flow.Engine, st store.Store, notifier notify.Notifier, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, CORSOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}
	return &Server{
		addr:        cfg.Addr,
		corsOrigins: cfg.CORSOrigins,
		engine:      engine,
		st:          st,
		notifier:    notifier,
		guard:       newSessionGuard(),
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/start", s.handleChatStart)
	mux.HandleFunc("POST /api/chat/message", s.handleChatMessage)
	mux.HandleFunc("GET /api/chat/session/{id}", s.handleSessionGet)
	mux.HandleFunc("DELETE /api/chat/session/{id}", s.handleSessionDelete)
	mux.HandleFunc("POST /api/consultation/submit", s.handleConsultationSubmit)
	mux.HandleFunc("GET /api/consultation", s.handleConsultationList)
	mux.HandleFunc("GET /api/consultation/{id}", s.handleConsultationGet)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.corsMiddleware(mux)
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Form submissions can wait on video generation, so no blanket
		// write timeout here; collaborator calls carry their own deadlines.
	}
	slog.Info("Server.Run: listening", "addr", s.addr)
	return srv.ListenAndServe()
}

// corsMiddleware answers preflight requests and stamps the allow headers on
// every response.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.corsOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
