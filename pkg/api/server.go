// Package api exposes the filter registry, graph validation, compilation and
// execution jobs over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/chicogong/ffmpeg-chain/pkg/auth"
	"github.com/chicogong/ffmpeg-chain/pkg/compiler"
	"github.com/chicogong/ffmpeg-chain/pkg/compiler/validator"
	"github.com/chicogong/ffmpeg-chain/pkg/events"
	"github.com/chicogong/ffmpeg-chain/pkg/executor"
	"github.com/chicogong/ffmpeg-chain/pkg/logger"
	"github.com/chicogong/ffmpeg-chain/pkg/prober"
	"github.com/chicogong/ffmpeg-chain/pkg/registry"
	"github.com/chicogong/ffmpeg-chain/pkg/store"
)

// Server holds the API server dependencies
type Server struct {
	store    store.Store
	registry *registry.Registry
	compiler *compiler.Compiler
	executor *executor.Executor
	prober   *prober.Prober
	policy   *validator.SourcePolicy
	events   *events.Broker
	auth     *auth.AuthMiddleware
	logger   logrus.FieldLogger
	workDir  string

	// running jobs by ID
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Server
type Option func(*Server)

// WithRegistry replaces the default filter table
func WithRegistry(reg *registry.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithExecutor sets the executor that runs jobs
func WithExecutor(e *executor.Executor) Option {
	return func(s *Server) { s.executor = e }
}

// WithProber sets the prober used for jobs that request probing
func WithProber(p *prober.Prober) Option {
	return func(s *Server) { s.prober = p }
}

// WithSourcePolicy sets which locations submitted jobs may read and write
func WithSourcePolicy(p *validator.SourcePolicy) Option {
	return func(s *Server) { s.policy = p }
}

// WithEvents publishes job events through b
func WithEvents(b *events.Broker) Option {
	return func(s *Server) { s.events = b }
}

// WithAuth protects every route except /health
func WithAuth(m *auth.AuthMiddleware) Option {
	return func(s *Server) { s.auth = m }
}

// WithLogger sets the server logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.logger = l }
}

// WithWorkDir sets the directory jobs stage media in
func WithWorkDir(dir string) Option {
	return func(s *Server) { s.workDir = dir }
}

// NewServer creates a new API server
func NewServer(s store.Store, opts ...Option) *Server {
	srv := &Server{
		store:    s,
		registry: registry.Default(),
		policy:   &validator.SourcePolicy{},
		logger:   logger.Discard(),
		cancels:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.compiler = compiler.New(compiler.WithLogger(srv.logger))
	if srv.executor == nil {
		srv.executor = executor.NewExecutor("ffmpeg", executor.WithLogger(srv.logger))
	}
	if srv.prober == nil {
		srv.prober = prober.NewProber()
	}
	return srv
}

// Routes returns the HTTP handler serving every endpoint
func (s *Server) Routes() http.Handler {
	public := []func(http.HandlerFunc) http.HandlerFunc{
		RecoveryMiddleware(s.logger),
		CORSMiddleware,
		LoggingMiddleware(s.logger),
	}
	protected := append(public[:len(public):len(public)], s.authenticate)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", Chain(s.HandleHealth, public...))
	mux.HandleFunc("OPTIONS /api/", Chain(http.NotFound, CORSMiddleware))

	mux.HandleFunc("GET /api/v1/filters", Chain(s.HandleListFilters, protected...))
	mux.HandleFunc("GET /api/v1/filters/{name}", Chain(s.HandleGetFilter, protected...))
	mux.HandleFunc("POST /api/v1/validate", Chain(s.HandleValidate, protected...))
	mux.HandleFunc("POST /api/v1/compile", Chain(s.HandleCompile, protected...))

	mux.HandleFunc("POST /api/v1/jobs", Chain(s.HandleCreateJob, protected...))
	mux.HandleFunc("GET /api/v1/jobs", Chain(s.HandleListJobs, protected...))
	mux.HandleFunc("GET /api/v1/jobs/{id}", Chain(s.HandleGetJob, protected...))
	mux.HandleFunc("DELETE /api/v1/jobs/{id}", Chain(s.HandleDeleteJob, protected...))
	return mux
}

func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	if s.auth == nil {
		return next
	}
	return s.auth.Handler(next).ServeHTTP
}

// Wait blocks until every running job has finished
func (s *Server) Wait() {
	s.wg.Wait()
}

// Close cancels running jobs, waits for them and closes the store
func (s *Server) Close() error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
