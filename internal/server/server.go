// Package server wires the extraction pipeline behind the HTTP API and
// manages the optional local OCR container lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docfield/docfield/internal/api"
	"github.com/docfield/docfield/internal/callback"
	"github.com/docfield/docfield/internal/config"
	"github.com/docfield/docfield/internal/extract"
	"github.com/docfield/docfield/internal/filecenter"
	"github.com/docfield/docfield/internal/ocr"
	"github.com/docfield/docfield/internal/providers"
	"github.com/docfield/docfield/internal/server/endpoints"
	"github.com/docfield/docfield/internal/svcctx"
	"github.com/docfield/docfield/internal/tasks"
	"github.com/docfield/docfield/internal/types"
)

// pipeline bundles the per-file collaborators built from one config
// snapshot. The whole bundle is swapped atomically on config reload so
// in-flight files finish against the snapshot they started with.
type pipeline struct {
	resolver *ocr.Resolver
	engine   *extract.Engine
	files    *filecenter.Client
}

// Server is the main docfield HTTP server. When the local OCR container is
// enabled it is started on server start and stopped on shutdown.
type Server struct {
	httpServer   *http.Server
	ocrManager   *ocr.DockerManager
	orchestrator *tasks.Orchestrator
	dispatcher   *callback.Dispatcher
	configMgr    *config.Manager
	logger       *slog.Logger

	current atomic.Pointer[pipeline]

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 20001)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// WithOCRContainer forces the local OCR container on, overriding
	// ocr.container.enabled.
	WithOCRContainer bool
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	appCfg := cfg.ConfigManager.Get()
	if cfg.Host == "" {
		cfg.Host = appCfg.Server.Host
	}
	if cfg.Port == "" {
		cfg.Port = appCfg.Server.Port
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	if appCfg.OCR.Container.Enabled || cfg.WithOCRContainer {
		mgr, err := ocr.NewDockerManager(ocr.DockerConfig{
			ContainerName: appCfg.OCR.Container.Name,
			Image:         appCfg.OCR.Container.Image,
			HostPort:      appCfg.OCR.Container.Port,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ocr container manager: %w", err)
		}
		s.ocrManager = mgr
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server and, when enabled, the local OCR container.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	appCfg := s.configMgr.Get()

	ocrURL := appCfg.OCR.ServerURL
	if s.ocrManager != nil {
		s.logger.Info("starting OCR container")
		if err := s.ocrManager.Start(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to start OCR container: %w", err)
		}
		ocrURL = s.ocrManager.URL()
		s.logger.Info("OCR container is ready", "url", ocrURL)
	}

	s.current.Store(s.buildPipeline(appCfg, ocrURL))
	s.configMgr.OnChange(func(c *config.Config) {
		url := c.OCR.ServerURL
		if s.ocrManager != nil {
			url = s.ocrManager.URL()
		}
		s.current.Store(s.buildPipeline(c, url))
		s.logger.Info("pipeline rebuilt from config")
	})

	s.dispatcher = callback.NewDispatcher(
		appCfg.Callback.BaseURL,
		appCfg.Callback.FinalResultPath,
		appCfg.Callback.OCRResultPath,
		uint(appCfg.Callback.MaxRetries),
		appCfg.Callback.RetryBaseDelay,
		appCfg.Callback.Timeout,
		s.logger,
	)

	// Tasks run detached from request contexts; graceful shutdown waits
	// for them instead of cancelling them.
	s.orchestrator = tasks.NewOrchestrator(
		context.Background(),
		resolverFunc(func(ctx context.Context, fileID, ocrFileID string) (*ocr.Resolution, error) {
			return s.current.Load().resolver.Resolve(ctx, fileID, ocrFileID)
		}),
		extractorFunc(func(ctx context.Context, text string, fields []types.FieldSpec, override string) (map[string]string, error) {
			return s.current.Load().engine.Extract(ctx, text, fields, override)
		}),
		s.dispatcher,
		appCfg.Tasks.MaxFileConcurrency,
		appCfg.Tasks.TaskTimeout,
		s.logger,
	)

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Orchestrator: s.orchestrator,
		FileCenter:   s.current.Load().files,
		Logger:       s.logger,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// buildPipeline constructs the per-file collaborators from one config
// snapshot.
func (s *Server) buildPipeline(cfg *config.Config, ocrURL string) *pipeline {
	files := filecenter.New(filecenter.Config{
		BaseURL: cfg.FileCenter.BaseURL,
		Timeout: cfg.FileCenter.Timeout,
		Logger:  s.logger,
	})

	ocrClient := providers.NewPaddleOCRClient(providers.PaddleOCRConfig{
		ServerURL: ocrURL,
		Model:     cfg.OCR.Model,
		PageBreak: cfg.OCR.PageBreak,
		Timeout:   cfg.OCR.Timeout,
	})
	gatedOCR := providers.ThrottleOCR(ocrClient, cfg.OCR.MaxInflight, cfg.OCR.RateLimit)

	llmClient := providers.NewOpenAICompatClient(providers.OpenAICompatConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      config.ResolveEnvVars(cfg.LLM.APIKey),
		Model:       cfg.LLM.Model,
		System:      cfg.LLM.System,
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	gatedLLM := providers.ThrottleLLM(llmClient, cfg.LLM.MaxInflight, cfg.LLM.RateLimit)

	return &pipeline{
		resolver: ocr.NewResolver(files, gatedOCR, s.logger),
		engine:   extract.NewEngine(gatedLLM, cfg.LLM.Timeout, s.logger),
		files:    files,
	}
}

// shutdown performs graceful shutdown of the HTTP server, in-flight tasks
// and the OCR container.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.orchestrator != nil {
		s.logger.Info("waiting for in-flight tasks")
		s.orchestrator.Wait()
	}

	if s.ocrManager != nil {
		s.logger.Info("stopping OCR container")
		if err := s.ocrManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("OCR container stop error", "error", err)
		}
		if err := s.ocrManager.Close(); err != nil {
			s.logger.Error("OCR container manager close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Orchestrator returns the task orchestrator.
// Returns nil if the server hasn't started yet.
func (s *Server) Orchestrator() *tasks.Orchestrator {
	return s.orchestrator
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the pipeline is wired before a
// request reaches an endpoint that needs it.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.orchestrator == nil || s.current.Load() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}

// resolverFunc adapts a closure to the tasks.Resolver interface.
type resolverFunc func(ctx context.Context, fileID, ocrFileID string) (*ocr.Resolution, error)

func (f resolverFunc) Resolve(ctx context.Context, fileID, ocrFileID string) (*ocr.Resolution, error) {
	return f(ctx, fileID, ocrFileID)
}

// extractorFunc adapts a closure to the tasks.Extractor interface.
type extractorFunc func(ctx context.Context, text string, fields []types.FieldSpec, override string) (map[string]string, error)

func (f extractorFunc) Extract(ctx context.Context, text string, fields []types.FieldSpec, override string) (map[string]string, error) {
	return f(ctx, text, fields, override)
}
