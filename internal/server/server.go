package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/catalog"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/config"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/credential"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/router"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/translator"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	writeTimeout        = 90 * time.Second
	idleTimeout         = 120 * time.Second
)

// Credentials is the credential surface used by the settings routes.
type Credentials interface {
	Check(ctx context.Context, c credential.Credential) error
	OperatorAvailable(ctx context.Context) bool
	UserCredentialsAllowed() bool
}

// Deps are the collaborators the HTTP surface delegates to.
type Deps struct {
	Router      *router.Router
	Credentials Credentials
	Ranker      *catalog.Ranker
}

type Server struct {
	cfg     config.Config
	deps    Deps
	app     *echo.Echo
	address string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Router == nil {
		return nil, errors.New("router must not be nil")
	}
	if deps.Credentials == nil {
		return nil, errors.New("credentials must not be nil")
	}
	if deps.Ranker == nil {
		deps.Ranker = catalog.NewRanker()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler

	origins := cfg.Server.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'; form-action 'none'",
	}))

	srv := &Server{
		cfg:     cfg,
		deps:    deps,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	printStartupBanner(s.cfg.Server.Port, s.cfg.Server.BasePath)
	slog.Info("starting server", "addr", s.address, "environment", s.cfg.Server.Environment)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	g := s.app.Group(s.cfg.Server.BasePath)

	g.GET("/health", s.handleHealth)

	g.POST("/chat", s.handleChat)
	g.GET("/chat/health", s.handleChatHealth)
	g.POST("/chat/stream", s.handleChatStream)

	g.POST("/settings/validate-token", s.handleValidateToken)
	g.POST("/settings/models", s.handleModels)
	g.POST("/settings/model-recommendation", s.handleModelRecommendation)
	g.GET("/settings/config", s.handleConfig)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, translator.HealthResponse{Status: "ok", Timestamp: timestamp()})
}

func (s *Server) handleChat(c echo.Context) error {
	var req translator.ChatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	res, err := s.deps.Router.Complete(c.Request().Context(), req.ToRouter())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, translator.FromResult(res))
}

func (s *Server) handleChatHealth(c echo.Context) error {
	ctx := c.Request().Context()
	if !s.deps.Credentials.OperatorAvailable(ctx) && !s.deps.Credentials.UserCredentialsAllowed() {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status":    "unhealthy",
			"timestamp": timestamp(),
			"error":     "Service unavailable",
		})
	}
	return c.JSON(http.StatusOK, translator.HealthResponse{Status: "healthy", Timestamp: timestamp()})
}

func (s *Server) handleChatStream(c echo.Context) error {
	return requestError{
		Status:  http.StatusNotImplemented,
		Message: "Streaming not yet implemented",
		Code:    codeNotImplemented,
	}
}

func (s *Server) handleValidateToken(c echo.Context) error {
	var req translator.TokenRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if err := credential.ValidateFormat(req.APIKey); err != nil {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: `Invalid API key format. Keys should start with "sk-" and be at least 20 characters long.`,
			Code:    codeInvalidRequest,
		}
	}

	if !s.deps.Credentials.UserCredentialsAllowed() {
		return toHTTPError(credential.ErrUserCredentialsDisabled)
	}

	slog.Info("validating api key", "credential", req.APIKey)
	if err := s.deps.Credentials.Check(c.Request().Context(), req.APIKey); err != nil {
		slog.Info("api key validation failed", "credential", req.APIKey, "reason", errorKind(err))
		return validationError(err)
	}

	slog.Info("api key validated", "credential", req.APIKey)
	return c.JSON(http.StatusOK, translator.MessageResponse{
		Success: true,
		Message: "API key is valid and working",
	})
}

func (s *Server) handleModels(c echo.Context) error {
	var req translator.ModelsRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	snap, err := s.deps.Router.Catalog(c.Request().Context(), req.APIKey, req.Refresh)
	if err != nil {
		return toHTTPError(err)
	}
	report := s.deps.Ranker.Report(snap.Models)
	return c.JSON(http.StatusOK, translator.FromSnapshot(snap, report, time.Now()))
}

func (s *Server) handleModelRecommendation(c echo.Context) error {
	var req translator.RecommendationRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	snap, err := s.deps.Router.Catalog(c.Request().Context(), req.APIKey, false)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, translator.RecommendationResponse{
		Success:            true,
		RecommendedModel:   s.deps.Ranker.ModelForUseCase(req.UseCase, snap.Models),
		UseCase:            req.UseCase,
		AllRecommendations: s.deps.Ranker.Recommend(snap.Models),
		AvailableUseCases:  catalog.UseCases(),
	})
}

func (s *Server) handleConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, translator.ConfigResponse{
		Success: true,
		Config: translator.ConfigView{
			DefaultModel:         s.cfg.Chat.DefaultModel,
			AllowUserTokens:      s.deps.Credentials.UserCredentialsAllowed(),
			SystemTokenAvailable: s.deps.Credentials.OperatorAvailable(c.Request().Context()),
			Environment:          s.cfg.Server.Environment,
			Version:              s.cfg.Server.Version,
		},
	})
}

func decodeRequestBody[T any](c echo.Context, target *T) error {
	req := c.Request()
	defer req.Body.Close()

	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	decoder := json.NewDecoder(req.Body)
	if err := decoder.Decode(target); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "request body is required",
				Code:    codeInvalidRequest,
			}
		case errors.Is(err, translator.ErrMissingMessage):
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "No message provided",
				Code:    codeInvalidRequest,
			}
		case errors.Is(err, translator.ErrMissingAPIKey):
			return requestError{
				Status:  http.StatusBadRequest,
				Message: "API key is required",
				Code:    codeInvalidRequest,
			}
		}
		return requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("invalid request: %v", err),
			Code:    codeInvalidRequest,
		}
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: "request body must contain a single JSON object",
			Code:    codeInvalidRequest,
		}
	}
	return nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func printStartupBanner(port int, basePath string) {
	host := "127.0.0.1"
	fmt.Println()
	fmt.Println("master shredder gateway ready")
	fmt.Printf("Listening on http://%s:%d%s\n", host, port, basePath)
	fmt.Println("Endpoints:")
	for _, route := range []string{
		"GET  /health",
		"POST /chat",
		"GET  /chat/health",
		"POST /settings/validate-token",
		"POST /settings/models",
		"POST /settings/model-recommendation",
		"GET  /settings/config",
	} {
		fmt.Printf("  %s\n", route)
	}
	fmt.Printf("Example:\n  curl http://%s:%d%s/chat -H 'Content-Type: application/json' -d '{\"message\":\"hello\"}'\n\n", host, port, basePath)
}
