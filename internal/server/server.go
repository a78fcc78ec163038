package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/application/authservice"
	"github.com/tuncanbit/qrpay/internal/server/handlers"
	"github.com/tuncanbit/qrpay/internal/server/websocket"
	"github.com/tuncanbit/qrpay/pkg/config"
)

// Shutdowner is stopped after the HTTP server drains.
type Shutdowner interface {
	Shutdown()
}

type Server struct {
	App        handlers.AppService
	AuthSvc    authservice.IAuthService
	Cfg        *config.Config
	Logger     zerolog.Logger
	Router     *gin.Engine
	WsManager  *websocket.Manager
	httpServer *http.Server
	onShutdown []Shutdowner
}

func New(cfg *config.Config, appSvc handlers.AppService, authSvc authservice.IAuthService, logger zerolog.Logger, wsManager *websocket.Manager) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = 8 << 20

	return &Server{
		Cfg:       cfg,
		App:       appSvc,
		AuthSvc:   authSvc,
		Logger:    logger.With().Str("component", "server").Logger(),
		Router:    router,
		WsManager: wsManager,
	}
}

// OnShutdown registers components to stop once the listener is closed.
func (s *Server) OnShutdown(items ...Shutdowner) {
	s.onShutdown = append(s.onShutdown, items...)
}

func (s *Server) SetupRouter() {
	handler := handlers.New(
		s.App,
		s.AuthSvc,
		s.Logger,
		s.Cfg,
		s.WsManager,
	)
	handler.SetupHandlers(s.Router)
}

// Start serves until SIGINT/SIGTERM or ctx is cancelled, then shuts down
// gracefully and stops the registered components.
func (s *Server) Start(ctx context.Context) error {
	s.SetupRouter()

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(s.Cfg.Server.Host, s.Cfg.Server.Port),
		Handler:      s.Router,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	s.Logger.Info().Msgf("Starting server on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.Logger.Error().Err(err).Msg("Failed to start server")
			s.stopComponents()
			return err
		}
	case <-ctx.Done():
		s.Logger.Info().Msg("Shutdown signal received, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.WsManager.Close()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.stopComponents()
	if err != nil {
		s.Logger.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}

	s.Logger.Info().Msg("Server exited gracefully")
	return nil
}

func (s *Server) stopComponents() {
	for _, c := range s.onShutdown {
		c.Shutdown()
	}
}
