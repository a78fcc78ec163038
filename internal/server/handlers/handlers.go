package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/application/app"
	"github.com/tuncanbit/qrpay/internal/application/appstate"
	"github.com/tuncanbit/qrpay/internal/application/authservice"
	"github.com/tuncanbit/qrpay/internal/application/paymentservice"
	"github.com/tuncanbit/qrpay/internal/application/walletservice"
	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/scanner"
	"github.com/tuncanbit/qrpay/internal/server/middleware"
	"github.com/tuncanbit/qrpay/internal/server/websocket"
	"github.com/tuncanbit/qrpay/pkg/config"
)

// AppService is the slice of the orchestrator the HTTP layer drives.
type AppService interface {
	StartCamera(ctx context.Context) error
	StopCamera()
	HandleVisibility(visible bool)
	ScannerState() scanner.State
	RestartPending() bool
	ScanImage(ctx context.Context, r io.Reader) (*domain.Reservation, error)
	SubmitPayload(ctx context.Context, payload string) (*domain.Reservation, error)
	Reservation() *domain.Reservation
	ConfirmPayment(ctx context.Context) (*paymentservice.Confirmation, error)
	CancelPayment(ctx context.Context) error
	TrackPayment(id domain.TxID)
	Refresh(ctx context.Context) (*domain.UserInfo, error)
	Wallet() walletservice.IWalletService
	Auth() authservice.IAuthService
	State() *appstate.State
	Closed() bool
}

var _ AppService = (*app.App)(nil)

type Handlers struct {
	App       AppService
	AuthSvc   authservice.IAuthService
	Logger    zerolog.Logger
	Config    *config.Config
	WsManager *websocket.Manager
}

func New(appSvc AppService, authSvc authservice.IAuthService, logger zerolog.Logger, config *config.Config, wsManager *websocket.Manager) *Handlers {
	return &Handlers{
		App:       appSvc,
		AuthSvc:   authSvc,
		Logger:    logger,
		Config:    config,
		WsManager: wsManager,
	}
}

func (h *Handlers) SetupHandlers(router *gin.Engine) {
	mw := middleware.NewMiddleware(h.AuthSvc, h.Logger)
	mw.SetupMiddleware(router)

	healthHandler := NewHealthHandler(h.App, h.WsManager)
	wsHandler := NewWebSocketHandler(h.App, h.WsManager, h.Logger)
	cameraHandler := NewCameraHandler(h.App, h.Logger)
	paymentHandler := NewPaymentHandler(h.App, h.Logger)
	walletHandler := NewWalletHandler(h.App, h.Logger)
	authHandler := NewAuthHandler(h.App, h.Logger)

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/v1", mw.AuthMiddleware())
	{
		v1.GET("/events", wsHandler.HandleConnection)

		cam := v1.Group("/camera")
		{
			cam.GET("/state", cameraHandler.State)
			cam.POST("/start", cameraHandler.Start)
			cam.POST("/stop", cameraHandler.Stop)
			cam.POST("/visibility", cameraHandler.Visibility)
		}

		scan := v1.Group("/scan")
		{
			scan.POST("/image", paymentHandler.ScanImage)
			scan.POST("/payload", paymentHandler.SubmitPayload)
		}

		payment := v1.Group("/payment")
		{
			payment.GET("/reservation", paymentHandler.Reservation)
			payment.POST("/confirm", paymentHandler.Confirm)
			payment.POST("/cancel", paymentHandler.Cancel)
			payment.POST("/track/:id", paymentHandler.Track)
		}

		wallet := v1.Group("/wallet")
		{
			wallet.GET("/user", walletHandler.User)
			wallet.GET("/transactions", walletHandler.Transactions)
			wallet.GET("/deposit", walletHandler.Deposit)
			wallet.POST("/refresh", walletHandler.RefreshBalance)
			wallet.POST("/withdraw", walletHandler.Withdraw)
			wallet.GET("/rates", walletHandler.Rates)
			wallet.GET("/welcome", walletHandler.Welcome)
		}

		auth := v1.Group("/auth")
		{
			auth.POST("/session", authHandler.GenerateSession)
			auth.POST("/code", authHandler.SubmitCode)
			auth.POST("/logout", authHandler.Logout)
		}
	}
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, domain.ApiResponse{
		Message: message,
		Success: true,
		Status:  http.StatusOK,
		Data:    data,
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, domain.ApiResponse{
		Message: message,
		Success: false,
		Status:  http.StatusBadRequest,
	})
}

// respondError maps a categorized failure onto an HTTP status.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	c.JSON(status, domain.ApiResponse{
		Message: domain.UserMessage(err),
		Success: false,
		Status:  status,
		Data:    gin.H{"kind": domain.KindOf(err)},
	})
}

func statusFor(err error) int {
	if errors.Is(err, app.ErrClosed) {
		return http.StatusServiceUnavailable
	}
	switch domain.KindOf(err) {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindMissingSecurityToken, domain.KindCameraPermissionDenied:
		return http.StatusForbidden
	case domain.KindInvalidInput, domain.KindNoReservation, domain.KindDecodeFailure,
		domain.KindImageLoadFailure, domain.KindFileReadFailure:
		return http.StatusBadRequest
	case domain.KindSubmissionRejected, domain.KindProcessingRejected, domain.KindRequestRejected:
		return http.StatusUnprocessableEntity
	case domain.KindSubmissionTransportFailure, domain.KindProcessingTransportFailure, domain.KindTransportFailure:
		return http.StatusBadGateway
	case domain.KindCameraUnavailable, domain.KindCameraNotFound, domain.KindCameraUnsupported, domain.KindCameraTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
