package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuncanbit/qrpay/internal/application/app"
	"github.com/tuncanbit/qrpay/internal/application/appstate"
	"github.com/tuncanbit/qrpay/internal/application/authservice"
	"github.com/tuncanbit/qrpay/internal/application/paymentservice"
	"github.com/tuncanbit/qrpay/internal/application/walletservice"
	"github.com/tuncanbit/qrpay/internal/camera"
	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/infrastructure/http/clients"
	"github.com/tuncanbit/qrpay/internal/scanner"
	"github.com/tuncanbit/qrpay/internal/server/websocket"
	"github.com/tuncanbit/qrpay/internal/testutil"
	"github.com/tuncanbit/qrpay/pkg/config"
	"github.com/tuncanbit/qrpay/pkg/currency"
)

const payload = "ST00012|Name=Shop|Sum=10000"

type testServer struct {
	backend *testutil.FakeBackend
	router  *gin.Engine
	app     *app.App
	ws      *websocket.Manager
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	backend := testutil.NewFakeBackend(t)
	cfg.API.BaseURL = backend.URL()
	cfg.API.MaxRetries = 0
	cfg.JWT.Secret = "handler-secret"
	cfg.WebSocket.PingPeriod = time.Second

	api, err := clients.NewWalletAPIClient(cfg.API, zerolog.Nop())
	require.NoError(t, err)

	sched := testutil.NewManualScheduler()
	state := appstate.New()
	decoder := scanner.NewZXingDecoder(zerolog.Nop())
	session := scanner.NewSession(&camera.SimulatedDevice{Payload: payload}, camera.NewVideoSink(), decoder, sched, scanner.OptionsFromConfig(cfg.Scanner), zerolog.Nop())
	poller := paymentservice.NewStatusPoller(api, sched, paymentservice.PollerOptions{Interval: time.Second, Deadline: 180 * time.Second}, zerolog.Nop())
	auth := authservice.NewAuthService(cfg, api, state, zerolog.Nop())

	a := app.New(app.Deps{
		Session:  session,
		Files:    scanner.NewImageFileScanner(decoder, zerolog.Nop()),
		Payments: paymentservice.NewPaymentService(api, state, &testutil.MemoryJournal{}, poller, currency.NewConverter(11350, 10), zerolog.Nop()),
		Wallet:   walletservice.NewWalletService(api, state, zerolog.Nop()),
		Auth:     auth,
		State:    state,
		Sched:    sched,
	}, app.Options{}, zerolog.Nop())
	t.Cleanup(a.Shutdown)

	ws := websocket.NewManager(cfg.WebSocket, zerolog.Nop())
	t.Cleanup(ws.Close)
	a.Subscribe(ws)

	router := gin.New()
	New(a, auth, zerolog.Nop(), cfg, ws).SetupHandlers(router)

	token, err := auth.GenerateUIToken(context.Background(), uuid.New(), "tester")
	require.NoError(t, err)

	return &testServer{backend: backend, router: router, app: a, ws: ws, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, domain.ApiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, domain.ApiResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp domain.ApiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"service":"qrpay"`)
	assert.Contains(t, rec.Body.String(), `"scanner":"idle"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	s.app.Shutdown()
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing"},
		{name: "wrong scheme", header: "Token abc"},
		{name: "bad token", header: "Bearer abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/camera/state", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec, resp := s.serve(t, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, resp.Success)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/camera/state?token="+s.token, nil)
	rec, resp := s.serve(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", resp.Data.(map[string]interface{})["state"])
}

func TestPaymentFlow(t *testing.T) {
	s := newTestServer(t)

	rec, resp := s.do(t, http.MethodPost, "/v1/payment/confirm", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_reservation", resp.Data.(map[string]interface{})["kind"])

	rec, resp = s.do(t, http.MethodPost, "/v1/scan/payload", gin.H{"payload": payload})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100.0, resp.Data.(map[string]interface{})["amount_rub"])

	rec, _ = s.do(t, http.MethodGet, "/v1/payment/reservation", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = s.do(t, http.MethodPost, "/v1/payment/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, resp.Data.(map[string]interface{})["transaction_id"])

	rec, _ = s.do(t, http.MethodGet, "/v1/payment/reservation", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmissionRejectedMapsTo422(t *testing.T) {
	s := newTestServer(t)
	s.backend.Scan = func(domain.ScanRequest) testutil.Reply {
		return testutil.Reply{Status: http.StatusBadRequest, Body: gin.H{"error": "limit exceeded"}}
	}

	rec, resp := s.do(t, http.MethodPost, "/v1/scan/payload", gin.H{"payload": payload})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "limit exceeded", resp.Message)
}

func TestScanImageUpload(t *testing.T) {
	s := newTestServer(t)

	frame, err := camera.QRFrame(payload, 400, 400)
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "qr.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, frame))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/scan/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec, resp := s.serve(t, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.MsgQRRecognized, resp.Message)
	assert.Equal(t, payload, s.backend.LastScan().QRCodeData)
}

func TestScanImageMissingFile(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodPost, "/v1/scan/image", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWithdrawValidation(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodGet, "/v1/wallet/user", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := s.do(t, http.MethodPost, "/v1/wallet/withdraw", gin.H{"amount_sol": 0, "wallet_address": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, walletservice.MsgAmountNotPositive, resp.Message)
	assert.Nil(t, s.backend.LastWithdrawal())
}

func TestUnauthenticatedBackendMapsTo401(t *testing.T) {
	s := newTestServer(t)
	s.backend.User = func() testutil.Reply {
		return testutil.Reply{Status: http.StatusUnauthorized, Body: gin.H{"error": "Требуется авторизация"}}
	}
	rec, resp := s.do(t, http.MethodGet, "/v1/wallet/user", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", resp.Data.(map[string]interface{})["kind"])
}

func TestEventsWebSocket(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/events?token=" + s.token
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var snapshot domain.Event
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, domain.EventScannerState, snapshot.Type)
	assert.Equal(t, "idle", snapshot.State)
	assert.Equal(t, 1, s.ws.GetClientCount())

	_, err = s.app.SubmitPayload(context.Background(), payload)
	require.NoError(t, err)

	var first domain.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, domain.EventDecoded, first.Type)
	assert.Equal(t, payload, first.Payload)

	var second domain.Event
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, domain.EventReservation, second.Type)
	assert.Equal(t, 100.0, second.Reservation.AmountRub)
}
