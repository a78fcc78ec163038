package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tuncanbit/qrpay/internal/domain"
)

// Reply is a canned status code and JSON body.
type Reply struct {
	Status int
	Body   interface{}
}

func OK(body interface{}) Reply {
	return Reply{Status: http.StatusOK, Body: body}
}

// FakeBackend emulates the wallet REST API. Change handlers through
// Configure once the server is in use; every request is counted by route.
type FakeBackend struct {
	Server *httptest.Server

	mu           sync.Mutex
	calls        map[string]int
	csrf         string
	lastProcess  *domain.ProcessRequest
	lastProcessH string
	lastScan     *domain.ScanRequest
	lastWithdraw *domain.WithdrawalRequest

	Scan     func(req domain.ScanRequest) Reply
	Process  func(req domain.ProcessRequest) Reply
	Status   func(id string, call int) Reply
	User     func() Reply
	History  func() Reply
	Deposit  func() Reply
	Refresh  func() Reply
	Withdraw func(req domain.WithdrawalRequest) Reply
	Rates    func() Reply
	Home     func() Reply
	Session  func(kind domain.AuthKind) Reply
	Code     func(kind domain.AuthKind, code string) Reply
}

func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &FakeBackend{
		calls: make(map[string]int),
		csrf:  "csrf-token-1",
	}
	f.setDefaults()

	router := gin.New()
	router.Use(f.countAndCookie)

	api := router.Group("/api")
	{
		api.POST("/payment/scan", f.handleScan)
		api.POST("/payment/process", f.handleProcess)
		api.GET("/payment/status/:id", f.handleStatus)
		api.GET("/user/info", func(c *gin.Context) { f.reply(c, f.snapshot().User()) })
		api.GET("/user/transactions", func(c *gin.Context) { f.reply(c, f.snapshot().History()) })
		api.GET("/wallet/deposit", func(c *gin.Context) { f.reply(c, f.snapshot().Deposit()) })
		api.POST("/wallet/refresh-balance", f.handleRefresh)
		api.POST("/withdrawal/request", f.handleWithdraw)
		api.GET("/exchange/rates", func(c *gin.Context) { f.reply(c, f.snapshot().Rates()) })
		api.GET("/home/text", func(c *gin.Context) { f.reply(c, f.snapshot().Home()) })
		api.POST("/auth/generate-session", f.handleSession)
		api.POST("/auth/register", func(c *gin.Context) { f.handleCode(c, domain.AuthKindRegister) })
		api.POST("/auth/login", func(c *gin.Context) { f.handleCode(c, domain.AuthKindLogin) })
		api.POST("/logout", func(c *gin.Context) {
			c.SetCookie("session", "", -1, "/", "", false, true)
			c.JSON(http.StatusOK, gin.H{"success": true})
		})
	}

	f.Server = httptest.NewServer(router)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeBackend) setDefaults() {
	f.Scan = func(req domain.ScanRequest) Reply {
		return OK(gin.H{"success": true, "amount_rub": 100, "description": "Оплата товара", "qr_data": req.QRCodeData})
	}
	f.Process = func(req domain.ProcessRequest) Reply {
		return OK(gin.H{"success": true, "transaction_id": 1, "frozen_balance": 1.5})
	}
	f.Status = func(id string, call int) Reply {
		return OK(gin.H{"transaction_id": id, "status": "pending"})
	}
	f.User = func() Reply {
		return OK(domain.UserInfo{ID: 1, Username: "tester", FirstName: "Test", BalanceSol: 2, BalanceRub: 22700, WalletAddress: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"})
	}
	f.History = func() Reply {
		return OK(gin.H{"transactions": []domain.Transaction{}})
	}
	f.Deposit = func() Reply {
		return OK(gin.H{"success": true, "currency": "SOL", "address": "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", "currency_name": "Solana"})
	}
	f.Refresh = func() Reply {
		return OK(gin.H{"success": true, "balance_sol": 2, "message": "Баланс обновлен"})
	}
	f.Withdraw = func(req domain.WithdrawalRequest) Reply {
		return OK(gin.H{"success": true, "withdrawal_id": 7, "transaction_id": 8, "amount_sol": req.AmountSol, "wallet_address": req.WalletAddress, "status": "in_progress"})
	}
	f.Rates = func() Reply {
		return OK(gin.H{"SOL": 11350, "commission_markup": 0.1})
	}
	f.Home = func() Reply {
		return OK(gin.H{"success": true, "text": "Привет"})
	}
	f.Session = func(kind domain.AuthKind) Reply {
		return OK(gin.H{"success": true, "session_code": "ABC123", "bot_url": "https://t.me/bot?start=" + string(kind) + "_ABC123"})
	}
	f.Code = func(kind domain.AuthKind, code string) Reply {
		if code != "ABC123" {
			return Reply{Status: http.StatusBadRequest, Body: gin.H{"error": "Invalid or expired code"}}
		}
		return OK(gin.H{"success": true, "user": gin.H{"id": 1, "username": "tester", "first_name": "Test"}})
	}
}

// Configure swaps handlers while the server may be serving requests.
func (f *FakeBackend) Configure(fn func(f *FakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type handlers struct {
	Scan     func(req domain.ScanRequest) Reply
	Process  func(req domain.ProcessRequest) Reply
	Status   func(id string, call int) Reply
	User     func() Reply
	History  func() Reply
	Deposit  func() Reply
	Refresh  func() Reply
	Withdraw func(req domain.WithdrawalRequest) Reply
	Rates    func() Reply
	Home     func() Reply
	Session  func(kind domain.AuthKind) Reply
	Code     func(kind domain.AuthKind, code string) Reply
}

func (f *FakeBackend) snapshot() handlers {
	f.mu.Lock()
	defer f.mu.Unlock()
	return handlers{
		Scan: f.Scan, Process: f.Process, Status: f.Status, User: f.User,
		History: f.History, Deposit: f.Deposit, Refresh: f.Refresh, Withdraw: f.Withdraw,
		Rates: f.Rates, Home: f.Home, Session: f.Session, Code: f.Code,
	}
}

func (f *FakeBackend) URL() string {
	return f.Server.URL
}

// SetCSRF changes the cookie value; empty stops issuing it.
func (f *FakeBackend) SetCSRF(token string) {
	f.mu.Lock()
	f.csrf = token
	f.mu.Unlock()
}

// Calls returns how many times a route (as registered, e.g. "/api/payment/status/:id") was hit.
func (f *FakeBackend) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

func (f *FakeBackend) LastProcess() (*domain.ProcessRequest, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastProcess, f.lastProcessH
}

func (f *FakeBackend) LastScan() *domain.ScanRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastScan
}

func (f *FakeBackend) LastWithdrawal() *domain.WithdrawalRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastWithdraw
}

func (f *FakeBackend) countAndCookie(c *gin.Context) {
	f.mu.Lock()
	f.calls[c.FullPath()]++
	csrf := f.csrf
	f.mu.Unlock()

	if csrf != "" {
		c.SetCookie("X-CSRF-Token", csrf, 3600, "/", "", false, false)
	}
	c.Next()
}

func (f *FakeBackend) reply(c *gin.Context, r Reply) {
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	if raw, ok := r.Body.(string); ok {
		c.Data(status, "text/html", []byte(raw))
		return
	}
	c.JSON(status, r.Body)
}

func (f *FakeBackend) handleScan(c *gin.Context) {
	var req domain.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}
	f.mu.Lock()
	f.lastScan = &req
	f.mu.Unlock()
	f.reply(c, f.snapshot().Scan(req))
}

func (f *FakeBackend) handleProcess(c *gin.Context) {
	f.mu.Lock()
	expected := f.csrf
	f.mu.Unlock()

	header := c.GetHeader("X-CSRF-Token")
	if expected == "" || header != expected {
		c.JSON(http.StatusForbidden, gin.H{"error": "CSRF token missing or invalid"})
		return
	}

	var req domain.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}
	f.mu.Lock()
	f.lastProcess = &req
	f.lastProcessH = header
	f.mu.Unlock()
	f.reply(c, f.snapshot().Process(req))
}

func (f *FakeBackend) handleStatus(c *gin.Context) {
	f.mu.Lock()
	call := f.calls[c.FullPath()]
	f.mu.Unlock()
	f.reply(c, f.snapshot().Status(c.Param("id"), call))
}

func (f *FakeBackend) handleRefresh(c *gin.Context) {
	f.mu.Lock()
	expected := f.csrf
	f.mu.Unlock()
	if c.GetHeader("X-CSRF-Token") != expected {
		c.JSON(http.StatusForbidden, gin.H{"error": "CSRF token missing or invalid"})
		return
	}
	f.reply(c, f.snapshot().Refresh())
}

func (f *FakeBackend) handleWithdraw(c *gin.Context) {
	var req domain.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}
	f.mu.Lock()
	f.lastWithdraw = &req
	f.mu.Unlock()
	f.reply(c, f.snapshot().Withdraw(req))
}

func (f *FakeBackend) handleSession(c *gin.Context) {
	var req domain.GenerateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid type"})
		return
	}
	f.reply(c, f.snapshot().Session(req.Type))
}

func (f *FakeBackend) handleCode(c *gin.Context, kind domain.AuthKind) {
	var req domain.CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code is required"})
		return
	}
	f.reply(c, f.snapshot().Code(kind, req.Code))
}
