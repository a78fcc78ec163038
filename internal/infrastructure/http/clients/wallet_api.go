package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/domain/interfaces"
	"github.com/tuncanbit/qrpay/pkg/config"
)

// CSRFCookie is the cookie the backend issues for state-changing calls; its
// value is echoed in the header of the same name.
const CSRFCookie = "X-CSRF-Token"

type walletAPIClient struct {
	http    *resty.Client
	cookies *cookieStore
	logger  zerolog.Logger
}

func NewWalletAPIClient(cfg config.APIConfig, logger zerolog.Logger) (interfaces.WalletAPI, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}

	cookies, err := newCookieStore(base, cfg.CookieFile)
	if err != nil {
		return nil, err
	}

	logger = logger.With().Str("component", "wallet_api_client").Logger()

	client := resty.New().
		SetBaseURL(base.String()).
		SetTimeout(cfg.Timeout).
		SetCookieJar(cookies.jar).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryDelay).
		SetRetryMaxWaitTime(cfg.RetryDelay * 4).
		AddRetryCondition(retryIdempotent).
		AddRetryHook(func(r *resty.Response, err error) {
			if r == nil || r.Request == nil {
				return
			}
			ev := logger.Warn().Int("attempt", r.Request.Attempt).Str("url", r.Request.URL)
			if err != nil {
				ev = ev.Err(err)
			} else {
				ev = ev.Int("status", r.StatusCode())
			}
			ev.Msg("Wallet API request failed, retrying")
		})
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &walletAPIClient{
		http:    client,
		cookies: cookies,
		logger:  logger,
	}, nil
}

// retryIdempotent retries GETs on transport errors, 429 and 5xx. POSTs are
// never replayed.
func retryIdempotent(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return true
	}
	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
}

func (c *walletAPIClient) ScanPayment(ctx context.Context, req *domain.ScanRequest) (*domain.ScanResponse, error) {
	var resp domain.ScanResponse
	if _, err := c.makeRequest(ctx, http.MethodPost, "/api/payment/scan", req, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to submit scanned payload: %w", err)
	}
	return &resp, nil
}

func (c *walletAPIClient) ProcessPayment(ctx context.Context, req *domain.ProcessRequest, csrfToken string) (*domain.ProcessResponse, error) {
	var resp domain.ProcessResponse
	headers := map[string]string{CSRFCookie: csrfToken}
	if _, err := c.makeRequest(ctx, http.MethodPost, "/api/payment/process", req, headers, &resp); err != nil {
		return nil, fmt.Errorf("failed to process payment: %w", err)
	}
	return &resp, nil
}

func (c *walletAPIClient) PaymentStatus(ctx context.Context, id domain.TxID) (*domain.StatusResponse, error) {
	endpoint := fmt.Sprintf("/api/payment/status/%s", url.PathEscape(id.String()))

	var resp domain.StatusResponse
	status, err := c.makeRequest(ctx, http.MethodGet, endpoint, nil, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment status for %s: %w", id, err)
	}
	if status >= http.StatusBadRequest {
		return nil, rejected(status, resp.Error)
	}
	return &resp, nil
}

func (c *walletAPIClient) UserInfo(ctx context.Context) (*domain.UserInfo, error) {
	var body struct {
		domain.UserInfo
		Error string `json:"error"`
	}
	status, err := c.makeRequest(ctx, http.MethodGet, "/api/user/info", nil, nil, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	if status >= http.StatusBadRequest {
		return nil, rejected(status, body.Error)
	}
	return &body.UserInfo, nil
}

func (c *walletAPIClient) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	var resp domain.TransactionsResponse
	status, err := c.makeRequest(ctx, http.MethodGet, "/api/user/transactions", nil, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if status >= http.StatusBadRequest {
		return nil, rejected(status, resp.Error)
	}
	return resp.Transactions, nil
}

func (c *walletAPIClient) DepositAddress(ctx context.Context) (*domain.DepositAddress, error) {
	var resp domain.DepositAddress
	status, err := c.makeRequest(ctx, http.MethodGet, "/api/wallet/deposit", nil, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit address: %w", err)
	}
	if status >= http.StatusBadRequest || !resp.Success {
		return nil, rejected(status, resp.Error)
	}
	return &resp, nil
}

func (c *walletAPIClient) RefreshBalance(ctx context.Context, csrfToken string) (*domain.RefreshBalanceResponse, error) {
	var resp domain.RefreshBalanceResponse
	headers := map[string]string{CSRFCookie: csrfToken}
	if _, err := c.makeRequest(ctx, http.MethodPost, "/api/wallet/refresh-balance", struct{}{}, headers, &resp); err != nil {
		return nil, fmt.Errorf("failed to refresh balance: %w", err)
	}
	return &resp, nil
}

func (c *walletAPIClient) RequestWithdrawal(ctx context.Context, req *domain.WithdrawalRequest) (*domain.WithdrawalResult, error) {
	var resp domain.WithdrawalResult
	if _, err := c.makeRequest(ctx, http.MethodPost, "/api/withdrawal/request", req, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to request withdrawal: %w", err)
	}
	return &resp, nil
}

func (c *walletAPIClient) ExchangeRates(ctx context.Context) (*domain.ExchangeRates, error) {
	var resp domain.ExchangeRates
	status, err := c.makeRequest(ctx, http.MethodGet, "/api/exchange/rates", nil, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange rates: %w", err)
	}
	if status >= http.StatusBadRequest {
		return nil, rejected(status, "")
	}
	return &resp, nil
}

func (c *walletAPIClient) HomeText(ctx context.Context) (*domain.HomeText, error) {
	var resp domain.HomeText
	status, err := c.makeRequest(ctx, http.MethodGet, "/api/home/text", nil, nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to get home text: %w", err)
	}
	if status >= http.StatusBadRequest {
		return nil, rejected(status, "")
	}
	return &resp, nil
}

func (c *walletAPIClient) GenerateSession(ctx context.Context, kind domain.AuthKind) (*domain.AuthSession, error) {
	var resp domain.AuthSession
	if _, err := c.makeRequest(ctx, http.MethodPost, "/api/auth/generate-session", &domain.GenerateSessionRequest{Type: kind}, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to generate %s session: %w", kind, err)
	}
	return &resp, nil
}

func (c *walletAPIClient) SubmitCode(ctx context.Context, kind domain.AuthKind, code string) (*domain.CodeResponse, error) {
	endpoint := "/api/auth/login"
	if kind == domain.AuthKindRegister {
		endpoint = "/api/auth/register"
	}

	var resp domain.CodeResponse
	if _, err := c.makeRequest(ctx, http.MethodPost, endpoint, &domain.CodeRequest{Code: code}, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to submit %s code: %w", kind, err)
	}
	return &resp, nil
}

func (c *walletAPIClient) Logout(ctx context.Context) error {
	var resp domain.SuccessBody
	_, err := c.makeRequest(ctx, http.MethodPost, "/api/logout", struct{}{}, nil, &resp)
	if clearErr := c.cookies.clear(); clearErr != nil {
		c.logger.Warn().Err(clearErr).Msg("Failed to clear stored cookies")
	}
	if err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

func (c *walletAPIClient) CSRFToken() string {
	return c.cookies.value(CSRFCookie)
}

// makeRequest executes one call and decodes the JSON body into out whatever
// the status. It returns the HTTP status; 401 is reported as ErrUnauthorized.
func (c *walletAPIClient) makeRequest(ctx context.Context, method, endpoint string, body interface{}, headers map[string]string, out interface{}) (int, error) {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	for k, v := range headers {
		req.SetHeader(k, v)
	}

	resp, err := req.Execute(method, endpoint)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("endpoint", endpoint).Msg("Wallet API request failed")
		return 0, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	if err := c.cookies.save(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist cookies")
	}

	status := resp.StatusCode()
	c.logger.Debug().Str("method", method).Str("endpoint", endpoint).Int("status", status).Dur("latency", resp.Time()).Msg("Wallet API response")

	if status == http.StatusUnauthorized {
		return status, domain.ErrUnauthorized
	}

	raw := resp.Body()
	if out != nil {
		if len(raw) == 0 {
			return status, fmt.Errorf("%w: empty body (status %d)", domain.ErrMalformedResponse, status)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			c.logger.Error().Err(err).Int("status", status).Str("endpoint", endpoint).Msg("Failed to unmarshal wallet API response")
			return status, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}
	}

	return status, nil
}

func rejected(status int, message string) error {
	return domain.NewError(domain.KindRequestRejected, message, fmt.Errorf("client error (status %d)", status))
}
