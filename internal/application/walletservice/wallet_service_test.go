package walletservice

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuncanbit/qrpay/internal/application/appstate"
	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/infrastructure/http/clients"
	"github.com/tuncanbit/qrpay/internal/testutil"
	"github.com/tuncanbit/qrpay/pkg/config"
)

const solanaAddress = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func newService(t *testing.T) (*WalletService, *testutil.FakeBackend, *appstate.State) {
	t.Helper()
	backend := testutil.NewFakeBackend(t)
	api, err := clients.NewWalletAPIClient(config.APIConfig{BaseURL: backend.URL(), Timeout: 2 * time.Second}, zerolog.Nop())
	require.NoError(t, err)
	state := appstate.New()
	return NewWalletService(api, state, zerolog.Nop()), backend, state
}

func TestWalletService_LoadUser(t *testing.T) {
	service, _, state := newService(t)

	user, err := service.LoadUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tester", user.Username)
	assert.Equal(t, 2.0, state.Balance().SolBalance)
	assert.Equal(t, 22700.0, state.Balance().RubBalance)
}

func TestWalletService_LoadUserUnauthorizedResetsState(t *testing.T) {
	service, backend, state := newService(t)
	state.SetUser(&domain.UserInfo{ID: 9, BalanceSol: 4})
	state.SetReservation(&domain.Reservation{AmountRub: 10})
	backend.User = func() testutil.Reply {
		return testutil.Reply{Status: http.StatusUnauthorized, Body: gin.H{"error": "Требуется авторизация"}}
	}

	_, err := service.LoadUser(context.Background())
	assert.Equal(t, domain.KindUnauthenticated, domain.KindOf(err))
	assert.Nil(t, state.User())
	assert.Nil(t, state.Reservation())
	assert.Zero(t, state.Balance().SolBalance)
}

func TestWalletService_Transactions(t *testing.T) {
	service, backend, _ := newService(t)
	backend.History = func() testutil.Reply {
		return testutil.OK(gin.H{"transactions": []gin.H{
			{"id": 3, "transaction_type": "payment", "amount": -0.0088, "currency": "SOL", "amount_rub": 100, "status": "completed", "created_at": "01.02.2025 10:00:00"},
			{"id": 2, "transaction_type": "deposit", "amount": 1, "currency": "SOL", "status": "completed", "created_at": "Неизвестно"},
		}})
	}

	txs, err := service.Transactions(context.Background())
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.TxID("3"), txs[0].ID)
	assert.Equal(t, domain.TransactionTypePayment, txs[0].TransactionType)

	ts, ok := txs[0].CreatedTime()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC), ts)

	_, ok = txs[1].CreatedTime()
	assert.False(t, ok)
}

func TestWalletService_DepositAddress(t *testing.T) {
	service, backend, _ := newService(t)

	addr, err := service.DepositAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, solanaAddress, addr.Address)
	assert.Equal(t, "Solana", addr.CurrencyName)

	backend.Configure(func(f *testutil.FakeBackend) {
		f.Deposit = func() testutil.Reply {
			return testutil.Reply{Status: http.StatusNotFound, Body: gin.H{"error": "Кошелек не найден"}}
		}
	})
	_, err = service.DepositAddress(context.Background())
	assert.Equal(t, domain.KindRequestRejected, domain.KindOf(err))
	assert.Equal(t, "Кошелек не найден", domain.UserMessage(err))
}

func TestWalletService_RefreshBalance(t *testing.T) {
	service, backend, state := newService(t)
	backend.Refresh = func() testutil.Reply {
		return testutil.OK(gin.H{"success": true, "balance_sol": 3.5})
	}
	backend.User = func() testutil.Reply {
		return testutil.OK(domain.UserInfo{ID: 1, Username: "tester", BalanceSol: 3.5, BalanceRub: 39725})
	}

	// first request picks up the CSRF cookie
	_, err := service.LoadUser(context.Background())
	require.NoError(t, err)

	resp, err := service.RefreshBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MsgBalanceRefreshed, resp.Message)
	assert.Equal(t, 3.5, state.Balance().SolBalance)
	assert.Equal(t, 39725.0, state.Balance().RubBalance)
	assert.Equal(t, 2, backend.Calls("/api/user/info"))
}

func TestWalletService_RefreshBalanceWithoutCSRF(t *testing.T) {
	service, backend, _ := newService(t)
	backend.SetCSRF("")

	_, err := service.RefreshBalance(context.Background())
	assert.Equal(t, domain.KindMissingSecurityToken, domain.KindOf(err))
	assert.Equal(t, 0, backend.Calls("/api/wallet/refresh-balance"))
}

func TestWalletService_ValidateWithdrawal(t *testing.T) {
	service, _, state := newService(t)
	state.SetUser(&domain.UserInfo{BalanceSol: 1})

	tests := []struct {
		name    string
		amount  float64
		address string
		message string
	}{
		{name: "valid", amount: 0.5, address: solanaAddress},
		{name: "whole balance", amount: 1, address: " " + solanaAddress + " "},
		{name: "zero", amount: 0, address: solanaAddress, message: MsgAmountNotPositive},
		{name: "negative", amount: -1, address: solanaAddress, message: MsgAmountNotPositive},
		{name: "over balance", amount: 1.01, address: solanaAddress, message: MsgInsufficientBalance},
		{name: "empty address", amount: 0.5, address: "", message: MsgAddressRequired},
		{name: "not base58", amount: 0.5, address: "0OIl0OIl", message: MsgInvalidAddress},
		{name: "too short", amount: 0.5, address: "3mJr7AoUXx2Wqd", message: MsgInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.ValidateWithdrawal(tt.amount, tt.address)
			if tt.message == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
			assert.Equal(t, tt.message, domain.UserMessage(err))
		})
	}
}

func TestWalletService_RequestWithdrawal(t *testing.T) {
	service, backend, _ := newService(t)
	_, err := service.LoadUser(context.Background())
	require.NoError(t, err)

	_, err = service.RequestWithdrawal(context.Background(), 5, solanaAddress)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
	assert.Nil(t, backend.LastWithdrawal())

	result, err := service.RequestWithdrawal(context.Background(), 0.25, solanaAddress)
	require.NoError(t, err)
	assert.Equal(t, domain.TxID("7"), result.WithdrawalID)
	assert.Equal(t, 0.25, backend.LastWithdrawal().AmountSol)
	assert.Equal(t, solanaAddress, backend.LastWithdrawal().WalletAddress)
	assert.Equal(t, 2, backend.Calls("/api/user/info"))
}

func TestWalletService_RequestWithdrawalRejected(t *testing.T) {
	service, backend, _ := newService(t)
	backend.Withdraw = func(domain.WithdrawalRequest) testutil.Reply {
		return testutil.Reply{Status: http.StatusBadRequest, Body: gin.H{"error": "Недостаточно SOL на кошельке"}}
	}
	_, err := service.LoadUser(context.Background())
	require.NoError(t, err)

	_, err = service.RequestWithdrawal(context.Background(), 0.25, solanaAddress)
	assert.Equal(t, domain.KindRequestRejected, domain.KindOf(err))
	assert.Equal(t, "Недостаточно SOL на кошельке", domain.UserMessage(err))
}

func TestWalletService_ExchangeRates(t *testing.T) {
	service, _, _ := newService(t)

	rates, err := service.ExchangeRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11350.0, rates.SOL)
	assert.Equal(t, 0.1, rates.CommissionMarkup)
}

func TestWalletService_WelcomeText(t *testing.T) {
	service, backend, _ := newService(t)
	assert.Equal(t, "Привет", service.WelcomeText(context.Background()))

	backend.Configure(func(f *testutil.FakeBackend) {
		f.Home = func() testutil.Reply { return testutil.OK(gin.H{"success": false}) }
	})
	assert.Equal(t, domain.DefaultWelcomeText, service.WelcomeText(context.Background()))

	backend.Server.Close()
	assert.Equal(t, domain.DefaultWelcomeText, service.WelcomeText(context.Background()))
}
