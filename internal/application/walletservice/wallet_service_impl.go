package walletservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/application/appstate"
	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/domain/interfaces"
)

// Solana public keys are 32 bytes once base58-decoded.
const solanaAddressLength = 32

const (
	MsgAmountNotPositive   = "Сумма должна быть больше нуля"
	MsgInsufficientBalance = "Недостаточно средств"
	MsgAddressRequired     = "Адрес кошелька обязателен"
	MsgInvalidAddress      = "Неверный адрес кошелька Solana"
	MsgBalanceRefreshed    = "Баланс обновлен"
)

type WalletService struct {
	api    interfaces.WalletAPI
	state  *appstate.State
	logger zerolog.Logger
}

func NewWalletService(api interfaces.WalletAPI, state *appstate.State, logger zerolog.Logger) *WalletService {
	return &WalletService{
		api:    api,
		state:  state,
		logger: logger.With().Str("component", "wallet_service").Logger(),
	}
}

func (s *WalletService) LoadUser(ctx context.Context) (*domain.UserInfo, error) {
	user, err := s.api.UserInfo(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			s.logger.Info().Msg("Session is not authenticated, clearing local state")
			s.state.Reset()
		} else {
			s.logger.Error().Err(err).Msg("Failed to load user info")
		}
		return nil, classify(err)
	}

	s.state.SetUser(user)
	s.logger.Debug().Int64("user_id", user.ID).Float64("balance_sol", user.BalanceSol).Msg("User info loaded")
	return user, nil
}

func (s *WalletService) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	txs, err := s.api.Transactions(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load transactions")
		return nil, classify(err)
	}
	return txs, nil
}

func (s *WalletService) DepositAddress(ctx context.Context) (*domain.DepositAddress, error) {
	addr, err := s.api.DepositAddress(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load deposit address")
		return nil, classify(err)
	}
	return addr, nil
}

func (s *WalletService) RefreshBalance(ctx context.Context) (*domain.RefreshBalanceResponse, error) {
	token := s.api.CSRFToken()
	if token == "" {
		s.logger.Error().Msg("CSRF token cookie missing, refusing to refresh balance")
		return nil, domain.NewError(domain.KindMissingSecurityToken, domain.MsgSecurityError, nil)
	}

	resp, err := s.api.RefreshBalance(ctx, token)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to refresh balance")
		return nil, classify(err)
	}
	if !resp.Success {
		return nil, domain.NewError(domain.KindRequestRejected, fallback(resp.Error), nil)
	}
	if resp.Message == "" {
		resp.Message = MsgBalanceRefreshed
	}

	s.state.SetSolBalance(resp.BalanceSol)
	if _, err := s.LoadUser(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Balance refreshed but user reload failed")
	}
	return resp, nil
}

// ValidateWithdrawal applies the local checks RequestWithdrawal runs before
// calling the backend.
func (s *WalletService) ValidateWithdrawal(amountSol float64, address string) error {
	if amountSol <= 0 {
		return domain.NewError(domain.KindInvalidInput, MsgAmountNotPositive, nil)
	}
	if amountSol > s.state.Balance().SolBalance {
		return domain.NewError(domain.KindInvalidInput, MsgInsufficientBalance, nil)
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.NewError(domain.KindInvalidInput, MsgAddressRequired, nil)
	}
	raw, err := base58.Decode(address)
	if err != nil {
		return domain.NewError(domain.KindInvalidInput, MsgInvalidAddress, err)
	}
	if len(raw) != solanaAddressLength {
		return domain.NewError(domain.KindInvalidInput, MsgInvalidAddress, fmt.Errorf("decoded address is %d bytes", len(raw)))
	}
	return nil
}

func (s *WalletService) RequestWithdrawal(ctx context.Context, amountSol float64, address string) (*domain.WithdrawalResult, error) {
	if err := s.ValidateWithdrawal(amountSol, address); err != nil {
		s.logger.Warn().Err(err).Float64("amount_sol", amountSol).Msg("Withdrawal rejected locally")
		return nil, err
	}

	result, err := s.api.RequestWithdrawal(ctx, &domain.WithdrawalRequest{
		AmountSol:     amountSol,
		WalletAddress: strings.TrimSpace(address),
	})
	if err != nil {
		s.logger.Error().Err(err).Float64("amount_sol", amountSol).Msg("Failed to request withdrawal")
		return nil, classify(err)
	}
	if !result.Success {
		s.logger.Warn().Str("reason", result.Error).Msg("Withdrawal rejected by server")
		return nil, domain.NewError(domain.KindRequestRejected, fallback(result.Error), nil)
	}

	s.logger.Info().Str("withdrawal_id", result.WithdrawalID.String()).Float64("amount_sol", result.AmountSol).Msg("Withdrawal requested")
	if _, err := s.LoadUser(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Withdrawal accepted but user reload failed")
	}
	return result, nil
}

func (s *WalletService) ExchangeRates(ctx context.Context) (*domain.ExchangeRates, error) {
	rates, err := s.api.ExchangeRates(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load exchange rates")
		return nil, classify(err)
	}
	return rates, nil
}

func (s *WalletService) WelcomeText(ctx context.Context) string {
	text, err := s.api.HomeText(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load home text, using default")
		return domain.DefaultWelcomeText
	}
	if !text.Success || strings.TrimSpace(text.Text) == "" {
		return domain.DefaultWelcomeText
	}
	return text.Text
}

// classify maps REST client errors onto the user-facing taxonomy.
func classify(err error) error {
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, domain.ErrUnauthorized):
		return domain.NewError(domain.KindUnauthenticated, "", err)
	default:
		return domain.NewError(domain.KindTransportFailure, domain.MsgConnectionFailed, err)
	}
}

func fallback(message string) string {
	if message == "" {
		return domain.MsgUnknownError
	}
	return message
}
