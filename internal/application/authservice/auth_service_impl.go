package authservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/application/appstate"
	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/internal/domain/interfaces"
	"github.com/tuncanbit/qrpay/pkg/config"
)

const (
	tokenIssuer = "qrpay"

	MsgInvalidAuthKind = "Неизвестный тип авторизации"
	MsgInvalidCode     = "Введите 6-значный код из бота"
)

type AuthService struct {
	config *config.Config
	api    interfaces.WalletAPI
	state  *appstate.State
	logger zerolog.Logger
	now    func() time.Time
}

func NewAuthService(config *config.Config, api interfaces.WalletAPI, state *appstate.State, logger zerolog.Logger) *AuthService {
	return &AuthService{
		config: config,
		api:    api,
		state:  state,
		logger: logger.With().Str("component", "auth_service").Logger(),
		now:    time.Now,
	}
}

func (s *AuthService) GenerateSession(ctx context.Context, kind domain.AuthKind) (*domain.AuthSession, error) {
	if !kind.Valid() {
		return nil, domain.NewError(domain.KindInvalidInput, MsgInvalidAuthKind, fmt.Errorf("auth kind %q", kind))
	}

	session, err := s.api.GenerateSession(ctx, kind)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("Failed to generate auth session")
		return nil, domain.NewError(domain.KindTransportFailure, domain.MsgConnectionFailed, err)
	}
	if !session.Success {
		message := session.Error
		if message == "" {
			message = domain.MsgUnknownError
		}
		return nil, domain.NewError(domain.KindRequestRejected, message, nil)
	}

	s.logger.Info().Str("kind", string(kind)).Str("session_code", session.SessionCode).Msg("Auth session generated")
	return session, nil
}

// NormalizeCode trims and upper-cases a code and checks its length.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if utf8.RuneCountInString(code) != domain.AuthCodeLength {
		return "", domain.NewError(domain.KindInvalidInput, MsgInvalidCode, nil)
	}
	return code, nil
}

func (s *AuthService) SubmitCode(ctx context.Context, kind domain.AuthKind, code string) (*domain.AuthUser, error) {
	if !kind.Valid() {
		return nil, domain.NewError(domain.KindInvalidInput, MsgInvalidAuthKind, fmt.Errorf("auth kind %q", kind))
	}
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	resp, err := s.api.SubmitCode(ctx, kind, code)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("Failed to submit auth code")
		return nil, domain.NewError(domain.KindTransportFailure, domain.MsgConnectionFailed, err)
	}
	if !resp.Success || resp.User == nil {
		message := resp.Error
		if message == "" {
			message = domain.MsgUnknownError
		}
		s.logger.Warn().Str("kind", string(kind)).Str("reason", message).Msg("Auth code rejected")
		return nil, domain.NewError(domain.KindRequestRejected, message, nil)
	}

	s.logger.Info().Str("kind", string(kind)).Int64("user_id", resp.User.ID).Msg("Authenticated")
	return resp.User, nil
}

// Logout always forgets local state, even when the backend call fails.
func (s *AuthService) Logout(ctx context.Context) error {
	err := s.api.Logout(ctx)
	s.state.Reset()
	if err != nil {
		s.logger.Warn().Err(err).Msg("Backend logout failed, local session cleared anyway")
		return domain.NewError(domain.KindTransportFailure, domain.MsgConnectionFailed, err)
	}
	s.logger.Info().Msg("Logged out")
	return nil
}

func (s *AuthService) GenerateUIToken(ctx context.Context, clientID uuid.UUID, username string) (string, error) {
	jwtSecret := s.config.JWT.Secret
	if jwtSecret == "" {
		s.logger.Error().Msg("JWT secret not configured")
		return "", fmt.Errorf("JWT secret not configured")
	}

	ttl := s.config.JWT.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	now := s.now()
	claim := &domain.Claim{
		ClientID: clientID,
		Username: username,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    tokenIssuer,
			Subject:   clientID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claim)
	tokenString, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		s.logger.Error().Err(err).Str("client_id", clientID.String()).Msg("Failed to sign token")
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*domain.Claim, error) {
	jwtSecret := s.config.JWT.Secret
	if jwtSecret == "" {
		s.logger.Error().Msg("JWT secret not configured")
		return nil, fmt.Errorf("JWT secret not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &domain.Claim{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to parse token")
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*domain.Claim)
	if !ok {
		s.logger.Error().Msg("Invalid claims format")
		return nil, errors.New("invalid claims format")
	}

	if claims.ExpiresAt < s.now().Unix() {
		return nil, errors.New("token expired")
	}

	if claims.Issuer != tokenIssuer {
		s.logger.Warn().Str("issuer", claims.Issuer).Msg("Invalid issuer")
		return nil, errors.New("invalid issuer")
	}

	return claims, nil
}
