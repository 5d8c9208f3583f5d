package services

import (
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"reliefboard/internal/models"
	"reliefboard/internal/utils"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthService signs dashboard users in against the configured accounts.
type AuthService interface {
	Login(email, password string) (models.Session, error)
	ParseToken(token string) (*utils.Claims, error)
}

type authService struct {
	accounts map[string]models.Account
	tokens   *utils.TokenIssuer
	logger   *zap.Logger
}

func NewAuthService(accounts []models.Account, tokens *utils.TokenIssuer, logger *zap.Logger) AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	byEmail := make(map[string]models.Account, len(accounts))
	for _, a := range accounts {
		byEmail[normalizeEmail(a.Email)] = a
	}
	return &authService{accounts: byEmail, tokens: tokens, logger: logger}
}

func (s *authService) Login(email, password string) (models.Session, error) {
	email = normalizeEmail(email)
	acc, ok := s.accounts[email]
	if !ok {
		s.logger.Info("[auth][login][deny] unknown email", zap.String("email", email))
		return models.Session{}, ErrInvalidCredentials
	}
	ph := strings.TrimSpace(acc.PasswordHash)
	if ph == "" {
		s.logger.Warn("[auth][login][deny] empty password_hash", zap.String("email", email))
		return models.Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(ph), []byte(strings.TrimSpace(password))); err != nil {
		s.logger.Info("[auth][login][deny] bcrypt mismatch", zap.String("email", email))
		return models.Session{}, ErrInvalidCredentials
	}

	tok, exp, err := s.tokens.Issue(acc.Email, acc.Name, acc.RoleID)
	if err != nil {
		return models.Session{}, err
	}
	s.logger.Info("[auth][login][ok]", zap.String("email", email), zap.Int("role_id", acc.RoleID))
	return models.Session{
		Email:       acc.Email,
		Name:        acc.Name,
		RoleID:      acc.RoleID,
		AccessToken: tok,
		ExpiresAt:   exp,
	}, nil
}

func (s *authService) ParseToken(token string) (*utils.Claims, error) {
	return s.tokens.Parse(token)
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// HashPassword is what operators run to produce an account's password_hash.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
