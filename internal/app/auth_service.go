package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"community_activity_backend/internal/domain/account"
	"community_activity_backend/internal/domain/attendance"
	"community_activity_backend/internal/domain/channel"
	idb "community_activity_backend/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = fmt.Errorf("an account with this email already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid email or password")
	ErrAccountDisabled    = fmt.Errorf("account is disabled")
	ErrAccountNotVerified = fmt.Errorf("account email is not verified")
	ErrInvalidVerifyToken = fmt.Errorf("invalid or expired verification token")
	ErrWeakPassword       = fmt.Errorf("password must be at least 8 characters")
)

const verificationEmailTimeout = 30 * time.Second

// AuthService handles registration, login and email verification.
type AuthService struct {
	accountRepo account.Repository
	email       channel.EmailSender
	logger      *logrus.Logger
	baseURL     string // used in the verification link
}

func NewAuthService(ar account.Repository, email channel.EmailSender, logger *logrus.Logger, baseURL string) *AuthService {
	return &AuthService{
		accountRepo: ar,
		email:       email,
		logger:      logger,
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

// Register creates a new account and queues a best-effort verification
// email. The account stays unverified until the token comes back.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*account.Account, error) {
	username = strings.TrimSpace(username)
	email = attendance.NormalizeEmail(email)
	if username == "" || email == "" {
		return nil, fmt.Errorf("username and email are required")
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	acct := &account.Account{
		Username:          username,
		Email:             email,
		PasswordHash:      string(hash),
		Role:              account.RoleUser,
		IsActive:          true,
		VerificationToken: sql.NullString{String: uuid.NewString(), Valid: true},
	}
	if err := s.accountRepo.Create(ctx, acct); err != nil {
		if errors.Is(err, idb.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	link := fmt.Sprintf("%s/api/auth/verify?token=%s", s.baseURL, acct.VerificationToken.String)
	msg := channel.EmailMessage{
		To:      acct.Email,
		Subject: "Activate your account",
		Text:    fmt.Sprintf("Hello %s, welcome! Activate your account here: %s", acct.Username, link),
		HTML: fmt.Sprintf("<p>Hello %s, welcome!</p><p><a href=%q>Activate your account</a></p>",
			acct.Username, link),
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), verificationEmailTimeout)
		defer cancel()
		if err := s.email.Send(sendCtx, msg); err != nil {
			s.logger.WithError(err).WithField("to", msg.To).Warn("Verification email failed")
		}
	}()

	return acct, nil
}

// Login checks the credentials and returns the account for token issuance.
func (s *AuthService) Login(ctx context.Context, email, password string) (*account.Account, error) {
	email = attendance.NormalizeEmail(email)
	acct, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, idb.ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !acct.IsActive {
		return nil, ErrAccountDisabled
	}
	if !acct.IsVerified {
		return nil, ErrAccountNotVerified
	}
	return acct, nil
}

// VerifyEmail marks the account verified and burns the token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidVerifyToken
	}
	acct, err := s.accountRepo.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, idb.ErrAccountNotFound) {
			return ErrInvalidVerifyToken
		}
		return fmt.Errorf("failed to look up verification token: %w", err)
	}
	acct.IsVerified = true
	acct.VerificationToken = sql.NullString{}
	if err := s.accountRepo.Update(ctx, acct); err != nil {
		return fmt.Errorf("failed to mark account verified: %w", err)
	}
	s.logger.WithField("account_id", acct.ID).Info("Account email verified")
	return nil
}

// SetPushToken stores (or clears) the account's FCM device token.
func (s *AuthService) SetPushToken(ctx context.Context, accountID int64, token string) error {
	acct, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	acct.PushToken = sql.NullString{String: token, Valid: token != ""}
	if err := s.accountRepo.Update(ctx, acct); err != nil {
		return fmt.Errorf("failed to store push token: %w", err)
	}
	return nil
}
