// Package auth implements account registration, login and bearer token
// verification.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/chezflora/internal/domain/apperr"
	"github.com/xenking/chezflora/internal/domain/user"
	"github.com/xenking/chezflora/internal/notify"
)

const minPasswordLen = 6

// Notifier schedules an email for delivery.
type Notifier interface {
	Enqueue(ctx context.Context, msg notify.Message)
}

// Config holds auth tunables.
type Config struct {
	ResetTTL    time.Duration
	FrontendURL string
	BcryptCost  int
}

// Session is an authenticated user with a token pair.
type Session struct {
	User   *user.User
	Tokens Tokens
}

// RegisterRequest is the input for Register.
type RegisterRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
}

// Service implements the account workflows.
type Service struct {
	users    user.Repository
	tokens   *TokenIssuer
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

// NewService creates an auth Service.
func NewService(users user.Repository, tokens *TokenIssuer, notifier Notifier, cfg Config) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.ResetTTL == 0 {
		cfg.ResetTTL = time.Hour
	}
	return &Service{
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Register creates a client account and signs it in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	email := normalizeEmail(req.Email)
	if email == "" || strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return nil, apperr.Invalid("First name, last name and email are required")
	}
	if len(req.Password) < minPasswordLen {
		return nil, apperr.Invalid("Password must be at least 6 characters long")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u := &user.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		PasswordHash: string(hash),
		Phone:        req.Phone,
		Role:         user.RoleClient,
		Status:       user.StatusActive,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, apperr.Invalid("Email already in use")
		}
		return nil, errors.Wrap(err, "create user")
	}

	return s.session(u)
}

// Login verifies credentials and signs the user in.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, apperr.Invalid("Please provide email and password")
	}

	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, apperr.Unauthorized("Invalid credentials")
		}
		return nil, errors.Wrap(err, "get user")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	if u.Status != user.StatusActive {
		return nil, apperr.Forbidden("Your account has been deactivated. Please contact support.")
	}

	now := s.now()
	if err := s.users.TouchLogin(ctx, u.ID, now); err != nil {
		return nil, errors.Wrap(err, "touch login")
	}
	u.LastLogin = &now

	return s.session(u)
}

// Refresh exchanges a refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, apperr.Invalid("Refresh token is required")
	}
	id, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired refresh token")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, apperr.NotFound("User not found or inactive")
		}
		return nil, errors.Wrap(err, "get user")
	}
	if u.Status != user.StatusActive {
		return nil, apperr.NotFound("User not found or inactive")
	}

	tokens, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Authenticate resolves an access token to an active user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*user.User, error) {
	id, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, apperr.Unauthorized("Token expired")
		}
		return nil, apperr.Unauthorized("Invalid token")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, apperr.Unauthorized("User not found")
		}
		return nil, errors.Wrap(err, "get user")
	}
	if u.Status != user.StatusActive {
		return nil, apperr.Forbidden("Your account has been deactivated")
	}
	return u, nil
}

// Me returns the user's own account.
func (s *Service) Me(ctx context.Context, id string) (*user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, errors.Wrap(err, "get user")
	}
	return u, nil
}

// UpdateProfile edits name and phone. Empty names keep their current value.
func (s *Service) UpdateProfile(ctx context.Context, id string, p user.Profile) (*user.User, error) {
	u, err := s.Me(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.FirstName == "" {
		p.FirstName = u.FirstName
	}
	if p.LastName == "" {
		p.LastName = u.LastName
	}
	if err := s.users.UpdateProfile(ctx, id, p); err != nil {
		return nil, errors.Wrap(err, "update profile")
	}
	u.FirstName, u.LastName, u.Phone = p.FirstName, p.LastName, p.Phone
	return u, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	u, err := s.Me(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return apperr.Unauthorized("Current password is incorrect")
	}
	if len(next) < minPasswordLen {
		return apperr.Invalid("New password must be at least 6 characters long")
	}
	return s.setPassword(ctx, id, next)
}

// ForgotPassword stores a one-hour reset token and emails a reset link.
// Unknown emails succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "get user")
	}

	token, err := randomToken()
	if err != nil {
		return errors.Wrap(err, "generate reset token")
	}
	if err := s.users.SetResetToken(ctx, u.ID, hashToken(token), s.now().Add(s.cfg.ResetTTL)); err != nil {
		return errors.Wrap(err, "store reset token")
	}

	s.notifier.Enqueue(ctx, notify.Message{
		To:       u.Email,
		Subject:  "Password Reset Request",
		Template: notify.TemplatePasswordReset,
		Data: notify.PasswordResetEmail{
			Name:     u.FirstName,
			ResetURL: strings.TrimRight(s.cfg.FrontendURL, "/") + "/reset-password/" + token,
		},
	})
	return nil
}

// ResetPassword sets a new password using a reset token.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < minPasswordLen {
		return apperr.Invalid("Password must be at least 6 characters long")
	}
	u, err := s.users.GetByResetToken(ctx, hashToken(token), s.now())
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return apperr.Invalid("Invalid or expired token")
		}
		return errors.Wrap(err, "get user by reset token")
	}
	return s.setPassword(ctx, u.ID, password)
}

// CleanupResetTokens clears expired reset tokens.
func (s *Service) CleanupResetTokens(ctx context.Context) (int64, error) {
	n, err := s.users.ClearExpiredResetTokens(ctx, s.now())
	if err != nil {
		return 0, errors.Wrap(err, "clear expired reset tokens")
	}
	return n, nil
}

func (s *Service) setPassword(ctx context.Context, id, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	if err := s.users.UpdatePassword(ctx, id, string(hash)); err != nil {
		return errors.Wrap(err, "update password")
	}
	return nil
}

func (s *Service) session(u *user.User) (*Session, error) {
	tokens, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Tokens: tokens}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
