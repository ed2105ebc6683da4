// Package auth registers users, checks logins and changes passwords.
//
// Credentials are stored as bcrypt hashes. Rows written by older releases
// hold either the plaintext password or its unsalted SHA-256 hex digest;
// both are still accepted at login and rehashed with bcrypt on success.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ansel1/merry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/serownia/internal/store"
)

// MinPasswordLength applies to password changes.
const MinPasswordLength = 8

var (
	ErrEmptyCredentials = merry.New("empty credentials").
		WithUserMessage("Nazwa użytkownika i hasło nie mogą być puste.")
	ErrInvalidCredentials = merry.New("invalid credentials").
		WithUserMessage("Niepoprawna nazwa użytkownika lub hasło.")
	ErrEmptyPassword = merry.New("empty password").
		WithUserMessage("Hasło nie może być puste.")
	ErrWeakPassword = merry.New("password too short").
		WithUserMessage("Hasło musi mieć co najmniej 8 znaków!")
	ErrPasswordTooLong = merry.New("password too long").
		WithUserMessage("Hasło jest za długie.")
)

// Repository is the user storage. *store.Store implements it.
type Repository interface {
	AddUser(ctx context.Context, username, password string) error
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	UpdateUserPassword(ctx context.Context, username, password string) error
}

var _ Repository = (*store.Store)(nil)

// Session is a logged-in user.
type Session struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Started  time.Time `json:"started"`
}

// Service implements the account operations.
type Service struct {
	repo   Repository
	logger *zap.Logger
	cost   int
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// WithClock replaces time.Now for session start times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service. A nil logger disables logging.
func NewService(repo Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:   repo,
		logger: logger,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", merry.Prepend(err, "hash password")
	}
	return string(h), nil
}

// Register creates an account. A taken username wraps store.ErrDuplicate.
func (s *Service) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return ErrEmptyCredentials
	}
	h, err := s.hash(password)
	if err != nil {
		return err
	}
	if err := s.repo.AddUser(ctx, username, h); err != nil {
		if store.IsDuplicate(err) {
			return merry.WithUserMessagef(err, "Użytkownik %q już istnieje.", username)
		}
		return err
	}
	s.logger.Info("user registered", zap.String("username", username))
	return nil
}

// Login checks a username and password and starts a session. Unknown users
// and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return Session{}, ErrEmptyCredentials
	}

	u, err := s.repo.GetUserByUsername(ctx, username)
	if store.IsNotFound(err) {
		return Session{}, merry.Prependf(ErrInvalidCredentials, "user %q", username)
	}
	if err != nil {
		return Session{}, err
	}

	if isBcrypt(u.Password) {
		if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
			return Session{}, merry.Prependf(ErrInvalidCredentials, "user %q", username)
		}
	} else {
		if !matchesLegacy(u.Password, password) {
			return Session{}, merry.Prependf(ErrInvalidCredentials, "user %q", username)
		}
		s.upgrade(ctx, username, password)
	}

	sess := Session{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Username: u.Username,
		Started:  s.now(),
	}
	s.logger.Info("user logged in", zap.String("username", u.Username), zap.String("session_id", sess.ID))
	return sess, nil
}

// upgrade rehashes a legacy credential. A failure is logged and does not
// fail the login.
func (s *Service) upgrade(ctx context.Context, username, password string) {
	h, err := s.hash(password)
	if err == nil {
		err = s.repo.UpdateUserPassword(ctx, username, h)
	}
	if err != nil {
		s.logger.Warn("legacy credential upgrade failed", zap.String("username", username), zap.Error(err))
		return
	}
	s.logger.Info("legacy credential upgraded", zap.String("username", username))
}

// ChangePassword sets a new password of at least MinPasswordLength
// characters.
func (s *Service) ChangePassword(ctx context.Context, username, password string) error {
	password = strings.TrimSpace(password)
	if password == "" {
		return ErrEmptyPassword
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	h, err := s.hash(password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateUserPassword(ctx, strings.TrimSpace(username), h); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.String("username", username))
	return nil
}

func isBcrypt(stored string) bool {
	_, err := bcrypt.Cost([]byte(stored))
	return err == nil
}

// matchesLegacy checks a credential written before bcrypt. A stored
// SHA-256 hex digest matches only the digest of password; any other value
// is plaintext and must match verbatim.
func matchesLegacy(stored, password string) bool {
	if isSHA256Hex(stored) {
		sum := sha256.Sum256([]byte(password))
		digest := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(strings.ToLower(stored)), []byte(digest)) == 1
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

func isSHA256Hex(s string) bool {
	if len(s) != 2*sha256.Size {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
