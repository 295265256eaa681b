package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	usernameMinLen = 3
	usernameMaxLen = 10
	passwordMinLen = 4
	passwordMaxLen = 25
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// CredentialStore registers users and verifies their passwords.
type CredentialStore struct {
	users  UserRepository
	logger logrus.FieldLogger
	cost   int

	dummyOnce sync.Once
	dummyHash []byte
}

// CredentialOption customises a CredentialStore.
type CredentialOption func(*CredentialStore)

// WithHashCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func WithHashCost(cost int) CredentialOption {
	return func(s *CredentialStore) { s.cost = cost }
}

func NewCredentialStore(users UserRepository, logger logrus.FieldLogger, opts ...CredentialOption) *CredentialStore {
	if logger == nil {
		logger = discardLogger()
	}
	s := &CredentialStore{users: users, logger: logger, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates the input, hashes the password and persists the user.
// Every violated rule is reported in one *ValidationError.
func (s *CredentialStore) Register(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	verr := &ValidationError{}

	usernameOK := validateUsername(username, verr)
	if usernameOK {
		_, err := s.users.FindByUsername(ctx, username)
		switch {
		case err == nil:
			verr.add(ErrDuplicateUsername, "That username is already taken.")
		case errors.Is(err, ErrUserNotFound):
		default:
			return User{}, fmt.Errorf("check username: %w", err)
		}
	}
	validatePassword(password, verr)

	if !verr.empty() {
		return User{}, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			verr.add(ErrInvalidPassword, "Password is too long.")
			return User{}, verr
		}
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.users.Create(ctx, username, string(hash))
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			// Lost a race with a concurrent registration of the same name.
			verr.add(ErrDuplicateUsername, "That username is already taken.")
			return User{}, verr
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}

	rec, err := s.users.FindByID(ctx, id)
	if err != nil {
		return User{}, fmt.Errorf("reload user: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"user_id": rec.ID, "username": rec.Username}).Info("user registered")
	return rec.user(), nil
}

// Verify checks a username/password pair. Unknown users and wrong passwords both
// yield ErrInvalidCredentials, and both pay for one bcrypt comparison.
func (s *CredentialStore) Verify(ctx context.Context, username, password string) (User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	rec, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return User{}, fmt.Errorf("find user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		s.logger.WithField("reason", "unknown_user").Info("login rejected")
		return User{}, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		s.logger.WithFields(logrus.Fields{"reason": "password_mismatch", "user_id": rec.ID}).Info("login rejected")
		return User{}, ErrInvalidCredentials
	}
	return rec.user(), nil
}

func (s *CredentialStore) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("plainpost-timing-filler"), s.cost)
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func validateUsername(username string, verr *ValidationError) bool {
	if username == "" {
		verr.add(ErrInvalidUsername, "You must provide a username.")
		return false
	}
	ok := true
	n := utf8.RuneCountInString(username)
	if n < usernameMinLen {
		verr.add(ErrInvalidUsername, "Username must be at least 3 characters.")
		ok = false
	}
	if n > usernameMaxLen {
		verr.add(ErrInvalidUsername, "Username cannot exceed 10 characters.")
		ok = false
	}
	if !usernamePattern.MatchString(username) {
		verr.add(ErrInvalidUsername, "Username can only contain letters and numbers.")
		ok = false
	}
	return ok
}

func validatePassword(password string, verr *ValidationError) {
	if password == "" {
		verr.add(ErrInvalidPassword, "You must provide a password.")
		return
	}
	n := utf8.RuneCountInString(password)
	if n < passwordMinLen {
		verr.add(ErrInvalidPassword, "Password must be at least 4 characters.")
	}
	if n > passwordMaxLen {
		verr.add(ErrInvalidPassword, "Password cannot exceed 25 characters.")
	}
}
