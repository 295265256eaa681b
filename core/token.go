package core

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// SessionTTL is the fixed lifetime of an issued token.
const SessionTTL = 24 * time.Hour

// SessionClaims is the identity derived from a verified token.
type SessionClaims struct {
	UserID    int64
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the signed payload.
type tokenClaims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies stateless HS256 session tokens. There is no
// server-side record of issued tokens: a token stays valid until it expires,
// whether or not the user logged out.
type TokenService struct {
	secret []byte
	now    func() time.Time
	logger logrus.FieldLogger
}

// NewTokenService panics on an empty secret; Config.Validate guards it earlier.
func NewTokenService(secret string, logger logrus.FieldLogger) *TokenService {
	if secret == "" {
		panic("token secret cannot be empty")
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &TokenService{secret: []byte(secret), now: time.Now, logger: logger}
}

// WithClock returns a copy of the service reading time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	cp := *s
	cp.now = now
	return &cp
}

// Issue signs {userId, username, iat=now, exp=now+24h}.
func (s *TokenService) Issue(userID int64, username string) (string, error) {
	issued := s.now().Truncate(time.Second)
	claims := tokenClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(SessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the claims and true for a well-formed, correctly signed,
// unexpired token. Every other case returns false; the reason is only logged.
func (s *TokenService) Verify(token string) (SessionClaims, bool) {
	if token == "" {
		return SessionClaims{}, false
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		s.logger.WithField("reason", tokenFailureReason(err)).Debug("session token rejected")
		return SessionClaims{}, false
	}
	if claims.UserID <= 0 || claims.IssuedAt == nil {
		s.logger.WithField("reason", "missing_claims").Debug("session token rejected")
		return SessionClaims{}, false
	}

	return SessionClaims{
		UserID:    claims.UserID,
		Username:  claims.Username,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, true
}

func tokenFailureReason(err error) string {
	switch {
	case err == nil:
		return "invalid"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	default:
		return "invalid"
	}
}
