package core

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	bootstrapUsername       = "admin"
	bootstrapPasswordLength = 20
	passwordAlphabet        = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
)

// BootstrapAuthor creates an initial account when registration is gated behind
// login and no user exists yet; otherwise nobody could ever sign up.
// It is idempotent: with any user present it does nothing.
func BootstrapAuthor(ctx context.Context, cfg Config, users UserRepository, creds AuthService, logger logrus.FieldLogger) error {
	if !cfg.RegisterRequiresLogin || !cfg.BootstrapAuthorEnabled {
		return nil
	}
	if logger == nil {
		logger = discardLogger()
	}

	n, err := users.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password, err := generatePassword(bootstrapPasswordLength)
	if err != nil {
		return err
	}
	u, err := creds.Register(ctx, bootstrapUsername, password)
	if err != nil {
		return err
	}

	if cfg.InitialPasswordPath != "" {
		if err := os.WriteFile(cfg.InitialPasswordPath, []byte(password+"\n"), 0o600); err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"user_id": u.ID, "path": cfg.InitialPasswordPath}).Warn("initial account created; password written to file")
	} else {
		// Only reachable when the operator chose no password file.
		logger.WithFields(logrus.Fields{"username": u.Username, "password": password}).Warn("initial account created")
	}
	return nil
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
