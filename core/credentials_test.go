package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestCredentials(t *testing.T) (*CredentialStore, *Store) {
	t.Helper()
	store := newTestStore(t)
	return NewCredentialStore(store.Users, nil, WithHashCost(bcrypt.MinCost)), store
}

func TestRegisterThenVerify(t *testing.T) {
	cases := []struct {
		username string
		password string
	}{
		{"abc", "pass"},
		{"alice", "pass1"},
		{"ABCdef1234", strings.Repeat("x", 25)},
		{"0123456789", "p@ss w0rd!"},
		{"bob", "пароль"},
	}
	creds, _ := newTestCredentials(t)
	ctx := context.Background()
	for _, tc := range cases {
		t.Run(tc.username, func(t *testing.T) {
			registered, err := creds.Register(ctx, tc.username, tc.password)
			require.NoError(t, err)
			require.Positive(t, registered.ID)
			assert.Equal(t, tc.username, registered.Username)
			assert.False(t, registered.CreatedAt.IsZero())

			verified, err := creds.Verify(ctx, tc.username, tc.password)
			require.NoError(t, err)
			assert.Equal(t, registered.ID, verified.ID)
		})
	}
}

func TestRegisterStoresHashOnly(t *testing.T) {
	creds, store := newTestCredentials(t)
	ctx := context.Background()
	_, err := creds.Register(ctx, "alice", "pass1")
	require.NoError(t, err)

	rec, err := store.Users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "pass1", rec.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte("pass1")))
}

func TestRegisterDuplicateDoesNotCreateRow(t *testing.T) {
	creds, store := newTestCredentials(t)
	ctx := context.Background()
	_, err := creds.Register(ctx, "alice", "pass1")
	require.NoError(t, err)

	_, err = creds.Register(ctx, "alice", "different")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"That username is already taken."}, verr.Messages())

	n, err := store.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// the first password still works
	_, err = creds.Verify(ctx, "alice", "pass1")
	require.NoError(t, err)
}

func TestRegisterTrimsUsername(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := context.Background()
	u, err := creds.Register(ctx, "  alice ", "pass1")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = creds.Register(ctx, "alice", "pass1")
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestRegisterCollectsEveryProblem(t *testing.T) {
	creds, store := newTestCredentials(t)
	ctx := context.Background()
	_, err := creds.Register(ctx, "taken", "pass1")
	require.NoError(t, err)

	cases := []struct {
		name     string
		username string
		password string
		want     []string
	}{
		{
			name: "empty",
			want: []string{"You must provide a username.", "You must provide a password."},
		},
		{
			name:     "whitespace username",
			username: "   ",
			password: "pass1",
			want:     []string{"You must provide a username."},
		},
		{
			name:     "short and bad charset",
			username: "a!",
			password: "ab",
			want: []string{
				"Username must be at least 3 characters.",
				"Username can only contain letters and numbers.",
				"Password must be at least 4 characters.",
			},
		},
		{
			name:     "too long",
			username: "abcdefghijk",
			password: strings.Repeat("p", 26),
			want: []string{
				"Username cannot exceed 10 characters.",
				"Password cannot exceed 25 characters.",
			},
		},
		{
			name:     "taken with bad password",
			username: "taken",
			password: "p",
			want: []string{
				"That username is already taken.",
				"Password must be at least 4 characters.",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := creds.Register(ctx, tc.username, tc.password)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.want, verr.Messages())
			assert.Equal(t, tc.want, userMessages(err))
		})
	}

	n, err := store.Users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegisterErrorKinds(t *testing.T) {
	creds, _ := newTestCredentials(t)
	_, err := creds.Register(context.Background(), "a", "")
	assert.ErrorIs(t, err, ErrInvalidUsername)
	assert.ErrorIs(t, err, ErrInvalidPassword)
	assert.NotErrorIs(t, err, ErrDuplicateUsername)
}

func TestVerifyFailuresAreIndistinguishable(t *testing.T) {
	creds, _ := newTestCredentials(t)
	ctx := context.Background()
	_, err := creds.Register(ctx, "alice", "pass1")
	require.NoError(t, err)

	_, wrongPassword := creds.Verify(ctx, "alice", "wrong")
	_, unknownUser := creds.Verify(ctx, "nobody", "pass1")
	_, emptyPassword := creds.Verify(ctx, "alice", "")
	_, wrongCase := creds.Verify(ctx, "Alice", "pass1")

	for _, err := range []error{wrongPassword, unknownUser, emptyPassword, wrongCase} {
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, ErrInvalidCredentials, err)
		assert.Equal(t, []string{"Invalid username / password."}, userMessages(err))
	}
}

type failingUsers struct {
	UserRepository
	err error
}

func (f failingUsers) FindByUsername(context.Context, string) (*UserRecord, error) {
	return nil, f.err
}

func TestStorageFailuresAreNotValidationErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	creds := NewCredentialStore(failingUsers{err: boom}, nil, WithHashCost(bcrypt.MinCost))
	ctx := context.Background()

	_, err := creds.Register(ctx, "alice", "pass1")
	require.ErrorIs(t, err, boom)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
	assert.Equal(t, []string{genericErrorMessage}, userMessages(err))

	_, err = creds.Verify(ctx, "alice", "pass1")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
