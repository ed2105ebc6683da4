package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ansel1/merry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/serownia/internal/store"
	"github.com/roach88/serownia/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	clock := testutil.Date(2024, time.July, 10)
	return NewService(s, zap.NewNop(), WithCost(bcrypt.MinCost), WithClock(clock.Now)), s
}

func TestRegisterAndLogin(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, " anna ", "sekret123"))

	u, err := s.GetUserByUsername(ctx, "anna")
	require.NoError(t, err)
	assert.NotEqual(t, "sekret123", u.Password)
	assert.True(t, isBcrypt(u.Password))

	sess, err := svc.Login(ctx, "anna", "sekret123")
	require.NoError(t, err)
	assert.Equal(t, "anna", sess.Username)
	assert.Len(t, sess.ID, 36)
	assert.Equal(t, 2024, sess.Started.Year())

	other, err := svc.Login(ctx, "anna", "sekret123")
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, other.ID)
}

func TestRegister_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	err := svc.Register(ctx, "", "x")
	assert.True(t, merry.Is(err, ErrEmptyCredentials))
	err = svc.Register(ctx, "anna", "   ")
	assert.True(t, merry.Is(err, ErrEmptyCredentials))

	require.NoError(t, svc.Register(ctx, "anna", "a"))
	err = svc.Register(ctx, "anna", "b")
	require.Error(t, err)
	assert.True(t, store.IsDuplicate(err))
	assert.Equal(t, `Użytkownik "anna" już istnieje.`, merry.UserMessage(err))

	err = svc.Register(ctx, "bartek", strings.Repeat("x", 73))
	assert.True(t, merry.Is(err, ErrPasswordTooLong))
}

func TestLogin_Rejects(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, "anna", "sekret123"))

	tests := []struct {
		name, user, pass string
		want             error
	}{
		{"empty user", "", "sekret123", ErrEmptyCredentials},
		{"empty password", "anna", " ", ErrEmptyCredentials},
		{"unknown user", "bartek", "sekret123", ErrInvalidCredentials},
		{"wrong password", "anna", "sekret124", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.user, tt.pass)
			require.Error(t, err)
			assert.True(t, merry.Is(err, tt.want))
			assert.NotEmpty(t, merry.UserMessage(err))
		})
	}
}

func TestLogin_UpgradesLegacyCredentials(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	sum := sha256.Sum256([]byte("nowehaslo"))
	require.NoError(t, s.AddUser(ctx, "plain", "stare"))
	require.NoError(t, s.AddUser(ctx, "hashed", hex.EncodeToString(sum[:])))

	_, err := svc.Login(ctx, "plain", "zle")
	assert.True(t, merry.Is(err, ErrInvalidCredentials))

	for user, pass := range map[string]string{"plain": "stare", "hashed": "nowehaslo"} {
		_, err := svc.Login(ctx, user, pass)
		require.NoError(t, err, user)

		u, err := s.GetUserByUsername(ctx, user)
		require.NoError(t, err)
		assert.True(t, isBcrypt(u.Password), "%s is rehashed", user)

		_, err = svc.Login(ctx, user, pass)
		assert.NoError(t, err, "%s logs in after the upgrade", user)
	}
}

func TestLogin_LegacyDigestIsNotAPassword(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	sum := sha256.Sum256([]byte("sekret123"))
	digest := hex.EncodeToString(sum[:])
	require.NoError(t, s.AddUser(ctx, "anna", digest))
	require.NoError(t, s.AddUser(ctx, "ewa", strings.ToUpper(digest)))

	for _, user := range []string{"anna", "ewa"} {
		for _, pass := range []string{digest, strings.ToUpper(digest)} {
			_, err := svc.Login(ctx, user, pass)
			assert.True(t, merry.Is(err, ErrInvalidCredentials), "%s with the stored digest", user)
		}

		u, err := s.GetUserByUsername(ctx, user)
		require.NoError(t, err)
		assert.False(t, isBcrypt(u.Password), "a failed login leaves the row alone")

		_, err = svc.Login(ctx, user, "sekret123")
		require.NoError(t, err, user)
		_, err = svc.Login(ctx, user, "sekret123")
		assert.NoError(t, err, "%s logs in with the real password after the upgrade", user)
	}
}

func TestMatchesLegacy(t *testing.T) {
	sum := sha256.Sum256([]byte("sekret123"))
	digest := hex.EncodeToString(sum[:])

	assert.True(t, matchesLegacy(digest, "sekret123"))
	assert.True(t, matchesLegacy(strings.ToUpper(digest), "sekret123"))
	assert.False(t, matchesLegacy(digest, digest))
	assert.True(t, matchesLegacy("stare", "stare"))
	assert.False(t, matchesLegacy("stare", "Stare"))

	// 64 characters that are not hex are a plaintext password.
	plain := strings.Repeat("z", 64)
	assert.True(t, matchesLegacy(plain, plain))
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, "anna", "sekret123"))

	assert.True(t, merry.Is(svc.ChangePassword(ctx, "anna", "  "), ErrEmptyPassword))
	err := svc.ChangePassword(ctx, "anna", "krótkie")
	assert.True(t, merry.Is(err, ErrWeakPassword))
	assert.Equal(t, "Hasło musi mieć co najmniej 8 znaków!", merry.UserMessage(err))

	require.NoError(t, svc.ChangePassword(ctx, "anna", "zażółćgę"))
	_, err = svc.Login(ctx, "anna", "sekret123")
	assert.True(t, merry.Is(err, ErrInvalidCredentials))
	_, err = svc.Login(ctx, "anna", "zażółćgę")
	assert.NoError(t, err)

	err = svc.ChangePassword(ctx, "nikt", "dlugiehaslo")
	assert.True(t, store.IsNotFound(err))
}

func TestLogin_LogsSession(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	defer s.Close()
	svc := NewService(s, zap.New(core), WithCost(bcrypt.MinCost))
	ctx := context.Background()

	require.NoError(t, s.AddUser(ctx, "anna", "stare"))
	sess, err := svc.Login(ctx, "anna", "stare")
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("legacy credential upgraded").Len())
	entries := logs.FilterMessage("user logged in").All()
	require.Len(t, entries, 1)
	assert.Equal(t, sess.ID, entries[0].ContextMap()["session_id"])
}
