package service

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"auth-api/internal/domain"
	"auth-api/internal/password"
	"auth-api/internal/repository"
	"auth-api/internal/repository/sqlite"
	"auth-api/internal/token"
)

const tokenTTL = 30 * time.Minute

type fixture struct {
	svc    AuthService
	users  *sqlite.UserRepository
	issuer *token.Issuer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := sqlite.NewUserRepository(db)
	issuer, err := token.NewIssuer("service-test-secret", "HS256", tokenTTL)
	require.NoError(t, err)

	svc, err := NewAuthService(users, password.NewBcryptHasher(bcrypt.MinCost), issuer)
	require.NoError(t, err)
	return fixture{svc: svc, users: users, issuer: issuer}
}

func validInput() RegisterInput {
	return RegisterInput{
		Email:     "a@x.com",
		Password:  "longenough1",
		FirstName: "Ana",
		LastName:  " Lopez ",
	}
}

func TestRegister_CreatesSanitizedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	assert.Positive(t, user.ID)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, "Ana", user.FirstName)
	assert.Equal(t, "Lopez", user.LastName)
	assert.Empty(t, user.PasswordHash)

	stored, err := f.users.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Lopez", stored.LastName)
	assert.NotEqual(t, "longenough1", stored.PasswordHash)
	assert.NotEmpty(t, stored.PasswordHash)
}

func TestRegister_NormalizesEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput()
	in.Email = "  Ana@X.COM "
	user, err := f.svc.Register(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "ana@x.com", user.Email)

	in.Email = "ana@x.com"
	_, err = f.svc.Register(ctx, in)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, validInput())
	require.ErrorIs(t, err, ErrDuplicateEmail)

	n, err := f.users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const callers = 6
	results := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = f.svc.Register(ctx, validInput())
		}()
	}
	wg.Wait()

	var ok, dup int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateEmail):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, dup)

	n, err := f.users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLogin_IssuesTokenForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	before := time.Now()
	tok, err := f.svc.Login(ctx, "a@x.com", "longenough1")
	require.NoError(t, err)
	assert.Equal(t, TokenTypeBearer, tok.TokenType)

	claims, err := f.issuer.Parse(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(user.ID, 10), claims.Subject)
	assert.WithinDuration(t, before.Add(tokenTTL), claims.ExpiresAt.Time, 2*time.Second)
	assert.Equal(t, claims.ExpiresAt.Time, tok.ExpiresAt)
}

func TestLogin_EmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "A@X.com", "longenough1")
	assert.NoError(t, err)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, validInput())
	require.NoError(t, err)

	tok, unknownErr := f.svc.Login(ctx, "ghost@x.com", "longenough1")
	assert.Nil(t, tok)
	tok, wrongErr := f.svc.Login(ctx, "a@x.com", "wrong")
	assert.Nil(t, tok)

	assert.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

type stubUsers struct {
	findUser  *domain.User
	findErr   error
	createErr error
}

func (s *stubUsers) Create(_ context.Context, user *domain.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	user.ID = 1
	return nil
}

func (s *stubUsers) FindByEmail(context.Context, string) (*domain.User, error) {
	return s.findUser, s.findErr
}

func (s *stubUsers) Count(context.Context) (int64, error) { return 0, nil }

func (s *stubUsers) Ping(context.Context) error { return nil }

type failingIssuer struct{}

func (failingIssuer) Issue(string) (string, time.Time, error) {
	return "", time.Time{}, errors.New("signer unavailable")
}

func TestRegister_StorageRaceMapsToDuplicate(t *testing.T) {
	users := &stubUsers{createErr: repository.ErrEmailTaken}
	svc, err := NewAuthService(users, password.NewBcryptHasher(bcrypt.MinCost), failingIssuer{})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestStorageErrorsPropagate(t *testing.T) {
	storageErr := errors.New("connection refused")
	users := &stubUsers{findErr: storageErr}
	svc, err := NewAuthService(users, password.NewBcryptHasher(bcrypt.MinCost), failingIssuer{})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), validInput())
	assert.ErrorIs(t, err, storageErr)

	_, err = svc.Login(context.Background(), "a@x.com", "longenough1")
	assert.ErrorIs(t, err, storageErr)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_IssuerFailure(t *testing.T) {
	hasher := password.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("longenough1")
	require.NoError(t, err)

	users := &stubUsers{findUser: &domain.User{ID: 5, Email: "a@x.com", PasswordHash: hash}}
	svc, err := NewAuthService(users, hasher, failingIssuer{})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "a@x.com", "longenough1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signer unavailable")
}
