package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"auth-api/internal/domain"
	"auth-api/internal/password"
	"auth-api/internal/repository"
)

// TokenTypeBearer is the token_type reported with every issued access token.
const TokenTypeBearer = "bearer"

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	// Unknown emails and wrong passwords both produce it.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateEmail is returned when attempting to register an already registered email.
	ErrDuplicateEmail = errors.New("email already registered")
)

// TokenIssuer signs session tokens for a subject.
type TokenIssuer interface {
	Issue(subject string) (string, time.Time, error)
}

// RegisterInput carries already validated registration fields.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AccessToken is the result of a successful login.
type AccessToken struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// AuthService describes the registration and login lifecycle.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*AccessToken, error)
}

type authService struct {
	users  repository.UserRepository
	hasher password.Hasher
	tokens TokenIssuer

	// dummyHash is verified against when the email is unknown so both
	// failure paths cost one hash comparison.
	dummyHash string
}

func NewAuthService(users repository.UserRepository, hasher password.Hasher, tokens TokenIssuer) (AuthService, error) {
	dummy, err := hasher.Hash("dummy-password-never-matches")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &authService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		dummyHash: dummy,
	}, nil
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*AccessToken, error) {
	user, err := s.users.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.hasher.Verify(password, s.dummyHash)
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	signed, expiresAt, err := s.tokens.Issue(strconv.FormatInt(user.ID, 10))
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &AccessToken{
		AccessToken: signed,
		TokenType:   TokenTypeBearer,
		ExpiresAt:   expiresAt,
	}, nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		CreatedAt: user.CreatedAt,
	}
}
