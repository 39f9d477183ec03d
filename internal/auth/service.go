package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-provision/internal/shared"
)

// Repository resolves stored credentials by email.
type Repository interface {
	FindCredential(ctx context.Context, email string) (Credential, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenService
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenService) *Service {
	return &Service{repo: repo, tokens: tokens}
}

var compareHash = bcrypt.CompareHashAndPassword

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// missHash is compared when the email is unknown so a miss costs as much as
// a wrong password.
func missHash() []byte {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("odyssey-provision"), bcrypt.DefaultCost)
	})
	return dummyHash
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Credential, error) {
	cred, err := s.repo.FindCredential(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			_ = compareHash(missHash(), []byte(password))
			return Credential{}, shared.ErrInvalidCredentials
		}
		return Credential{}, err
	}
	if err := compareHash([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return Credential{}, shared.ErrInvalidCredentials
	}
	if cred.Disabled {
		return Credential{}, shared.ErrInvalidCredentials
	}
	return cred, nil
}

// Login authenticates and issues a bearer token carrying the role claim.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	cred, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Token{}, err
	}
	return s.tokens.Issue(cred.IdentityID, cred.Role)
}

// IssueFor mints a token for an enabled identity without a password check.
// It backs the operator CLI, which runs with direct database access.
func (s *Service) IssueFor(ctx context.Context, email string) (Token, error) {
	cred, err := s.repo.FindCredential(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return Token{}, err
	}
	if cred.Disabled {
		return Token{}, shared.ErrInvalidCredentials
	}
	return s.tokens.Issue(cred.IdentityID, cred.Role)
}
