package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-provision/internal/auth"
	"github.com/odyssey-erp/odyssey-provision/internal/shared"
	_ "github.com/odyssey-erp/odyssey-provision/testing"
)

type stubRepo struct {
	cred *auth.Credential
}

func (s *stubRepo) FindCredential(ctx context.Context, email string) (auth.Credential, error) {
	if s.cred == nil || s.cred.Email != email {
		return auth.Credential{}, shared.ErrNotFound
	}
	return *s.cred, nil
}

func newCredential(t *testing.T, password string) *auth.Credential {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &auth.Credential{IdentityID: "uid-1", Email: "ana@clinic.test", PasswordHash: string(hash), Role: "admin"}
}

func newAuthRouter(t *testing.T, repo auth.Repository) (http.Handler, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret", "odyssey-provision", time.Hour)
	require.NoError(t, err)
	handler := auth.NewHandler(nil, auth.NewService(repo, tokens))
	r := chi.NewRouter()
	r.Route("/v1/auth", handler.MountRoutes)
	return r, tokens
}

func postToken(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/token", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestTokenIssuedForValidCredentials(t *testing.T) {
	router, tokens := newAuthRouter(t, &stubRepo{cred: newCredential(t, "Passw0rd!")})

	res := postToken(router, `{"email":" Ana@Clinic.test ","password":"Passw0rd!"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var token auth.Token
	require.NoError(t, json.NewDecoder(res.Body).Decode(&token))
	require.Equal(t, "Bearer", token.TokenType)

	principal, err := tokens.Verify(token.AccessToken)
	require.NoError(t, err)
	require.Equal(t, shared.Principal{ID: "uid-1", Role: "admin"}, principal)
}

func TestTokenRejectsInvalidCredentials(t *testing.T) {
	disabled := newCredential(t, "Passw0rd!")
	disabled.Disabled = true

	cases := map[string]struct {
		repo *stubRepo
		body string
	}{
		"wrong password": {repo: &stubRepo{cred: newCredential(t, "Passw0rd!")}, body: `{"email":"ana@clinic.test","password":"wrong-pass"}`},
		"unknown email":  {repo: &stubRepo{cred: newCredential(t, "Passw0rd!")}, body: `{"email":"bob@clinic.test","password":"Passw0rd!"}`},
		"disabled":       {repo: &stubRepo{cred: disabled}, body: `{"email":"ana@clinic.test","password":"Passw0rd!"}`},
		"short password": {repo: &stubRepo{}, body: `{"email":"ana@clinic.test","password":"short"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			router, _ := newAuthRouter(t, tc.repo)
			res := postToken(router, tc.body)
			require.Equal(t, http.StatusUnauthorized, res.Code)
			require.Contains(t, res.Body.String(), shared.ErrInvalidCredentials.Error())
		})
	}
}

func TestTokenMalformedBody(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{})
	res := postToken(router, `{"email":`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestIssueForSkipsPasswordButNotDisabled(t *testing.T) {
	tokens, err := auth.NewTokenService("test-secret", "odyssey-provision", time.Hour)
	require.NoError(t, err)
	cred := newCredential(t, "Passw0rd!")
	svc := auth.NewService(&stubRepo{cred: cred}, tokens)

	token, err := svc.IssueFor(context.Background(), "ANA@clinic.test")
	require.NoError(t, err)
	principal, err := tokens.Verify(token.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "uid-1", principal.ID)

	cred.Disabled = true
	_, err = svc.IssueFor(context.Background(), "ana@clinic.test")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.IssueFor(context.Background(), "ghost@clinic.test")
	require.ErrorIs(t, err, shared.ErrNotFound)
}
