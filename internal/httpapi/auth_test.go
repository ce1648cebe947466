package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"slingerp/backend/internal/domain"
	"slingerp/backend/internal/store/memory"
)

func seedUser(t *testing.T, repo *memory.Store, username, password, role string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	err = repo.CreateUser(context.Background(), domain.UserAccount{
		Username: username, Password: string(hash), Role: role,
		Active: true, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestLoginIssuesParsableToken(t *testing.T) {
	repo := memory.New()
	seedUser(t, repo, "vendedor", "secreta-123", domain.RoleEmployee)
	auth := NewAuthManager("test-secret", time.Hour, repo)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Username: "vendedor", Password: "secreta-123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if actor.Username != "vendedor" || actor.Role != domain.RoleEmployee {
		t.Fatalf("actor = %+v", actor)
	}
}

func TestThreeFailedLoginsBlockTheAccount(t *testing.T) {
	repo := memory.New()
	seedUser(t, repo, "vendedor", "secreta-123", domain.RoleEmployee)
	auth := NewAuthManager("test-secret", time.Hour, repo)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := auth.Login(ctx, domain.LoginRequest{Username: "vendedor", Password: "mal"}); err != errInvalidCredentials {
			t.Fatalf("attempt %d err = %v, want invalid credentials", i+1, err)
		}
	}
	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "vendedor", Password: "mal"}); err != errAccountBlocked {
		t.Fatalf("third attempt err = %v, want blocked", err)
	}
	// The right password no longer helps.
	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "vendedor", Password: "secreta-123"}); err != errAccountBlocked {
		t.Fatalf("post-block err = %v, want blocked", err)
	}

	// Clearing the login state lets the user back in.
	if err := repo.UpdateUserLoginState(ctx, "vendedor", 0, false); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "vendedor", Password: "secreta-123"}); err != nil {
		t.Fatalf("login after unblock: %v", err)
	}

	user, err := repo.GetUserByUsername(ctx, "vendedor")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.Attempts != 0 || user.Blocked {
		t.Fatalf("login state = attempts %d blocked %t, want reset", user.Attempts, user.Blocked)
	}
}

func TestSuccessfulLoginResetsAttemptCounter(t *testing.T) {
	repo := memory.New()
	seedUser(t, repo, "vendedor", "secreta-123", domain.RoleEmployee)
	auth := NewAuthManager("test-secret", time.Hour, repo)
	ctx := context.Background()

	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "vendedor", Password: "mal"}); err == nil {
		t.Fatalf("bad password accepted")
	}
	if _, err := auth.Login(ctx, domain.LoginRequest{Username: "vendedor", Password: "secreta-123"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	// Two more misses start from zero again instead of blocking.
	for i := 0; i < 2; i++ {
		if _, err := auth.Login(ctx, domain.LoginRequest{Username: "vendedor", Password: "mal"}); err != errInvalidCredentials {
			t.Fatalf("err = %v, want invalid credentials", err)
		}
	}
}

func TestUnblockEndpointIsOwnerOnly(t *testing.T) {
	api, _ := newTestAPI(t)
	handler := api.Handler()

	owner := login(t, handler, "dueno", "dueno-secreta")

	// Block the employee with three bad logins.
	for i := 0; i < 3; i++ {
		body, _ := json.Marshal(domain.LoginRequest{Username: "vendedor", Password: "mal"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			t.Fatalf("bad login succeeded")
		}
	}

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/vendedor/unblock", owner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unblock status = %d body = %s", rec.Code, rec.Body.String())
	}
	_ = login(t, handler, "vendedor", "vendedor-secreta")
}
