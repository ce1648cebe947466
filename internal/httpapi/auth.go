package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"slingerp/backend/internal/domain"
	"slingerp/backend/internal/store"
)

// maxLoginAttempts failed logins in a row block the account until an owner
// clears it.
const maxLoginAttempts = 3

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errAccountBlocked     = fmt.Errorf("%w after repeated failed logins", store.ErrAccountBlocked)
	errAccountInactive    = errors.New("account is inactive")
)

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
}

type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (domain.UserAccount, error)
	UpdateUserLoginState(ctx context.Context, username string, attempts int, blocked bool) error
}

type erpClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
	}
}

// Login verifies credentials against the user store. Every failed attempt
// bumps the account's counter; the third blocks it. A successful login resets
// the counter. Blocked and inactive accounts are rejected even with the right
// password.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	user, err := a.userStore.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if err != nil {
		return domain.LoginResponse{}, err
	}
	if user.Blocked {
		return domain.LoginResponse{}, errAccountBlocked
	}

	if !verifyPassword(user.Password, req.Password) {
		attempts := user.Attempts + 1
		blocked := attempts >= maxLoginAttempts
		_ = a.userStore.UpdateUserLoginState(ctx, username, attempts, blocked)
		if blocked {
			return domain.LoginResponse{}, errAccountBlocked
		}
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !user.Active {
		return domain.LoginResponse{}, errAccountInactive
	}
	if user.Attempts > 0 {
		_ = a.userStore.UpdateUserLoginState(ctx, username, 0, false)
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, user.Role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &erpClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	claims := erpClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "slingerp",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
