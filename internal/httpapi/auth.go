package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"shopmate/backend/internal/domain"
	"shopmate/backend/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrEmailTaken         = errors.New("email is already registered")
)

// AuthManager issues and verifies access tokens for dashboard accounts. The user
// store is the source of truth; nothing is cached between logins.
type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, email string) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, email string, passwordHash string) error
}

type shopCustomClaims struct {
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

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || strings.TrimSpace(req.Password) == "" {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	user, err := a.userStore.GetUser(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, ErrInvalidCredentials
		}
		return domain.LoginResponse{}, err
	}

	stored := user.PasswordHash
	if !isPasswordHash(stored) {
		// Accounts imported with a plain-text password are upgraded on first login.
		if stored == "" || stored != req.Password {
			return domain.LoginResponse{}, ErrInvalidCredentials
		}
		hashed, err := hashPassword(stored)
		if err != nil {
			return domain.LoginResponse{}, fmt.Errorf("hash password: %w", err)
		}
		if err := a.userStore.UpdateUserPassword(ctx, email, hashed); err != nil {
			log.Printf("[auth] WARN: could not upgrade password for %s: %v", email, err)
		}
		stored = hashed
	}

	if !verifyPassword(stored, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !user.Active {
		return domain.LoginResponse{}, ErrAccountInactive
	}

	role := user.Role
	if role == "" {
		role = domain.RoleOwner
	}
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(email, role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// Register creates an owner account. The new account starts with no products, sales,
// employees or suppliers.
func (a *AuthManager) Register(ctx context.Context, req domain.RegisterRequest) (domain.Profile, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Profile{}, fmt.Errorf("%w: name is required", store.ErrInvalid)
	}
	email := normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return domain.Profile{}, fmt.Errorf("%w: a valid email is required", store.ErrInvalid)
	}
	if len(req.Password) < 6 {
		return domain.Profile{}, fmt.Errorf("%w: password must be at least 6 characters", store.ErrInvalid)
	}

	existing, err := a.userStore.GetUser(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Profile{}, err
	}
	if existing != nil {
		return domain.Profile{}, ErrEmailTaken
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("hash password: %w", err)
	}
	photo := strings.TrimSpace(req.Photo)
	err = a.userStore.CreateUser(ctx, domain.UserAccount{
		Email:        email,
		Name:         name,
		Photo:        photo,
		PasswordHash: passwordHash,
		Role:         domain.RoleOwner,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	})
	if errors.Is(err, store.ErrConflict) {
		return domain.Profile{}, ErrEmailTaken
	}
	if err != nil {
		return domain.Profile{}, err
	}

	return domain.Profile{Email: email, Name: name, Photo: photo}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &shopCustomClaims{}
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
	return domain.Actor{Email: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(email, role string, expiresAt time.Time) (string, error) {
	claims := shopCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "shopmate",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
