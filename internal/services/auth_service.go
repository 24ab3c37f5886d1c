package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"labelcheck/internal/config"
)

// AuthService issues and validates admin JWTs. The single admin account is
// configured through the environment; the password never leaves memory
// unhashed.
type AuthService struct {
	secret       []byte
	username     string
	passwordHash []byte
}

type JWTClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewAuthService hashes the configured admin password once at startup.
func NewAuthService(cfg *config.Config) (*AuthService, error) {
	if cfg.AdminPassword == "" {
		return nil, errors.New("ADMIN_PASSWORD is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &AuthService{
		secret:       []byte(cfg.JWTSecret),
		username:     cfg.AdminUsername,
		passwordHash: hash,
	}, nil
}

// Login verifies the admin credentials and returns a signed token.
func (as *AuthService) Login(username, password string) (string, error) {
	if username != as.username {
		return "", errors.New("invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword(as.passwordHash, []byte(password)); err != nil {
		return "", errors.New("invalid username or password")
	}

	claims := JWTClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(as.secret)
}

// ValidateToken parses and verifies a token, returning its claims.
func (as *AuthService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return as.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
