package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials covers unknown identities and wrong secrets alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers malformed, forged and expired tokens alike.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Config holds authentication configuration.
type Config struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTExpiration time.Duration `mapstructure:"jwt_expiration"`
	Users         []User        `mapstructure:"users"`
}

// User is one entry of the fixed credential table. PasswordHash is a
// bcrypt hash; plaintext secrets never appear in configuration.
type User struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// Claims represents the JWT claims bound to an issued token.
type Claims struct {
	Username string `json:"user"`
	jwt.StandardClaims
}

// Manager issues and validates tokens against a fixed credential table.
type Manager struct {
	config Config
	now    func() time.Time
}

func NewManager(config Config) *Manager {
	return &Manager{config: config, now: time.Now}
}

// dummyHash keeps the unknown-user path as expensive as the known-user
// path so login timing does not reveal which identities exist.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("placeholder"), bcrypt.MinCost)

// Login verifies the identity/secret pair and issues a signed token with
// the configured expiry bound to the identity.
func (m *Manager) Login(username, password string) (string, error) {
	var hash string
	for _, user := range m.config.Users {
		if user.Username == username {
			hash = user.PasswordHash
			break
		}
	}
	if hash == "" {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return m.generateToken(username)
}

func (m *Manager) generateToken(username string) (string, error) {
	claims := &Claims{
		Username: username,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: m.now().Add(m.config.JWTExpiration).Unix(),
			IssuedAt:  m.now().Unix(),
			Issuer:    "iot-fog-pipeline",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.JWTSecret))
}

// Validate checks signature and expiry, returning the bound claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// HashPassword creates a bcrypt hash for provisioning the credential table.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

type contextKey struct{}

// IdentityFromContext returns the authenticated username stored by Middleware.
func IdentityFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(contextKey{}).(string)
	return username, ok
}

// Middleware authenticates every request before the wrapped handler runs.
// The token comes from the Authorization header; the "token" query
// parameter is accepted as a fallback for websocket dashboard clients,
// which cannot set headers from a browser.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, "invalid authorization format")
				return
			}
			tokenString = parts[1]
		} else if queryToken := r.URL.Query().Get("token"); queryToken != "" {
			tokenString = queryToken
		}

		if tokenString == "" {
			unauthorized(w, "access token required")
			return
		}

		claims, err := m.Validate(tokenString)
		if err != nil {
			unauthorized(w, "token is invalid or expired")
			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"message":%q}`, message)
}
