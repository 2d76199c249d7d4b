package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "dogao-order-service"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginDisabled      = errors.New("operator login disabled")
	ErrInvalidToken       = errors.New("invalid session token")
)

type AuthConfig struct {
	Username     string
	PasswordHash string
	Secret       string
	TTL          time.Duration
	Now          func() time.Time
}

// Auth issues and checks the HS256 session tokens of the operator console.
type Auth struct {
	username string
	hash     []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

type authContextKey struct{}

func NewAuth(cfg AuthConfig) *Auth {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Auth{
		username: cfg.Username,
		hash:     []byte(cfg.PasswordHash),
		secret:   []byte(cfg.Secret),
		ttl:      ttl,
		now:      now,
	}
}

// HashPassword produces the bcrypt hash stored in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (a *Auth) Login(username, password string) (string, time.Time, error) {
	if len(a.secret) == 0 || len(a.hash) == 0 {
		return "", time.Time{}, ErrLoginDisabled
	}
	if username != a.username {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := a.now()
	expiresAt := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (a *Auth) parse(token string) (*jwt.RegisteredClaims, error) {
	if len(a.secret) == 0 {
		return nil, ErrLoginDisabled
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify reports whether token is a live session token.
func (a *Auth) Verify(token string) error {
	_, err := a.parse(token)
	return err
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "missing session token")
			return
		}
		claims, err := a.parse(token)
		if err != nil {
			writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "unauthorized", "invalid session token")
			return
		}
		ctx := context.WithValue(r.Context(), authContextKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func operatorFromContext(ctx context.Context) string {
	value, _ := ctx.Value(authContextKey{}).(string)
	return value
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

// isPublicEndpoint lists the routes customers reach without a session.
func isPublicEndpoint(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	switch r.URL.Path {
	case "/healthz", "/metrics", "/api/auth/login":
		return true
	case "/api/catalog":
		return r.Method == http.MethodGet
	}
	if strings.HasPrefix(r.URL.Path, "/realtime/") {
		return true
	}
	return isPublicVoucherPath(r)
}

func isPublicVoucherPath(r *http.Request) bool {
	parts := pathParts(r, "/api/vouchers/")
	if len(parts) != 2 {
		return false
	}
	switch parts[1] {
	case "validate":
		return r.Method == http.MethodGet || r.Method == http.MethodPost
	case "qr.png":
		return r.Method == http.MethodGet
	default:
		return false
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.auth == nil {
		writeError(w, requestIDFromRequest(r), http.StatusServiceUnavailable, "login_disabled", "operator login disabled")
		return
	}
	var req loginRequest
	if !decodeRequest(w, r, &req, false) {
		return
	}
	token, expiresAt, err := h.auth.Login(strings.TrimSpace(req.Username), req.Password)
	switch {
	case errors.Is(err, ErrLoginDisabled):
		writeError(w, requestIDFromRequest(r), http.StatusServiceUnavailable, "login_disabled", "operator login disabled")
		return
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, requestIDFromRequest(r), http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	case err != nil:
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}
