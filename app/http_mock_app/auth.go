package http_mock_app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	configs "fake_api_server/internal/infra/config"

	"github.com/golang-jwt/jwt/v5"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

var ErrUnauthorized = errors.New("unauthorized")

// OwnerResolver 从请求中识别调用者
type OwnerResolver interface {
	ResolveOwner(r *http.Request) (string, error)
}

type ownerCtxKey struct{}

func withOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerCtxKey{}, owner)
}

// OwnerFromContext 由 RequireOwner 注入
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerCtxKey{}).(string)
	return owner
}

// JWTOwnerResolver 校验 HS256 Bearer token，sub 即 owner
type JWTOwnerResolver struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTOwnerResolver(secret string) *JWTOwnerResolver {
	return &JWTOwnerResolver{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

func (j *JWTOwnerResolver) ResolveOwner(r *http.Request) (string, error) {
	h := r.Header.Get(authHeader)
	if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	raw := strings.TrimSpace(h[len(bearerPrefix):])
	if raw == "" {
		return "", fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}

	var claims jwt.RegisteredClaims
	token, err := j.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return sub, nil
}

// HeaderOwnerResolver 直接信任请求头，仅用于开发环境
type HeaderOwnerResolver struct {
	header string
}

func NewHeaderOwnerResolver(header string) *HeaderOwnerResolver {
	return &HeaderOwnerResolver{header: header}
}

func (h *HeaderOwnerResolver) ResolveOwner(r *http.Request) (string, error) {
	owner := strings.TrimSpace(r.Header.Get(h.header))
	if owner == "" {
		return "", fmt.Errorf("%w: missing %s header", ErrUnauthorized, h.header)
	}
	return owner, nil
}

func NewOwnerResolver(c *configs.AppConfig) OwnerResolver {
	if c.AuthConfig.Mode == "header" {
		return NewHeaderOwnerResolver(c.AuthConfig.Header)
	}
	return NewJWTOwnerResolver(c.AuthConfig.JWTSecret)
}

// RequireOwner 未识别出 owner 时返回 401
func RequireOwner(resolver OwnerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, err := resolver.ResolveOwner(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error(), nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(withOwner(r.Context(), owner)))
		})
	}
}
