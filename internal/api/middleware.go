/**
 * @description
 * Authentication, authorization and throttling middleware for the
 * giving-service.
 *
 * @notes
 * - Member tokens are RS256 JWTs issued by the church's identity provider. The
 *   subject is the member id and an optional "role" claim selects the
 *   capabilities; a token without one is a plain member.
 */
package api

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/app"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
)

type contextKey string

const memberContextKey = contextKey("member")

// Member is the authenticated caller.
type Member struct {
	ID   string
	Role domain.Role
}

var errAuthNotConfigured = errors.New("member authentication is not configured")

// MemberVerifier validates member JWTs against a JWKS endpoint. Keys are
// cached and refetched when an unknown kid shows up, at most once a minute.
type MemberVerifier struct {
	jwksURL string
	client  *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	now       func() time.Time
}

func NewMemberVerifier(jwksURL string) *MemberVerifier {
	return &MemberVerifier{
		jwksURL: strings.TrimSpace(jwksURL),
		client:  &http.Client{Timeout: 10 * time.Second},
		keys:    make(map[string]*rsa.PublicKey),
		now:     time.Now,
	}
}

// Verify parses tokenString and returns the member it identifies.
func (v *MemberVerifier) Verify(ctx context.Context, tokenString string) (Member, error) {
	if v == nil || v.jwksURL == "" {
		return Member{}, errAuthNotConfigured
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid not found in token header")
		}
		return v.publicKey(ctx, kid)
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Member{}, err
	}
	if !token.Valid {
		return Member{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Member{}, errors.New("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return Member{}, errors.New("member id not found in token")
	}

	role := domain.RoleMember
	if raw, ok := claims["role"].(string); ok && raw != "" {
		if role, err = domain.ParseRole(raw); err != nil {
			return Member{}, err
		}
	}
	return Member{ID: sub, Role: role}, nil
}

func (v *MemberVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	if !v.fetchedAt.IsZero() && v.now().Sub(v.fetchedAt) < time.Minute {
		return nil, fmt.Errorf("key with kid %s not found", kid)
	}
	keys, err := v.fetchJWKS(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}
	v.keys = keys
	v.fetchedAt = v.now()
	if key, ok := keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("key with kid %s not found", kid)
}

func (v *MemberVerifier) fetchJWKS(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned status %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, err
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(k.N, k.E)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

func parseRSAPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}
	var exp uint64
	for _, b := range eb {
		exp = exp<<8 | uint64(b)
	}
	if exp == 0 || exp > 1<<31-1 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp)}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if header == "" || token == header || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// MemberAuthMiddleware rejects requests without a valid member token.
func MemberAuthMiddleware(v *MemberVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}
			member, err := v.Verify(r.Context(), token)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), memberContextKey, member)))
		})
	}
}

// OptionalMemberAuth attaches the member when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalMemberAuth(v *MemberVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if member, err := v.Verify(r.Context(), token); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), memberContextKey, member))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCapability must run after MemberAuthMiddleware.
func RequireCapability(c domain.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member, ok := MemberFromContext(r.Context())
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !member.Role.Can(c) {
				respondWithError(w, http.StatusForbidden, "Your role does not allow this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// InternalAuthMiddleware validates the internal API key for server-to-server
// calls. An empty key disables the check.
func InternalAuthMiddleware(requiredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiredKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			provided := r.Header.Get("X-Internal-API-Key")
			if provided == "" || provided != requiredKey {
				respondWithError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware throttles by client IP. Limiter errors fail open.
func RateLimitMiddleware(limiter app.RateLimiter, scope string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			allowed, retryAfter, err := limiter.Allow(r.Context(), scope, clientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable; allowing request", "scope", scope, "error", err)
			}
			if !allowed {
				rateLimited.WithLabelValues(scope).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				respondWithJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"success": false,
					"message": "Too many payment attempts. Please wait a moment and try again.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MemberFromContext retrieves the authenticated member.
func MemberFromContext(ctx context.Context) (Member, bool) {
	member, ok := ctx.Value(memberContextKey).(Member)
	return member, ok
}
