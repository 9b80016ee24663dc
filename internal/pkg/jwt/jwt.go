package jwt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/auth"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	TokenTypeAccess = "access"
	TokenTypeSSE    = "sse"
)

// Service verifies the HS256 tokens issued by the HRIS auth service and
// mints short-lived stream tokens for SSE clients.
type Service interface {
	JWTAuth() *jwtauth.JWTAuth
	GenerateAccessToken(claims auth.Claims, ttl time.Duration) (token string, expiresAt int64, err error)
	GenerateSSEToken(claims auth.Claims) (token string, expiresIn int, err error)
	ValidateSSEToken(tokenString string) (auth.Claims, error)
	ClaimsFromMap(claims map[string]interface{}) (auth.Claims, error)
	RevokeToken(token string)
	IsTokenRevoked(token string) bool
}

type JWTService struct {
	tokenAuth     *jwtauth.JWTAuth
	revokedTokens map[string]int64
	mu            sync.RWMutex
}

func NewJWTService(secretKey string) Service {
	return &JWTService{
		tokenAuth:     jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
		revokedTokens: make(map[string]int64),
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

// GenerateAccessToken issues an access token. The engine only verifies
// tokens in production; this serves operators and tests.
func (j *JWTService) GenerateAccessToken(claims auth.Claims, ttl time.Duration) (token string, expiresAt int64, err error) {
	expiresAt = time.Now().Add(ttl).Unix()
	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":    claims.UserID,
		"company_id": claims.CompanyID,
		"role":       string(claims.Role),
		"type":       TokenTypeAccess,
		"exp":        expiresAt,
	})
	return tokenString, expiresAt, err
}

// GenerateSSEToken generates a short-lived token for SSE connections
func (j *JWTService) GenerateSSEToken(claims auth.Claims) (token string, expiresIn int, err error) {
	// SSE tokens are short-lived (5 minutes)
	expiresIn = 300
	expiresAt := time.Now().Add(5 * time.Minute).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":    claims.UserID,
		"company_id": claims.CompanyID,
		"role":       string(claims.Role),
		"type":       TokenTypeSSE,
		"exp":        expiresAt,
	})
	if err != nil {
		return "", 0, err
	}

	return tokenString, expiresIn, nil
}

// ValidateSSEToken validates an SSE token and returns its claims
func (j *JWTService) ValidateSSEToken(tokenString string) (auth.Claims, error) {
	if j.IsTokenRevoked(tokenString) {
		return auth.Claims{}, auth.ErrTokenRevoked
	}

	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}

	tokenType, ok := token.Get("type")
	if !ok || tokenType != TokenTypeSSE {
		return auth.Claims{}, auth.ErrInvalidToken
	}

	raw, err := token.AsMap(context.Background())
	if err != nil {
		return auth.Claims{}, auth.ErrInvalidToken
	}
	return j.ClaimsFromMap(raw)
}

// ClaimsFromMap reads the identity claims of a decoded token.
func (j *JWTService) ClaimsFromMap(claims map[string]interface{}) (auth.Claims, error) {
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return auth.Claims{}, auth.ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	companyID, _ := claims["company_id"].(string)
	return auth.Claims{UserID: userID, CompanyID: companyID, Role: auth.Role(role)}, nil
}

func (j *JWTService) RevokeToken(token string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.revokedTokens[token] = time.Now().Unix()
}

func (j *JWTService) IsTokenRevoked(token string) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	_, revoked := j.revokedTokens[token]
	return revoked
}
