// Package identity verifies bearer tokens issued by the external auth provider.
package identity

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/owaiken/gateway/internal/apperr"
	"github.com/owaiken/gateway/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is the gin context key holding the verified identity key.
const ContextKey = "identityKey"

// ErrMissingSubject indicates a valid token without a subject claim.
var ErrMissingSubject = errors.New("identity: token has no subject")

// Verifier validates provider tokens and extracts the subject.
type Verifier struct {
	secret    []byte
	publicKey *rsa.PublicKey
	issuer    string
	leeway    time.Duration
}

// NewVerifier builds a Verifier from identity settings. A PEM public key selects RS256, otherwise HS256.
func NewVerifier(cfg config.IdentityConfig) (*Verifier, error) {
	v := &Verifier{
		issuer: strings.TrimSpace(cfg.Issuer),
		leeway: cfg.Leeway,
	}
	if pemKey := strings.TrimSpace(cfg.PublicKey); pemKey != "" {
		publicKey, errParse := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
		if errParse != nil {
			return nil, fmt.Errorf("identity: parse public key: %w", errParse)
		}
		v.publicKey = publicKey
		return v, nil
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, config.ErrMissingIdentityKey
	}
	v.secret = []byte(secret)
	return v, nil
}

// Verify validates tokenString and returns its subject.
func (v *Verifier) Verify(tokenString string) (string, error) {
	if v == nil {
		return "", fmt.Errorf("identity: verifier not initialized")
	}
	opts := []jwt.ParserOption{jwt.WithLeeway(v.leeway), jwt.WithExpirationRequired()}
	if v.publicKey != nil {
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	} else {
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, errParse := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if v.publicKey != nil {
			return v.publicKey, nil
		}
		return v.secret, nil
	}, opts...)
	if errParse != nil {
		return "", fmt.Errorf("identity: parse token: %w", errParse)
	}
	if !token.Valid {
		return "", fmt.Errorf("identity: invalid token")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrMissingSubject
	}
	return subject, nil
}

// Middleware rejects requests without a valid bearer token and stores the subject under ContextKey.
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if authHeader == "" || token == authHeader || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apperr.Envelope(apperr.New(apperr.KindUnauthenticated, "Unauthorized")))
			return
		}
		subject, errVerify := v.Verify(strings.TrimSpace(token))
		if errVerify != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apperr.Envelope(apperr.New(apperr.KindUnauthenticated, "Unauthorized")))
			return
		}
		c.Set(ContextKey, subject)
		c.Next()
	}
}

// FromContext returns the verified identity key stored by Middleware.
func FromContext(c *gin.Context) (string, bool) {
	if c == nil {
		return "", false
	}
	key := c.GetString(ContextKey)
	return key, key != ""
}
