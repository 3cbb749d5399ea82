package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/imyashkale/inventoryserver/internal/logger"
	"github.com/imyashkale/inventoryserver/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
	ErrInvalidToken      = errors.New("invalid token")
	ErrMissingUserID     = errors.New("missing user ID in token")
)

// TokenValidator verifies a bearer token and returns its claims
type TokenValidator interface {
	Validate(ctx context.Context, token string) (jwt.MapClaims, error)
}

// HMACValidator accepts HS256 tokens signed with a shared secret
type HMACValidator struct {
	secret   []byte
	audience string
}

// NewHMACValidator creates a validator for tokens signed with secret.
// An empty audience skips the aud check.
func NewHMACValidator(secret, audience string) *HMACValidator {
	return &HMACValidator{secret: []byte(secret), audience: audience}
}

func (v *HMACValidator) Validate(_ context.Context, tokenString string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// JWKSet represents a JSON Web Key Set
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string   `json:"kid"`
	Kty string   `json:"kty"`
	Use string   `json:"use"`
	N   string   `json:"n"`
	E   string   `json:"e"`
	X5c []string `json:"x5c"`
}

// Auth0Config holds Auth0 configuration
type Auth0Config struct {
	Domain   string
	Audience string
}

// NewAuth0Config creates a new Auth0 configuration
func NewAuth0Config(domain, audience string) *Auth0Config {
	return &Auth0Config{
		Domain:   domain,
		Audience: audience,
	}
}

// JWKSValidator accepts RS256 tokens issued by an Auth0 tenant
type JWKSValidator struct {
	config  *Auth0Config
	jwksURL string
	client  *http.Client
}

// NewJWKSValidator creates a validator that fetches signing keys from the tenant's JWKS endpoint
func NewJWKSValidator(config *Auth0Config) *JWKSValidator {
	return &JWKSValidator{
		config:  config,
		jwksURL: fmt.Sprintf("https://%s/.well-known/jwks.json", config.Domain),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *JWKSValidator) Validate(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(fmt.Sprintf("https://%s/", v.config.Domain)),
	}
	if v.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.config.Audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		cert, err := v.getPemCert(ctx, token)
		if err != nil {
			return nil, err
		}
		return jwt.ParseRSAPublicKeyFromPEM([]byte(cert))
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// getPemCert fetches the PEM certificate matching the token's kid
func (v *JWKSValidator) getPemCert(ctx context.Context, token *jwt.Token) (string, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok {
		return "", errors.New("missing kid in token header")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}

	var jwks JWKSet
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return "", err
	}

	for _, key := range jwks.Keys {
		if key.Kid == kid && len(key.X5c) > 0 {
			return fmt.Sprintf("-----BEGIN CERTIFICATE-----\n%s\n-----END CERTIFICATE-----", key.X5c[0]), nil
		}
	}
	return "", errors.New("unable to find appropriate key")
}

// Authentication rejects requests without a valid bearer token with 403
func Authentication(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			forbid(c, err)
			return
		}

		claims, err := validator.Validate(c.Request.Context(), tokenString)
		if err != nil {
			forbid(c, err)
			return
		}

		userID, ok := claims["sub"].(string)
		if !ok || userID == "" {
			forbid(c, ErrMissingUserID)
			return
		}

		// Set user ID in context for handlers to use
		c.Set("user_id", userID)
		c.Set("token_claims", claims)

		ctx := logger.ContextWithFields(c.Request.Context(), logrus.Fields{"user_id": userID})
		c.Request = c.Request.WithContext(ctx)
		logger.FromContext(ctx).WithField("path", c.Request.URL.Path).Debug("Authentication successful")

		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrInvalidAuthHeader
	}
	token := strings.TrimSpace(header[len(prefix):])
	if strings.Count(token, ".") != 2 {
		return "", fmt.Errorf("%w: JWT must have 3 parts (header.payload.signature)", ErrInvalidToken)
	}
	return token, nil
}

func forbid(c *gin.Context, err error) {
	logger.FromContext(c.Request.Context()).WithFields(logrus.Fields{
		"path":  c.Request.URL.Path,
		"error": err.Error(),
	}).Warn("Authentication failed")
	c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
		Error:   "forbidden",
		Message: err.Error(),
	})
}
