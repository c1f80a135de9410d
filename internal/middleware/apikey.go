package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultAPIKeyHeader is read when APIKeyConfig.HeaderName is empty.
	DefaultAPIKeyHeader = "X-API-Key"

	apiKeyNameContextKey = "api_key_name"
)

// APIKeyConfig configures APIKey.
type APIKeyConfig struct {
	// ValidKeys maps each accepted key to a name used in logs.
	ValidKeys  map[string]string
	HeaderName string
	// Optional lets requests without a key through; a wrong key is still
	// rejected.
	Optional bool
}

// APIKey authenticates requests against a fixed set of keys.
type APIKey struct {
	config APIKeyConfig
}

func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = DefaultAPIKeyHeader
	}
	return &APIKey{config: config}
}

// RequireAPIKey rejects every request that does not carry one of validKeys.
func RequireAPIKey(validKeys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{ValidKeys: validKeys}).Middleware()
}

// Middleware reads the key from the configured header, the api_key query
// parameter or an Authorization: Bearer header, in that order.
func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ak.extract(c)

		if key == "" {
			if ak.config.Optional {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "API key required. Send it in the " + ak.config.HeaderName + " header, the api_key query parameter or as a Bearer token.",
				"code":    "UNAUTHORIZED",
			})
			return
		}

		name, ok := ak.lookup(key)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid API key.",
				"code":    "UNAUTHORIZED",
			})
			return
		}

		c.Set(apiKeyNameContextKey, name)
		c.Next()
	}
}

func (ak *APIKey) extract(c *gin.Context) string {
	if key := c.GetHeader(ak.config.HeaderName); key != "" {
		return key
	}
	if key := c.Query("api_key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// lookup compares in constant time against every configured key.
func (ak *APIKey) lookup(key string) (string, bool) {
	var (
		name  string
		found bool
	)
	for validKey, validName := range ak.config.ValidKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
			name, found = validName, true
		}
	}
	return name, found
}

// APIKeyName returns the name of the key that authenticated the request.
func APIKeyName(c *gin.Context) (string, bool) {
	name, ok := c.Get(apiKeyNameContextKey)
	if !ok {
		return "", false
	}
	s, ok := name.(string)
	return s, ok
}
