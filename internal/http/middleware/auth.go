package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/AICC2024/video-review/internal/platform/ctxutil"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

// Claims accepted on review tokens. Username falls back to the subject.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

type AuthConfig struct {
	Secret   string
	Required bool
}

type AuthMiddleware struct {
	log      *logger.Logger
	secret   []byte
	// when false, requests without a token pass through anonymously
	required bool
}

func NewAuthMiddleware(log *logger.Logger, cfg AuthConfig) (*AuthMiddleware, error) {
	if cfg.Required && strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("auth required but JWT_SECRET_KEY is empty")
	}
	return &AuthMiddleware{
		log:      log.With("Middleware", "AuthMiddleware"),
		secret:   []byte(cfg.Secret),
		required: cfg.Required,
	}, nil
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		if tokenString == "" {
			if !am.required {
				c.Next()
				return
			}
			abortUnauthorized(c, "missing or invalid token")
			return
		}
		username, err := am.parse(tokenString)
		if err != nil {
			if !am.required && len(am.secret) == 0 {
				c.Next()
				return
			}
			am.log.Debug("token rejected", "error", err)
			abortUnauthorized(c, err.Error())
			return
		}
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{Username: username})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (am *AuthMiddleware) parse(tokenString string) (string, error) {
	if len(am.secret) == 0 {
		return "", errors.New("token verification is not configured")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return am.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	username := strings.TrimSpace(claims.Username)
	if username == "" {
		username = strings.TrimSpace(claims.Subject)
	}
	if username == "" {
		return "", errors.New("token has no subject")
	}
	return username, nil
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"message": msg, "code": "unauthorized"},
	})
}

func extractTokenFromAll(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
