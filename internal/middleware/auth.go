package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is where Authenticate stores the caller's user id in the
// gin context.
const UserIDKey = "user_id"

// Auth mints and validates the bearer tokens that stand in for the
// identity layer. The trading core trusts whatever user id a valid
// token carries.
type Auth struct {
	secret []byte
	expiry time.Duration
}

type claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret), expiry: 24 * time.Hour}
}

func (a *Auth) GenerateToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
		},
	})
	return token.SignedString(a.secret)
}

// Authenticate rejects requests without a valid bearer token and puts
// the token's user id on the context for handlers.
func (a *Auth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no token provided"})
			return
		}
		userID, err := a.validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func (a *Auth) validate(tokenString string) (string, error) {
	var cl claims
	token, err := jwt.ParseWithClaims(tokenString, &cl, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || cl.UserID == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return cl.UserID, nil
}

func extractToken(c *gin.Context) string {
	bearer := c.GetHeader("Authorization")
	if parts := strings.Split(bearer, " "); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return c.Query("token")
}

// UserID reads the authenticated user id set by Authenticate.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
