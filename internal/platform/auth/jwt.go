package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Claims carried by a session token. The subject is the user's application
// identifier (UUID); the wallet address is the identity the upstream signer
// collaborator authenticated.
type Claims struct {
	jwt.RegisteredClaims
	UID           string `json:"uid"`
	WalletAddress string `json:"wallet_address"`
	Role          string `json:"role"`
}

// IssueToken mints an HS256 session token after a successful wallet login.
func IssueToken(secret []byte, userID uuid.UUID, uid, wallet string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:           uid,
		WalletAddress: wallet,
		Role:          string(role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// JWTMiddleware validates the bearer token and places the caller's identity
// on the request context.
func JWTMiddleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}
			role, err := ParseRole(claims.Role)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token role")
			}

			ctx := WithIdentity(c.Request().Context(), userID, role, claims.WalletAddress)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
