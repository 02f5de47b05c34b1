package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
	TokenIDKey  contextKey = "token_id"
	TokenExpKey contextKey = "token_exp"
)

// CookieName is the session cookie set on signin.
const CookieName = "token"

// SubjectChecker confirms that a token's subject still exists.
type SubjectChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type JWTConfig struct {
	Tokens   *TokenIssuer
	Revoker  Revoker
	Subjects SubjectChecker
	Logger   zerolog.Logger
}

// JWTMiddleware authenticates the request from the Authorization bearer
// header or, failing that, the session cookie.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := bearerToken(c)
			if tokenStr == "" {
				return apperr.Unauthorized("Couldn't authorize, no token found.")
			}

			claims, err := cfg.Tokens.Parse(tokenStr)
			if err != nil {
				return apperr.Unauthorized("Couldn't authorize")
			}

			ctx := c.Request().Context()
			if cfg.Revoker != nil {
				revoked, err := cfg.Revoker.IsRevoked(ctx, claims.ID)
				if err != nil {
					cfg.Logger.Error().Err(err).Str("jti", claims.ID).Msg("revocation check failed")
					return apperr.Unauthorized("Couldn't authorize")
				}
				if revoked {
					return apperr.Unauthorized("Couldn't authorize")
				}
			}

			userID := uuid.MustParse(claims.Subject)
			if cfg.Subjects != nil {
				ok, err := cfg.Subjects.Exists(ctx, userID)
				if err != nil {
					return err
				}
				if !ok {
					return apperr.Unauthorized("User not found")
				}
			}

			ctx = context.WithValue(ctx, UserIDKey, userID)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			ctx = context.WithValue(ctx, TokenIDKey, claims.ID)
			if claims.ExpiresAt != nil {
				ctx = context.WithValue(ctx, TokenExpKey, claims.ExpiresAt.Time)
			}
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// WithIdentity returns ctx carrying the given caller. Handlers and tests use
// it to act on behalf of a user without a token.
func WithIdentity(ctx context.Context, userID uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRoleKey, role)
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

// TokenFromContext returns the jti and expiry of the token that
// authenticated the request.
func TokenFromContext(ctx context.Context) (string, time.Time) {
	jti, _ := ctx.Value(TokenIDKey).(string)
	exp, _ := ctx.Value(TokenExpKey).(time.Time)
	return jti, exp
}
