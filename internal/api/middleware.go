package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"city-planner/backend/internal/auth"
	"city-planner/backend/internal/ratelimit"
)

const (
	identityKey = "identity"
	claimsKey   = "claims"
)

// Identity resolves the caller for rate limiting. A bearer token verified by
// v gives "user:<sub>", an anonymous request gives "ip:<addr>". Requests
// carrying a token that does not verify are rejected.
func Identity(v auth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				c.Set(identityKey, ratelimit.Identifier("", c.RealIP()))
				return next(c)
			}
			if v == nil {
				return unauthorized(c, "bearer tokens are not accepted by this server")
			}
			claims, err := v.Verify(c.Request().Context(), raw)
			if err != nil {
				return unauthorized(c, "invalid token: "+err.Error())
			}
			c.Set(claimsKey, claims)
			c.Set(identityKey, ratelimit.Identifier(claims.Subject, c.RealIP()))
			return next(c)
		}
	}
}

// RequireScope admits only callers whose verified token grants scope.
func RequireScope(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, _ := c.Get(claimsKey).(*auth.Claims)
			if claims == nil {
				return unauthorized(c, "a bearer token is required")
			}
			if !claims.HasScope(scope) {
				return writeProblem(c, http.StatusForbidden, "Forbidden", "token lacks the "+scope+" scope")
			}
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, detail string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="city-planner"`)
	return writeProblem(c, http.StatusUnauthorized, "Unauthorized", detail)
}

// identity returns the caller set by Identity.
func identity(c echo.Context) string {
	id, _ := c.Get(identityKey).(string)
	if id == "" {
		return ratelimit.Identifier("", c.RealIP())
	}
	return id
}

// RateLimit applies the global tier quota per caller.
func RateLimit(l *ratelimit.Limiter, now func() time.Time) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := l.Check(identity(c))
			h := c.Response().Header()
			h.Set("X-RateLimit-Remaining", strconv.Itoa(r.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(r.ResetAt.Unix(), 10))
			if !r.Allowed {
				h.Set("Retry-After", strconv.Itoa(r.RetryAfter(now())))
				return writeProblem(c, http.StatusTooManyRequests, "Too Many Requests", r.Message)
			}
			return next(c)
		}
	}
}
