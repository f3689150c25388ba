package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/StageLive/internal/infra/appctx"
	"github.com/qrave1/StageLive/internal/infra/ports/http/dto"
)

const CookieName = "jwt"

type TokenParser interface {
	ParseJWT(token string) (uuid.UUID, error)
}

// JWTAuthMiddleware принимает токен из cookie jwt или из заголовка Authorization: Bearer
func JWTAuthMiddleware(parser TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := tokenFromRequest(c)
			if token == "" {
				return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "missing or malformed jwt"})
			}

			userID, err := parser.ParseJWT(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid or expired jwt"})
			}

			c.SetRequest(
				c.Request().WithContext(
					appctx.WithUserID(c.Request().Context(), userID),
				),
			)

			return next(c)
		}
	}
}

func tokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	return ""
}

// BuildCookieDomain возвращает значение для cookie.Domain или пустую строку, если Domain не нужно задавать.
// domain может быть как хостом, так и URL (cfg.Domain).
func BuildCookieDomain(domain string) string {
	host := domain
	if u, err := url.Parse(domain); err == nil && u.Host != "" {
		host = u.Host
	}

	// Убираем порт: example.com:8080 -> example.com
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSpace(host))

	// localhost и IP адреса - без Domain
	if host == "" || host == "localhost" || net.ParseIP(host) != nil {
		return ""
	}

	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}

	// api.example.com -> .example.com
	return "." + strings.Join(parts[len(parts)-2:], ".")
}
