package echoapi

import (
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kagisom/imfundo/core/enrollment"
)

const sessionCookieName = "session"

// adminMiddleware restricts an endpoint to accepted admins.
func adminMiddleware(opts *Options) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			acct, err := getContextAccount(ctx, opts)
			if err != nil {
				return errors.Wrap(err, "getting context account")
			}
			if acct.IsAdmin() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// reviewerMiddleware admits accepted admins and accepted principals; the
// service layer enforces what each may review.
func reviewerMiddleware(opts *Options) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			acct, err := getContextAccount(ctx, opts)
			if err != nil {
				return errors.Wrap(err, "getting context account")
			}
			if acct.IsAdmin() || acct.IsPrincipal() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// dashboardGuard is the single routing decision point for dashboard pages.
// It resolves the visitor's account fresh on every request and redirects:
//
//	no (or invalid) token        -> /auth
//	no accepted application      -> /pending
//	accepted, wrong dashboard    -> the primary role's dashboard
//
// requiredRole == "" admits any authenticated user (the pending page).
func dashboardGuard(opts *Options, requiredRole enrollment.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := parseRequestClaims(ctx, opts)
			if err != nil {
				return ctx.Redirect(http.StatusFound, "/auth")
			}

			acct, err := opts.EnrollSvc.GetAccount(ctx.Request().Context(), claims.Subject)
			if err != nil {
				return ctx.Redirect(http.StatusFound, "/auth")
			}
			if !acct.Usr.Active() {
				return ctx.Redirect(http.StatusFound, "/auth")
			}

			if requiredRole == "" {
				ctx.Set(contextAccountKey, acct)
				return next(ctx)
			}

			if !acct.IsAccepted() {
				return ctx.Redirect(http.StatusFound, "/pending")
			}
			if primary := acct.PrimaryRole(); primary != requiredRole {
				return ctx.Redirect(http.StatusFound, primary.Path())
			}

			ctx.Set(contextAccountKey, acct)
			return next(ctx)
		}
	}
}

// parseRequestClaims extracts and verifies the JWT from the Authorization
// header or the session cookie. Dashboard pages are opened by browser
// navigation, which cannot set headers; API clients use the header.
func parseRequestClaims(ctx echo.Context, opts *Options) (Claims, error) {
	raw := ""
	if auth := ctx.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		raw = strings.TrimPrefix(auth, "Bearer ")
	} else if cookie, err := ctx.Cookie(sessionCookieName); err == nil {
		raw = cookie.Value
	}
	if raw == "" {
		return Claims{}, errUnauthorized
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(opts.Conf.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return Claims{}, errUnauthorized
	}
	return *claims, nil
}

// registerDashboardRoutes mounts one guarded page per role plus the
// pending page. Every dashboard path is declared here so routing rules
// live in a single table.
func registerDashboardRoutes(app *echo.Echo, opts *Options) {
	for role, path := range enrollment.RolePaths {
		app.GET(path, dashboardPage(role), dashboardGuard(opts, role))
	}
	app.GET("/pending", pendingPage, dashboardGuard(opts, ""))
}

func dashboardPage(role enrollment.Role) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		acct, ok := ctx.Get(contextAccountKey).(enrollment.Account)
		if !ok {
			return errUnauthorized
		}
		return ctx.JSON(http.StatusOK, DashboardResponse{
			Dashboard: string(role),
			Account:   newAccountResponse(acct),
		})
	}
}

func pendingPage(ctx echo.Context) error {
	acct, ok := ctx.Get(contextAccountKey).(enrollment.Account)
	if !ok {
		return errUnauthorized
	}
	return ctx.JSON(http.StatusOK, newAccountResponse(acct))
}
