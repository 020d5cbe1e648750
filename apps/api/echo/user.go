package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/enrollment"
)

type authApi struct {
	opts *Options
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := authApi{opts: opts}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)

	// authed endpoints
	tg := ag.Group("", jwt)
	tg.POST("/token-refresh", api.refreshToken)
	tg.GET("/session", api.session)
	tg.POST("/logout", api.logout)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	acct, claims, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.opts)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.opts.Conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	api.setSessionCookie(ctx, token)
	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:   token,
		Account: newAccountResponse(acct),
	})
}

// session reflects the caller's current account back at them; the frontend
// polls it from the pending page to pick up approval decisions.
func (api *authApi) session(ctx echo.Context) error {
	acct, err := getContextAccount(ctx, api.opts)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	return ctx.JSON(http.StatusOK, newAccountResponse(acct))
}

func (api *authApi) logout(ctx echo.Context) error {
	acct, err := getContextAccount(ctx, api.opts)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}
	api.opts.UserSvc.SignOut(acct.Usr)
	api.clearSessionCookie(ctx)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.opts)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	api.setSessionCookie(ctx, token)
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

// the session cookie lets browser navigation reach guarded dashboard pages
func (api *authApi) setSessionCookie(ctx echo.Context, token string) {
	ctx.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(api.opts.Conf.Server.JWTExpirationDelta.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (api *authApi) clearSessionCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	LoginResponse struct {
		Token   string          `json:"token"`
		Account AccountResponse `json:"account"`
	}

	// AccountResponse is the session snapshot returned to the frontend:
	// the account plus the derived routing fields.
	AccountResponse struct {
		enrollment.Account
		IsAccepted    bool   `json:"is_accepted"`
		PrimaryRole   string `json:"primary_role"`
		DashboardPath string `json:"dashboard_path,omitempty"`
	}

	DashboardResponse struct {
		Dashboard string          `json:"dashboard"`
		Account   AccountResponse `json:"account"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func newAccountResponse(acct enrollment.Account) AccountResponse {
	primary := acct.PrimaryRole()
	resp := AccountResponse{
		Account:     acct,
		IsAccepted:  acct.IsAccepted(),
		PrimaryRole: string(primary),
	}
	if resp.IsAccepted {
		resp.DashboardPath = primary.Path()
	}
	return resp
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
