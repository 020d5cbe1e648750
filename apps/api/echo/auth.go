package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/enrollment"
	"github.com/kagisom/imfundo/core/user"
)

var (
	contextTokenKey   = "userToken"
	contextAccountKey = "account"
)

// newAppJWTConfig returns the JWT auth middleware config.
func newAppJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
// Acceptance and role claims are advisory routing hints; the dashboard
// guard re-checks the database on every request.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
	IsAccepted   bool   `json:"is_accepted,omitempty"`
	PrimaryRole  string `json:"primary_role,omitempty"`
}

func GetAccountClaims(conf *core.Config, acct enrollment.Account, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   acct.Usr.ID,
			Audience:  "Imfundo",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        acct.Usr.Email,
		IsAccepted:   acct.IsAccepted(),
		PrimaryRole:  string(acct.PrimaryRole()),
	}
}

func authenticate(ctx context.Context, email, pwd string, opts *Options) (enrollment.Account, *Claims, error) {
	usr, err := opts.UserSvc.Authenticate(ctx, email, pwd)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrInvalidLogin:
			return enrollment.Account{}, nil, errAuthenticationFailed
		case user.ErrDeactivated:
			return enrollment.Account{}, nil, errAccountDeactivated
		}
		return enrollment.Account{}, nil, errors.Wrap(err, "authenticating")
	}

	acct, err := opts.EnrollSvc.GetAccount(ctx, usr.ID)
	if err != nil {
		return enrollment.Account{}, nil, errors.Wrap(err, "loading account")
	}
	return acct, GetAccountClaims(opts.Conf, acct), nil
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextAccount loads the account for the authenticated user, caching
// it on the request context.
func getContextAccount(ctx echo.Context, opts *Options, clms ...Claims) (enrollment.Account, error) {
	if acct, ok := ctx.Get(contextAccountKey).(enrollment.Account); ok {
		return acct, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return enrollment.Account{}, errors.Wrap(err, "getting context claims")
		}
	}

	acct, err := opts.EnrollSvc.GetAccount(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return enrollment.Account{}, errors.Wrap(err, "loading account")
	}
	ctx.Set(contextAccountKey, acct)
	return acct, nil
}

func refreshToken(ctx echo.Context, opts *Options) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	acct, err := getContextAccount(ctx, opts, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context account")
	}

	// check if user is still active
	if !acct.Usr.Active() {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(opts.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := GetAccountClaims(opts.Conf, acct, claims.OrigIssuedAt)
	token, err := GenerateToken(opts.Conf, newClaims)
	if err != nil {
		return "", errors.Wrap(err, "generating token")
	}
	opts.UserSvc.NotifyRefreshed(acct.Usr)
	return token, nil
}
