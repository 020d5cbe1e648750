package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/enrollment"
	"github.com/kagisom/imfundo/core/user"
	filestoresvc "github.com/kagisom/imfundo/services/filestore"
)

// uploads larger than this are rejected before reaching the store
const maxUploadBytes = 10 << 20

type enrollmentApi struct {
	opts *Options
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := enrollmentApi{opts: opts}

	// un-authed endpoints: applicants have no credential yet
	rg := g.Group("/register")
	rg.POST("/learner", api.registerLearner)
	rg.POST("/staff", api.registerStaff)
	g.POST("/uploads/:bucket", api.upload)

	// authed endpoints
	pg := g.Group("/profile", jwt)
	pg.PUT("", api.updateProfile)

	adg := g.Group("/admin/applications", jwt, reviewerMiddleware(opts))
	adg.GET("", api.queryApplications)
	adg.POST("/:id/accept", api.acceptApplication)
	adg.POST("/:id/reject", api.rejectApplication)
}

// Handlers

func (api *enrollmentApi) registerLearner(ctx echo.Context) error {
	var data enrollment.LearnerApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LearnerApplication")
	}
	if err := data.Validate(ctx.Request().Context(), api.opts.Validate, api.opts.UserSvc); err != nil {
		return err
	}

	acct, err := api.opts.EnrollSvc.RegisterLearner(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == user.ErrDuplicateAccount {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: user.ErrDuplicateAccount.Error()})
		}
		return errors.Wrap(err, "registering learner")
	}
	return ctx.JSON(http.StatusCreated, newAccountResponse(acct))
}

func (api *enrollmentApi) registerStaff(ctx echo.Context) error {
	var data enrollment.StaffApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StaffApplication")
	}
	if err := data.Validate(ctx.Request().Context(), api.opts.Validate, api.opts.UserSvc); err != nil {
		return err
	}

	acct, err := api.opts.EnrollSvc.RegisterStaff(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == user.ErrDuplicateAccount {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: user.ErrDuplicateAccount.Error()})
		}
		return errors.Wrap(err, "registering staff")
	}
	return ctx.JSON(http.StatusCreated, newAccountResponse(acct))
}

// upload stores an application document and returns the URL to reference
// in the registration form. Uploads happen before the credential exists,
// so this endpoint is un-authed; the bucket whitelist and size cap bound it.
func (api *enrollmentApi) upload(ctx echo.Context) error {
	bucket := ctx.Param("bucket")
	if !filestoresvc.ValidBucket(bucket) {
		return errHttpNotFound
	}

	fileHdr, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "a file is required"})
	}
	if fileHdr.Size > maxUploadBytes {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "file too large"})
	}

	src, err := fileHdr.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer src.Close()

	url, err := api.opts.FileStore.Upload(ctx.Request().Context(), bucket, fileHdr.Filename, src)
	if err != nil {
		return errors.Wrap(err, "storing upload")
	}
	return ctx.JSON(http.StatusCreated, UploadResponse{URL: url})
}

func (api *enrollmentApi) updateProfile(ctx echo.Context) error {
	acct, err := getContextAccount(ctx, api.opts)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	var data enrollment.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	profile, err := api.opts.EnrollSvc.UpdateProfile(ctx.Request().Context(), acct.Usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, profile)
}

func (api *enrollmentApi) queryApplications(ctx echo.Context) error {
	var statuses []enrollment.ApplicationStatus
	if s := enrollment.ApplicationStatus(ctx.QueryParam("status")); s != "" {
		if !s.Valid() {
			return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "unknown status"})
		}
		statuses = append(statuses, s)
	}

	apps, err := api.opts.EnrollSvc.QueryApplications(ctx.Request().Context(), statuses...)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []enrollment.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *enrollmentApi) acceptApplication(ctx echo.Context) error {
	return api.decideApplication(ctx, enrollment.StatusAccepted)
}

func (api *enrollmentApi) rejectApplication(ctx echo.Context) error {
	return api.decideApplication(ctx, enrollment.StatusRejected)
}

func (api *enrollmentApi) decideApplication(ctx echo.Context, status enrollment.ApplicationStatus) error {
	acct, err := getContextAccount(ctx, api.opts)
	if err != nil {
		return errors.Wrap(err, "getting context account")
	}

	assignment, err := api.opts.EnrollSvc.SetApplicationStatus(ctx.Request().Context(), acct, ctx.Param("id"), status)
	if err != nil {
		switch errors.Cause(err) {
		case enrollment.ErrApplicationNotFound:
			return errHttpNotFound
		case enrollment.ErrPermissionDenied:
			return errHttpForbidden
		case enrollment.ErrInvalidStatus:
			return core.NewValidationError(err)
		}
		return errors.Wrap(err, "deciding application")
	}
	return ctx.JSON(http.StatusOK, assignment)
}

type UploadResponse struct {
	URL string `json:"url"`
}
