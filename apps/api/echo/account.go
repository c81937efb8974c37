package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
	"github.com/darasahq/darasa/storage/files"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type accountApi struct {
	svc      user.Service
	storage  *files.Storage
	validate *validator.Validate
	conf     *core.Config
}

// registerAccountAPI mounts the same account handler set under each role portal.
// The portal prefix decides which role the handlers act on.
func registerAccountAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc user.Service,
	storage *files.Storage,
	validate *validator.Validate,
	conf *core.Config,
) {
	api := accountApi{
		svc:      svc,
		storage:  storage,
		validate: validate,
		conf:     conf,
	}

	portals := []struct {
		prefix string
		role   string
	}{
		{"/admins", user.RoleAdmin},
		{"/teachers", user.RoleTeacher},
		{"/students", user.RoleStudent},
	}
	for _, p := range portals {
		api.registerPortal(g.Group(p.prefix), jwt, p.role)
	}

	ug := g.Group("/users", jwt)
	ug.POST("/token-refresh", api.refreshToken)
}

func (api *accountApi) registerPortal(rg *echo.Group, jwt echo.MiddlewareFunc, role string) {
	// un-authed endpoints
	// TODO: rate limit `/reset-password-link` & `/reset-password`
	rg.POST("/register", api.register(role))
	rg.POST("/login", api.login(role))
	rg.POST("/verify-otp", api.verifyOTP)
	rg.POST("/resend-otp", api.resendOTP)
	rg.POST("/reset-password-link", api.resetPasswordLink)
	rg.PATCH("/reset-password", api.resetPassword)

	// authed endpoints
	ag := rg.Group("", jwt)
	ag.PATCH("/change-password", api.changePassword)
	ag.GET("", api.query(role))

	// detail endpoints
	ag.GET("/:id", api.retrieve, api.ctxObjMiddleware(role))
	ag.PUT("/update/:id", api.update, api.ctxObjMiddleware(role))
	ag.DELETE("/delete/:id", api.destroy, adminMiddleware(), api.ctxObjMiddleware(role))
	ag.POST("/upload/:id", api.upload, api.ctxObjMiddleware(role))
}

// Handlers

func (api *accountApi) register(role string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data user.NewUser
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to NewUser")
		}
		data.Role = role
		if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
			return err
		}

		usr, err := api.svc.Register(ctx.Request().Context(), data)
		if err != nil {
			return errors.Wrap(err, "registering user")
		}

		return ctx.JSON(http.StatusCreated, usr)
	}
}

func (api *accountApi) login(role string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data LoginRequest
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to LoginRequest")
		}
		if err := data.Validate(api.validate); err != nil {
			return err
		}

		claims, err := authenticate(ctx.Request().Context(), data.Username, data.Password, role, api.svc, api.conf)
		if err != nil {
			return err
		}
		token, err := GenerateToken(api.conf, claims)
		if err != nil {
			return errors.Wrap(err, "generating token")
		}

		return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
	}
}

func (api *accountApi) verifyOTP(ctx echo.Context) error {
	var data VerifyOTPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyOTPRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.VerifyEmail(ctx.Request().Context(), data.Email, data.Code)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *accountApi) resendOTP(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResendOTP(ctx.Request().Context(), data.Email); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "A new verification code has been sent to your email address."})
}

func (api *accountApi) resetPasswordLink(ctx echo.Context) error {
	var data EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *accountApi) changePassword(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.ChangePassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.svc.ChangePassword(ctx.Request().Context(), ctxUsr.ID, data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been changed."})
}

func (api *accountApi) query(role string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := getContextUser(ctx, api.svc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		// non-admins may only list their own portal
		if !ctxUsr.IsAdmin() && ctxUsr.Role != role {
			return errHttpForbidden
		}

		filter := new(user.QueryFilter)
		if err := ctx.Bind(filter); err != nil {
			return ctx.JSON(http.StatusOK, []user.User{})
		}
		filter.Clean()
		filter.Role = role
		ordering := new(Ordering)
		ordering.Bind(ctx)

		users, err := api.svc.Filter(ctx.Request().Context(), filter, ordering.Orderings...)
		if err != nil {
			return errors.Wrap(err, "querying users")
		}
		if users == nil {
			users = []user.User{}
		}
		return ctx.JSON(http.StatusOK, users)
	}
}

func (api *accountApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *accountApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		// `IsActive` can only be changed by admin
		// `Username` and `Email` can only be changed by admin for now
		if data.IsActive != nil || data.Username != "" || data.Email != "" {
			return errHttpForbidden
		}
	}

	if err := data.Validate(ctx.Request().Context(), usr, api.validate, api.svc); err != nil {
		return err
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}

	return ctx.JSON(http.StatusOK, usr)
}

func (api *accountApi) destroy(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) upload(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	fh, err := ctx.FormFile("picture")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "picture", Error: "this field is required"})
	}

	path, err := api.storage.Save(fh, files.PicturesDir)
	if err != nil {
		return errors.Wrap(err, "saving profile picture")
	}

	oldPath := usr.ProfilePicture
	usr, err = api.svc.SetProfilePicture(ctx.Request().Context(), usr.ID, path)
	if err != nil {
		return errors.Wrap(err, "setting profile picture")
	}
	if err := api.storage.Remove(oldPath); err != nil {
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "removing old profile picture"))
	}

	return ctx.JSON(http.StatusOK, usr)
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc, api.conf)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

// ctxObjMiddleware loads the target account into the context when the caller
// is the account owner or an admin, and the account belongs to this portal.
func (api *accountApi) ctxObjMiddleware(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, api.svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			if ctx.Param("id") == ctxUsr.ID || ctxUsr.IsAdmin() {
				if usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					if usr.Role != role {
						return errHttpNotFound
					}
					ctx.Set("object", usr)
					return next(ctx)
				} else if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	EmailRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	VerifyOTPRequest struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"code" validate:"required,len=6,numeric"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (er *EmailRequest) Validate(validate *validator.Validate) error {
	er.Email = core.CleanString(er.Email, true /* lower */)
	return validate.Struct(er)
}

func (vr *VerifyOTPRequest) Validate(validate *validator.Validate) error {
	vr.Email = core.CleanString(vr.Email, true /* lower */)
	vr.Code = core.CleanString(vr.Code)
	return validate.Struct(vr)
}
