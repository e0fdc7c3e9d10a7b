package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/nyaruka/phonenumbers"
)

// GetRouterSession resolves the verified claims the token middleware stored
// in the request locals into a session object.
func GetRouterSession(c router.Context, key string) (*SessionObject, error) {
	claims, ok := GetRouterClaims(c, key)
	if !ok {
		return nil, ErrTokenMissing.WithMetadata(map[string]any{
			"context_key": key,
		})
	}
	return sessionFromAuthClaims(claims)
}

// RegisterAuthRoutes mounts the public authentication endpoints.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Signup, controller.RegistrationCreate).
		SetName("auth.signup")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login")

	app.Post(controller.Routes.Refresh, controller.RefreshPost).
		SetName("auth.refresh")

	app.Get(controller.Routes.Logout, controller.LogOut).
		SetName("auth.logout")

	app.Post(controller.Routes.PasswordReset, controller.PasswordResetRequest).
		SetName("pwd-reset.request")
	app.Post(controller.Routes.PasswordReset+"/verify", controller.PasswordResetVerify).
		SetName("pwd-reset.verify")
	app.Post(controller.Routes.PasswordReset+"/execute", controller.PasswordResetExecute).
		SetName("pwd-reset.execute")
}

// RegisterAccountRoutes mounts the account management endpoints behind the
// given token middleware. Admin-only routes stack a role guard on top.
func RegisterAccountRoutes[T any](app router.Router[T], protected router.MiddlewareFunc, opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	adminOnly := RequireRole(controller.ContextKey, RoleAdmin)

	app.Put(controller.Routes.Profile, controller.ProfileUpdate, protected).
		SetName("account.profile.update")

	app.Delete(controller.Routes.Account, controller.AccountDelete, protected).
		SetName("account.delete")

	app.Delete(controller.Routes.Account+"/:id", controller.AccountDelete, protected, adminOnly).
		SetName("account.delete.admin")

	app.Post(controller.Routes.Account+"/:id/suspend", controller.AccountSuspend, protected, adminOnly).
		SetName("account.suspend")
	app.Post(controller.Routes.Account+"/:id/unsuspend", controller.AccountUnsuspend, protected, adminOnly).
		SetName("account.unsuspend")

	app.Get(controller.Routes.Account+"/search", controller.AccountSearch, protected, adminOnly).
		SetName("account.search")
}

type AuthControllerRoutes struct {
	Signup        string
	Login         string
	Logout        string
	Refresh       string
	PasswordReset string
	Profile       string
	Account       string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Resets       *ResetCodeService
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	ContextKey   string
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: controllerErrHandler(defLogger{}),
		ContextKey:   "user",
		Routes: &AuthControllerRoutes{
			Signup:        "/signup",
			Login:         "/login",
			Logout:        "/logout",
			Refresh:       "/refresh-token",
			PasswordReset: "/password-reset",
			Profile:       "/profile",
			Account:       "/accounts",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Resets == nil {
		c.Resets = NewResetCodeService(c.Repo)
	}

	return c
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerResets(resets *ResetCodeService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Resets = resets
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = logger
		c.ErrorHandler = controllerErrHandler(logger)
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func WithControllerErrorHandler(handler router.ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.ErrorHandler = handler
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %s", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "could not parse login payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	if err := a.Auther.Login(ctx, payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	account, err := a.Repo.Accounts().GetByIdentifier(ctx.Context(), payload.GetIdentifier())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "login successful",
		"account": account,
	})
}

func (a *AuthController) RefreshPost(ctx router.Context) error {
	if err := a.Auther.Refresh(ctx); err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "token refreshed",
	})
}

func (a *AuthController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "logged out",
	})
}

// RegistrationCreatePayload is the signup payload
type RegistrationCreatePayload struct {
	Username           string `form:"username" json:"username"`
	Email              string `form:"email" json:"email"`
	Password           string `form:"password" json:"password"`
	ConfirmPassword    string `form:"confirm_password" json:"confirm_password"`
	AccountType        string `form:"account_type" json:"account_type"`
	FirstName          string `form:"first_name" json:"first_name"`
	LastName           string `form:"last_name" json:"last_name"`
	Phone              string `form:"phone" json:"phone"`
	DateOfBirth        string `form:"date_of_birth" json:"date_of_birth"`
	Gender             string `form:"gender" json:"gender"`
	RegistrationNumber string `form:"registration_number" json:"registration_number"`
	SpecialtyID        string `form:"specialty_id" json:"specialty_id"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {

	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Length(3, 60)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		// 72 bytes is the bcrypt input ceiling
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(
			&r.AccountType,
			validation.Required,
			validation.In(RolePatient, RoleDoctor, RoleAdmin),
		),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber)),
		// gender is free-form; clients send values like "F" or "male"
		validation.Field(&r.Gender, validation.Length(0, 50)),
		validation.Field(&r.DateOfBirth, validation.Date("2006-01-02")),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register account parse payload: %s", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "could not parse signup payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register account validate payload: %s", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := RegisterAccountMessage{
		Username:           payload.Username,
		Email:              payload.Email,
		Password:           payload.Password,
		Role:               payload.AccountType,
		FirstName:          payload.FirstName,
		LastName:           payload.LastName,
		Phone:              payload.Phone,
		Gender:             payload.Gender,
		RegistrationNumber: payload.RegistrationNumber,
		SpecialtyID:        payload.SpecialtyID,
	}

	if payload.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", payload.DateOfBirth)
		if err == nil {
			req.DateOfBirth = &dob
		}
	}

	registerAccount := NewRegisterAccountHandler(a.Repo)
	account, err := registerAccount.Execute(ctx.Context(), req)
	if err != nil {
		a.Logger.Error("register account error: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, map[string]any{
		"message": "account created",
		"account": account,
	})
}

// PasswordResetRequestPayload asks for a reset code by email
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *AuthController) PasswordResetRequest(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: %s", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "could not parse reset payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if _, err := a.Resets.Issue(ctx.Context(), payload.Email); err != nil {
		a.Logger.Error("password reset issue error: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "reset code sent",
	})
}

// PasswordResetVerifyPayload checks a code without consuming it
type PasswordResetVerifyPayload struct {
	Email string `form:"email" json:"email"`
	Code  string `form:"code" json:"code"`
}

// Validate will validate the payload
func (r PasswordResetVerifyPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Code,
			validation.Required,
			validation.Length(6, 6),
			is.Digit,
		),
	)
}

func (a *AuthController) PasswordResetVerify(ctx router.Context) error {
	payload := new(PasswordResetVerifyPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "could not parse reset payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	ok, err := a.Resets.Verify(ctx.Context(), payload.Email, payload.Code)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if !ok {
		return a.ErrorHandler(ctx, ErrResetCodeInvalid)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "code verified",
	})
}

// PasswordResetExecutePayload consumes the code and sets the new password
type PasswordResetExecutePayload struct {
	Email           string `form:"email" json:"email"`
	Code            string `form:"code" json:"code"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetExecutePayload) Validate() error {

	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Code,
			validation.Required,
			validation.Length(6, 6),
			is.Digit,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(8, 72),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) PasswordResetExecute(ctx router.Context) error {
	payload := new(PasswordResetExecutePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "could not parse reset payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if err := a.Resets.Consume(ctx.Context(), payload.Email, payload.Code, payload.Password); err != nil {
		a.Logger.Error("password reset execute error: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "password updated",
	})
}

func (a *AuthController) ProfileUpdate(ctx router.Context) error {
	session, err := GetRouterSession(ctx, a.ContextKey)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(UpdateProfileMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "could not parse profile payload").
			WithCode(goerrors.CodeBadRequest))
	}

	// only admins may act on someone else's account
	if payload.AccountID == "" || !session.HasRole(RoleAdmin) {
		payload.AccountID = session.GetUserID()
	}

	updateProfile := NewUpdateProfileHandler(a.Repo).WithLogger(a.Logger)
	affected, err := updateProfile.Execute(ctx.Context(), *payload)
	if err != nil {
		a.Logger.Error("profile update error: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message":       "profile updated",
		"rows_affected": affected,
	})
}

func (a *AuthController) AccountDelete(ctx router.Context) error {
	session, err := GetRouterSession(ctx, a.ContextKey)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	accountID := ctx.Param("id")
	if accountID == "" || !session.HasRole(RoleAdmin) {
		accountID = session.GetUserID()
	}

	deleteAccount := NewDeleteAccountHandler(a.Repo).WithLogger(a.Logger)
	affected, err := deleteAccount.Execute(ctx.Context(), DeleteAccountMessage{
		AccountID: accountID,
	})
	if err != nil {
		a.Logger.Error("account delete error: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	if accountID == session.GetUserID() {
		a.Auther.Logout(ctx)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message":       "account deleted",
		"rows_affected": affected,
	})
}

// SuspendAccountPayload carries the suspension reason
type SuspendAccountPayload struct {
	Reason string `form:"reason" json:"reason"`
}

// Validate will validate the payload
func (r SuspendAccountPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Reason,
			validation.Required,
			validation.Length(3, 500),
		),
	)
}

func (a *AuthController) AccountSuspend(ctx router.Context) error {
	session, err := GetRouterSession(ctx, a.ContextKey)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(SuspendAccountPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "could not parse suspend payload").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	account, err := a.Repo.Accounts().GetByIdentifier(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	actor := ActorRef{ID: session.GetUserID(), Type: RoleAdmin}
	updated, err := a.Repo.Accounts().Suspend(ctx.Context(), actor, account,
		WithTransitionReason(payload.Reason),
	)
	if err != nil {
		a.Logger.Error("account suspend error: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "account suspended",
		"account": updated,
	})
}

func (a *AuthController) AccountUnsuspend(ctx router.Context) error {
	session, err := GetRouterSession(ctx, a.ContextKey)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	account, err := a.Repo.Accounts().GetByIdentifier(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	actor := ActorRef{ID: session.GetUserID(), Type: RoleAdmin}
	updated, err := a.Repo.Accounts().Unsuspend(ctx.Context(), actor, account)
	if err != nil {
		a.Logger.Error("account unsuspend error: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "account reactivated",
		"account": updated,
	})
}

func (a *AuthController) AccountSearch(ctx router.Context) error {
	pattern := strings.TrimSpace(ctx.Query("q", ""))

	accounts, err := a.Repo.Accounts().Search(ctx.Context(), pattern)
	if err != nil {
		a.Logger.Error("account search error: %s", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// ValidatePhoneNumber accepts empty values and otherwise requires a phone
// number that parses for the default region.
func ValidatePhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	num, err := phonenumbers.Parse(s, "DZ")
	if err != nil {
		return fmt.Errorf("invalid phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return errors.New("invalid phone number")
	}
	return nil
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

func controllerErrHandler(logger Logger) router.ErrorHandler {
	return func(c router.Context, err error) error {
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
				WithCode(goerrors.CodeInternal)
		}

		logger.Error("controller error=%s category=%s", richErr.Message, richErr.Category)

		return c.JSON(richErr.Code, map[string]any{
			"error":     richErr.Message,
			"text_code": richErr.TextCode,
		})
	}
}
