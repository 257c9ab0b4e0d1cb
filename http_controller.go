package onboard

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterOnboardingRoutes mounts the onboarding endpoints on the router.
func RegisterOnboardingRoutes[T any](app router.Router[T], opts ...ControllerOption) {

	controller := NewOnboardingController(opts...)

	app.Post(controller.Routes.Register, controller.Register).
		SetName("onboard.register.post")

	app.Put(controller.Routes.UpdatePhone, controller.UpdatePhone).
		SetName("onboard.phone.put")

	app.Post(controller.Routes.EmailCode, controller.RequestEmailCode).
		SetName("onboard.email-code.post")

	app.Post(controller.Routes.EmailCodeVerify, controller.VerifyEmailCode).
		SetName("onboard.email-verify.post")

	app.Put(controller.Routes.UpdatePassword, controller.SetPassword).
		SetName("onboard.password.put")
}

type ControllerRoutes struct {
	Register        string
	UpdatePhone     string
	EmailCode       string
	EmailCodeVerify string
	UpdatePassword  string
}

type OnboardingController struct {
	Debug  bool
	Logger Logger
	Flow   *Registrar
	Clock  Clock
	Routes *ControllerRoutes
}

type ControllerOption func(*OnboardingController) *OnboardingController

func NewOnboardingController(opts ...ControllerOption) *OnboardingController {
	c := &OnboardingController{
		Logger: defLogger{},
		Clock:  systemClock{},
		Routes: &ControllerRoutes{
			Register:        "/auth/register",
			UpdatePhone:     "/auth/update/phone",
			EmailCode:       "/auth/email/code",
			EmailCodeVerify: "/auth/email/code/verify",
			UpdatePassword:  "/auth/update/password",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Flow == nil {
		panic("Missing Registrar in onboarding controller...")
	}

	return c
}

func WithControllerFlow(flow *Registrar) ControllerOption {
	return func(c *OnboardingController) *OnboardingController {
		c.Flow = flow
		return c
	}
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *OnboardingController) *OnboardingController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerClock(clock Clock) ControllerOption {
	return func(c *OnboardingController) *OnboardingController {
		if clock != nil {
			c.Clock = clock
		}
		return c
	}
}

func WithControllerDebug(debug bool) ControllerOption {
	return func(c *OnboardingController) *OnboardingController {
		c.Debug = debug
		return c
	}
}

// RegisterPayload is the registration request body.
type RegisterPayload struct {
	DisplayName string `form:"display_name" json:"display_name"`
	Email       string `form:"email" json:"email"`
	BirthDate   string `form:"birth_date" json:"birth_date"`
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DisplayName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.BirthDate, validation.Required, validation.Date("2006-01-02")),
	)
}

func (a *OnboardingController) Register(ctx router.Context) error {
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload: %s", err)
		return a.renderError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register validate payload: %s", err)
		return a.renderValidation(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= ONBOARD REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	account, cookie, err := a.Flow.Register(ctx.Context(), RegisterInput{
		DisplayName: payload.DisplayName,
		Email:       payload.Email,
		BirthDate:   payload.BirthDate,
	})
	if err != nil {
		return a.renderError(ctx, err)
	}

	cookie.Apply(ctx, a.Clock)

	return ctx.JSON(fiber.StatusCreated, NewAccountResponse(account))
}

// PhonePayload carries the phone update.
type PhonePayload struct {
	Username    string `form:"username" json:"username"`
	PhoneNumber string `form:"phone_number" json:"phone_number"`
}

// Validate will run validation rules
func (r PhonePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.PhoneNumber, validation.Required),
	)
}

func (a *OnboardingController) UpdatePhone(ctx router.Context) error {
	payload := new(PhonePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("phone parse payload: %s", err)
		return a.renderError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidation(ctx, err)
	}

	token := ctx.Cookies(CookieRegisterToken)

	if _, err := a.Flow.UpdatePhone(ctx.Context(), token, payload.Username, payload.PhoneNumber); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{
		"message": "Phone number updated successfully",
	})
}

// EmailCodePayload targets an account for code issuance.
type EmailCodePayload struct {
	Username string `form:"username" json:"username"`
}

// Validate will run validation rules
func (r EmailCodePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
	)
}

func (a *OnboardingController) RequestEmailCode(ctx router.Context) error {
	payload := new(EmailCodePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("email code parse payload: %s", err)
		return a.renderError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidation(ctx, err)
	}

	token := ctx.Cookies(CookieRegisterToken)

	if err := a.Flow.RequestEmailCode(ctx.Context(), token, payload.Username); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{
		"message": "Verification code sent",
	})
}

// VerifyCodePayload submits the code for confirmation.
type VerifyCodePayload struct {
	Username string `form:"username" json:"username"`
	Code     int64  `form:"code" json:"code"`
}

// Validate will run validation rules
func (r VerifyCodePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		// zero is a legal code, so no Required here
		validation.Field(&r.Code, validation.Min(int64(0)), validation.Max(int64(999999))),
	)
}

func (a *OnboardingController) VerifyEmailCode(ctx router.Context) error {
	payload := new(VerifyCodePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("verify code parse payload: %s", err)
		return a.renderError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidation(ctx, err)
	}

	token := ctx.Cookies(CookieRegisterToken)

	if err := a.Flow.ConfirmEmailCode(ctx.Context(), token, payload.Username, payload.Code); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]string{
		"message": "Email verified successfully",
	})
}

// PasswordPayload finalizes onboarding with a password.
type PasswordPayload struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r PasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
	)
}

func (a *OnboardingController) SetPassword(ctx router.Context) error {
	payload := new(PasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password parse payload: %s", err)
		return a.renderError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidation(ctx, err)
	}

	token := ctx.Cookies(CookieRegisterToken)

	authCookie, clearCookie, err := a.Flow.SetPassword(ctx.Context(), token, payload.Username, payload.Password)
	if err != nil {
		return a.renderError(ctx, err)
	}

	authCookie.Apply(ctx, a.Clock)
	clearCookie.Apply(ctx, a.Clock)

	return ctx.JSON(fiber.StatusOK, map[string]string{
		"message": "Password updated successfully",
	})
}

func (a *OnboardingController) renderError(ctx router.Context, err error) error {
	status := StatusForError(err)
	body := NewErrorResponse(err, ctx.Path(), a.Clock.Now())

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(body))
	}

	return ctx.JSON(status, body)
}

func (a *OnboardingController) renderValidation(ctx router.Context, err error) error {
	return ctx.JSON(fiber.StatusBadRequest, ErrorResponse{
		Message:   err.Error(),
		Error:     "VALIDATION_FAILED",
		Path:      ctx.Path(),
		Timestamp: a.Clock.Now(),
	})
}
