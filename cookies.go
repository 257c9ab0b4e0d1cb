package onboard

import (
	"fmt"
	"time"

	"github.com/goliatone/go-router"
)

// Cookie names used across the flow.
const (
	// CookieRegisterToken carries the provisional registration token.
	CookieRegisterToken = "register_token"
	// CookieAuthenticatedToken carries the long-lived authenticated token.
	CookieAuthenticatedToken = "authenticated_token"
)

// Cookie Max-Age values in seconds. The register cookie outlives its token
// claim on purpose: the 15 minute claim, not the cookie, is the authority.
const (
	RegisterCookieMaxAge      = 24 * 60 * 60
	AuthenticatedCookieMaxAge = 7 * 24 * 60 * 60
)

// SetCookie describes one Set-Cookie header the flow wants emitted. MaxAge 0
// clears the cookie.
type SetCookie struct {
	Name   string
	Value  string
	MaxAge int
}

// BuildSetCookie is the single Set-Cookie formatting routine. Every cookie
// this package emits goes through it so the security attributes cannot drift
// between the registration and authenticated cookies.
func BuildSetCookie(name, value string, maxAge int) string {
	return fmt.Sprintf("%s=%s; Path=/; Max-Age=%d; HttpOnly; Secure; SameSite=None", name, value, maxAge)
}

// Header renders the cookie as a Set-Cookie header value.
func (c SetCookie) Header() string {
	return BuildSetCookie(c.Name, c.Value, c.MaxAge)
}

// Clears reports whether this cookie removes a previous value.
func (c SetCookie) Clears() bool {
	return c.MaxAge == 0
}

// Apply writes the cookie through the router context. Max-Age translates to
// an Expires instant because that is what the router cookie carries.
func (c SetCookie) Apply(ctx router.Context, clock Clock) {
	if clock == nil {
		clock = systemClock{}
	}

	expires := clock.Now().Add(time.Duration(c.MaxAge) * time.Second)
	if c.Clears() {
		expires = clock.Now().Add(-time.Hour * 24 * 365)
	}

	ctx.Cookie(&router.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "None",
	})
}

// newRegisterCookie wraps a registration token.
func newRegisterCookie(token string) SetCookie {
	return SetCookie{Name: CookieRegisterToken, Value: token, MaxAge: RegisterCookieMaxAge}
}

// newAuthenticatedCookie wraps an authenticated token.
func newAuthenticatedCookie(token string) SetCookie {
	return SetCookie{Name: CookieAuthenticatedToken, Value: token, MaxAge: AuthenticatedCookieMaxAge}
}

// clearRegisterCookie expires the registration cookie immediately.
func clearRegisterCookie() SetCookie {
	return SetCookie{Name: CookieRegisterToken, Value: "", MaxAge: 0}
}
