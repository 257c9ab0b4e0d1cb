package onboard

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// localsAccountKey is where the guard stashes the authenticated account.
const localsAccountKey = "onboard:account"

// RouteGuard protects routes with the authenticated token cookie. On success
// the account rides in the request locals; use AccountFromContext to fetch it.
type RouteGuard struct {
	tokens     TokenService
	store      UserStore
	logger     Logger
	clock      Clock
	cookieName string
}

// NewRouteGuard builds a guard validating the authenticated cookie against
// the given token service and store.
func NewRouteGuard(tokens TokenService, store UserStore) *RouteGuard {
	return &RouteGuard{
		tokens:     tokens,
		store:      store,
		logger:     defLogger{},
		clock:      systemClock{},
		cookieName: CookieAuthenticatedToken,
	}
}

func (g *RouteGuard) WithLogger(logger Logger) *RouteGuard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

func (g *RouteGuard) WithClock(clock Clock) *RouteGuard {
	if clock != nil {
		g.clock = clock
	}
	return g
}

// WithCookieName points the guard at a different token cookie, e.g.
// CookieRegisterToken for routes inside the onboarding funnel.
func (g *RouteGuard) WithCookieName(name string) *RouteGuard {
	if name != "" {
		g.cookieName = name
	}
	return g
}

// Protected returns middleware that rejects requests without a valid token
// for an enabled account.
func (g *RouteGuard) Protected() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			account, err := g.authenticate(ctx)
			if err != nil {
				return g.reject(ctx, err)
			}

			ctx.Locals(localsAccountKey, account)
			return hf(ctx)
		}
	}
}

func (g *RouteGuard) authenticate(ctx router.Context) (*Account, error) {
	token := ctx.Cookies(g.cookieName)
	if token == "" {
		return nil, ErrMissingToken
	}

	subject, err := g.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	account, err := g.store.FindByUsername(ctx.Context(), subject)
	if err != nil {
		if isStoreNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, ErrStoreUnavailable.Message).
			WithTextCode(TextCodeStoreUnavailable)
	}

	if !account.Enabled {
		return nil, ErrAccountNotVerified
	}

	return account, nil
}

func (g *RouteGuard) reject(ctx router.Context, err error) error {
	g.logger.Info("request rejected by route guard %s: %v", ctx.Path(), err)

	return ctx.JSON(StatusForError(err), NewErrorResponse(err, ctx.Path(), g.clock.Now()))
}

// AccountFromContext fetches the account placed by the guard, or nil when the
// route is unguarded.
func AccountFromContext(ctx router.Context) *Account {
	account, _ := ctx.Locals(localsAccountKey).(*Account)
	return account
}
