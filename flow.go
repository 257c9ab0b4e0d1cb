package onboard

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/nyaruka/phonenumbers"
)

// Token claim lifetimes. The register cookie deliberately outlives its claim
// (see cookies.go).
const (
	DefaultRegisterTokenTTL = 15 * time.Minute
	DefaultAuthTokenTTL     = 7 * 24 * time.Hour
)

// RegisterInput is the data collected at the first onboarding step.
type RegisterInput struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	BirthDate   string `json:"birth_date"`
}

// Registrar coordinates the onboarding state machine: register, phone
// update, email-code issuance and confirmation, password set. Identity
// between steps travels in a signed token, never in server-side session
// state.
type Registrar struct {
	store       UserStore
	tokens      TokenService
	hasher      PasswordHasher
	codes       *CodeManager
	usernames   *UsernameAllocator
	logger      Logger
	registerTTL time.Duration
	authTTL     time.Duration
	useHashid   bool
}

// NewRegistrar builds a flow around the given collaborators. The config
// supplies the signing key and lifetimes; notifier delivers codes.
func NewRegistrar(store UserStore, notifier Notifier, cfg Config) *Registrar {
	tokens := NewTokenService([]byte(cfg.GetSigningKey()), nil)

	codes := NewCodeManager(store, notifier).
		WithCodeTTL(cfg.GetCodeTTL()).
		WithResendCooldown(cfg.GetResendCooldown()).
		WithVerificationBypass(cfg.GetVerificationBypassEnabled())

	registerTTL := cfg.GetRegisterTokenTTL()
	if registerTTL <= 0 {
		registerTTL = DefaultRegisterTokenTTL
	}
	authTTL := cfg.GetAuthTokenTTL()
	if authTTL <= 0 {
		authTTL = DefaultAuthTokenTTL
	}

	return &Registrar{
		store:       store,
		tokens:      tokens,
		hasher:      BcryptHasher{},
		codes:       codes,
		usernames:   NewUsernameAllocator(store),
		logger:      defLogger{},
		registerTTL: registerTTL,
		authTTL:     authTTL,
	}
}

func (r *Registrar) WithLogger(logger Logger) *Registrar {
	if logger != nil {
		r.logger = logger
		r.codes.WithLogger(logger)
		r.usernames.WithLogger(logger)
	}
	return r
}

// WithClock propagates a time source to the code manager, allocator, and
// token service.
func (r *Registrar) WithClock(clock Clock) *Registrar {
	if clock != nil {
		r.codes.WithClock(clock)
		r.usernames.WithClock(clock)
		if ts, ok := r.tokens.(*TokenServiceImpl); ok {
			ts.WithClock(clock)
		}
	}
	return r
}

func (r *Registrar) WithRandom(random Random) *Registrar {
	if random != nil {
		r.codes.WithRandom(random)
		r.usernames.WithRandom(random)
	}
	return r
}

func (r *Registrar) WithTokenService(tokens TokenService) *Registrar {
	if tokens != nil {
		r.tokens = tokens
	}
	return r
}

func (r *Registrar) WithPasswordHasher(hasher PasswordHasher) *Registrar {
	if hasher != nil {
		r.hasher = hasher
	}
	return r
}

// WithHashids derives deterministic account IDs from the email instead of
// random UUIDs.
func (r *Registrar) WithHashids(enabled bool) *Registrar {
	r.useHashid = enabled
	return r
}

// TokenService exposes the codec, mainly for route guards sharing the key.
func (r *Registrar) TokenService() TokenService {
	return r.tokens
}

// CodeManager exposes the verification code manager.
func (r *Registrar) CodeManager() *CodeManager {
	return r.codes
}

// Register creates an unverified account and mints its registration token.
//
// The email pre-check is an optimization; the store's unique constraint is
// the arbiter under concurrency, and its rejection is translated back to
// ErrEmailAlreadyTaken. Username allocation loops until the store accepts a
// handle: the allocator's fallback is not re-checked, so an insert rejection
// on the username key simply triggers another allocation.
func (r *Registrar) Register(ctx context.Context, input RegisterInput) (*Account, SetCookie, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if _, err := r.store.FindByEmail(ctx, email); err == nil {
		return nil, SetCookie{}, ErrEmailAlreadyTaken
	} else if !isStoreNotFound(err) {
		return nil, SetCookie{}, goerrors.Wrap(err, goerrors.CategoryInternal, ErrStoreUnavailable.Message).
			WithTextCode(TextCodeStoreUnavailable)
	}

	account := &Account{
		DisplayName: input.DisplayName,
		Email:       email,
		BirthDate:   input.BirthDate,
	}

	if r.useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			account.ID = id
		}
	}

	if role, err := r.store.FindRoleByAuthority(ctx, AuthorityUser); err == nil && role != nil {
		account.GrantAuthority(role.Authority)
	} else if err != nil && !isStoreNotFound(err) {
		return nil, SetCookie{}, goerrors.Wrap(err, goerrors.CategoryInternal, ErrStoreUnavailable.Message).
			WithTextCode(TextCodeStoreUnavailable)
	}

	saved, err := r.createWithUniqueUsername(ctx, account)
	if err != nil {
		return nil, SetCookie{}, err
	}

	token, err := r.tokens.Issue(saved.Username, r.registerTTL)
	if err != nil {
		return nil, SetCookie{}, err
	}

	r.logger.Info("account registered: %s", saved.Username)

	return saved, newRegisterCookie(token), nil
}

// createWithUniqueUsername allocates and persists, reallocating whenever the
// store rejects the username key. The loop is bounded by store
// responsiveness, not an attempt counter.
func (r *Registrar) createWithUniqueUsername(ctx context.Context, account *Account) (*Account, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during registration")
		}

		username, err := r.usernames.Allocate(ctx, account.DisplayName)
		if err != nil {
			return nil, err
		}
		account.Username = username

		saved, err := r.store.Save(ctx, account)
		if err == nil {
			return saved, nil
		}

		var rich *goerrors.Error
		if goerrors.As(err, &rich) {
			switch rich.TextCode {
			case TextCodeUsernameTaken:
				continue
			case TextCodeEmailTaken:
				return nil, ErrEmailAlreadyTaken
			}
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, ErrStoreUnavailable.Message).
			WithTextCode(TextCodeStoreUnavailable)
	}
}

// UpdatePhone sets the phone number on the token bearer's account. The
// number is validated and normalized to E.164 before persisting.
func (r *Registrar) UpdatePhone(ctx context.Context, token, username, phoneNumber string) (*Account, error) {
	if err := r.requireSubject(token, username); err != nil {
		return nil, err
	}

	account, err := r.loadAccount(ctx, username)
	if err != nil {
		return nil, err
	}

	parsed, err := phonenumbers.Parse(phoneNumber, "")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return nil, goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	account.PhoneNumber = phonenumbers.Format(parsed, phonenumbers.E164)

	saved, err := r.store.Save(ctx, account)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, ErrStoreUnavailable.Message).
			WithTextCode(TextCodeStoreUnavailable)
	}

	return saved, nil
}

// RequestEmailCode issues a one-time code for the token bearer's account and
// mails it.
func (r *Registrar) RequestEmailCode(ctx context.Context, token, username string) error {
	if err := r.requireSubject(token, username); err != nil {
		return err
	}

	account, err := r.loadAccount(ctx, username)
	if err != nil {
		return err
	}

	_, err = r.codes.Issue(ctx, account)
	return err
}

// ConfirmEmailCode validates a submitted code for the token bearer's account.
func (r *Registrar) ConfirmEmailCode(ctx context.Context, token, username string, code int64) error {
	if err := r.requireSubject(token, username); err != nil {
		return err
	}

	account, err := r.loadAccount(ctx, username)
	if err != nil {
		return err
	}

	return r.codes.Verify(ctx, account, code)
}

// SetPassword hashes and stores the password, then swaps the provisional
// identity for an authenticated one: the 7-day authenticated cookie is
// issued and the registration cookie is cleared in the same response. The
// account must have confirmed its email code first.
func (r *Registrar) SetPassword(ctx context.Context, token, username, password string) (SetCookie, SetCookie, error) {
	if err := r.requireSubject(token, username); err != nil {
		return SetCookie{}, SetCookie{}, err
	}

	account, err := r.loadAccount(ctx, username)
	if err != nil {
		return SetCookie{}, SetCookie{}, err
	}

	if !account.Enabled {
		return SetCookie{}, SetCookie{}, ErrAccountNotVerified
	}

	hash, err := r.hasher.Hash(password)
	if err != nil {
		var rich *goerrors.Error
		if goerrors.As(err, &rich) {
			return SetCookie{}, SetCookie{}, rich
		}
		return SetCookie{}, SetCookie{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	account.PasswordHash = hash

	if _, err := r.store.Save(ctx, account); err != nil {
		return SetCookie{}, SetCookie{}, goerrors.Wrap(err, goerrors.CategoryInternal, ErrStoreUnavailable.Message).
			WithTextCode(TextCodeStoreUnavailable)
	}

	authToken, err := r.tokens.Issue(account.Username, r.authTTL)
	if err != nil {
		return SetCookie{}, SetCookie{}, err
	}

	r.logger.Info("account password set: %s", account.Username)

	return newAuthenticatedCookie(authToken), clearRegisterCookie(), nil
}

// requireSubject enforces the per-step token gate: present, valid, and
// issued for the target username.
func (r *Registrar) requireSubject(token, username string) error {
	if strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}

	subject, err := r.tokens.Verify(token)
	if err != nil {
		return err
	}

	if subject != username {
		return ErrUsernameMismatch
	}

	return nil
}

func (r *Registrar) loadAccount(ctx context.Context, username string) (*Account, error) {
	account, err := r.store.FindByUsername(ctx, username)
	if err != nil {
		if isStoreNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, ErrStoreUnavailable.Message).
			WithTextCode(TextCodeStoreUnavailable)
	}
	return account, nil
}
