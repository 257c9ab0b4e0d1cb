package onboard

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultCodeTTL is how long an issued code stays valid.
	DefaultCodeTTL = 2 * time.Hour
	// DefaultResendCooldown is the minimum gap between code requests.
	DefaultResendCooldown = 60 * time.Second

	// verificationBypassCode is the debugging override inherited from the
	// original system. It is only honored when the manager was built with
	// the bypass flag on; production configurations must leave it off.
	verificationBypassCode int64 = 123456
)

// CodeManager generates, stores, expires, and validates one-time numeric
// verification codes with a per-account resend cooldown.
type CodeManager struct {
	store         UserStore
	notifier      Notifier
	clock         Clock
	random        Random
	logger        Logger
	codeTTL       time.Duration
	cooldown      time.Duration
	bypassEnabled bool
}

// NewCodeManager wires a manager with production defaults: 2h code TTL,
// 60s resend cooldown, bypass disabled.
func NewCodeManager(store UserStore, notifier Notifier) *CodeManager {
	return &CodeManager{
		store:    store,
		notifier: notifier,
		clock:    systemClock{},
		random:   processRandom,
		logger:   defLogger{},
		codeTTL:  DefaultCodeTTL,
		cooldown: DefaultResendCooldown,
	}
}

func (m *CodeManager) WithLogger(logger Logger) *CodeManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *CodeManager) WithClock(clock Clock) *CodeManager {
	if clock != nil {
		m.clock = clock
	}
	return m
}

func (m *CodeManager) WithRandom(random Random) *CodeManager {
	if random != nil {
		m.random = random
	}
	return m
}

func (m *CodeManager) WithCodeTTL(ttl time.Duration) *CodeManager {
	if ttl > 0 {
		m.codeTTL = ttl
	}
	return m
}

func (m *CodeManager) WithResendCooldown(cooldown time.Duration) *CodeManager {
	if cooldown > 0 {
		m.cooldown = cooldown
	}
	return m
}

// WithVerificationBypass toggles the 123456 override. Test and staging only.
func (m *CodeManager) WithVerificationBypass(enabled bool) *CodeManager {
	m.bypassEnabled = enabled
	return m
}

// Issue draws a fresh code for the account, persists it with its expiry and
// resend timestamp, then hands it to the notifier. The code is persisted
// before delivery is attempted: a delivery failure surfaces as
// ErrNotificationFailed but the stored code stands, so resends stay behind
// the cooldown.
func (m *CodeManager) Issue(ctx context.Context, account *Account) (int64, error) {
	now := m.clock.Now()

	if account.LastCodeSentAt != nil && now.Sub(*account.LastCodeSentAt) < m.cooldown {
		return 0, ErrCooldownActive
	}

	code := m.random.Int63n(1_000_000)
	expiry := now.Add(m.codeTTL)

	account.VerificationCode = &code
	account.VerificationExpiresAt = &expiry
	account.LastCodeSentAt = &now

	if _, err := m.store.Save(ctx, account); err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, ErrStoreUnavailable.Message).
			WithTextCode(TextCodeStoreUnavailable)
	}

	subject, body := VerificationEmail(code)
	if err := m.notifier.Send(ctx, account.Email, subject, body); err != nil {
		m.logger.Error("verification code delivery failed for %s: %v", account.Email, err)
		return 0, ErrNotificationFailed
	}

	return code, nil
}

// Verify checks a submitted code against the account's pending one. On match
// the account is enabled and the verification state cleared, restoring the
// invariant that enabled accounts carry no pending code.
func (m *CodeManager) Verify(ctx context.Context, account *Account, submitted int64) error {
	if account.Enabled {
		return ErrAlreadyVerified
	}

	if m.bypassEnabled && submitted == verificationBypassCode {
		m.logger.Warn("verification bypass code accepted for %s", account.Username)
		return m.markVerified(ctx, account)
	}

	now := m.clock.Now()
	if account.VerificationExpiresAt == nil || now.After(*account.VerificationExpiresAt) {
		return ErrCodeExpired
	}

	if account.VerificationCode == nil || submitted != *account.VerificationCode {
		return ErrCodeMismatch
	}

	return m.markVerified(ctx, account)
}

func (m *CodeManager) markVerified(ctx context.Context, account *Account) error {
	account.Enabled = true
	account.ClearVerification()

	if _, err := m.store.Save(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, ErrStoreUnavailable.Message).
			WithTextCode(TextCodeStoreUnavailable)
	}
	return nil
}
