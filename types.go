package onboard

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// TokenService signs and verifies the compact claims carried between
// onboarding steps. Expiry is the only invalidation path; there is no
// revocation table.
type TokenService interface {
	Issue(subject string, ttl time.Duration) (string, error)
	Verify(token string) (subject string, err error)
}

// UserStore is the durable account collaborator. Save is an upsert and must
// reject duplicate unique keys (email, username); that rejection, not the
// caller's pre-check, is the true arbiter of check-then-insert races.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Save(ctx context.Context, account *Account) (*Account, error)
	FindRoleByAuthority(ctx context.Context, authority string) (*Role, error)
}

// PasswordHasher turns a plaintext password into an opaque digest.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, hash string) error
}

// Notifier delivers a message to an address. Implementations should treat the
// body as HTML.
type Notifier interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Clock is injectable so code and token expiry can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// Random is the draw source for verification codes and username
// disambiguators. Implementations must be safe for concurrent use.
type Random interface {
	Intn(n int) int
	Int63n(n int64) int64
}

// Config holds onboarding options. The signing key is cold-start
// configuration; never log it.
type Config interface {
	GetSigningKey() string
	GetRegisterTokenTTL() time.Duration
	GetAuthTokenTTL() time.Duration
	GetCodeTTL() time.Duration
	GetResendCooldown() time.Duration
	GetVerificationBypassEnabled() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// lockedRand guards a math/rand source so concurrent registrations can share
// one draw source.
type lockedRand struct {
	mu  sync.Mutex
	src *rand.Rand
}

func newLockedRand(seed int64) *lockedRand {
	return &lockedRand{src: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Intn(n)
}

func (r *lockedRand) Int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Int63n(n)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ONBOARD "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ONBOARD "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ONBOARD "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ONBOARD "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
