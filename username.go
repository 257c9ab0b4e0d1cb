package onboard

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	// usernameMaxLen caps the final handle; base + 6 digit suffix.
	usernameMaxLen  = 15
	usernameBaseLen = usernameMaxLen - 6
)

// Process-wide disambiguation state, initialized once at process start and
// never reset. The counter survives across allocator instances so concurrent
// registrations in the same process keep drifting apart.
var (
	usernameCounter atomic.Int64
	processRandom   = newLockedRand(time.Now().UnixNano())
)

var trailingFiveDigits = regexp.MustCompile(`[0-9]{5}$`)

// UsernameAllocator derives short, human-readable handles from display names
// with a six-digit disambiguator mixed from time, a shared counter, and
// random draws.
type UsernameAllocator struct {
	store  UserStore
	clock  Clock
	random Random
	logger Logger
}

// NewUsernameAllocator returns an allocator backed by the given store.
func NewUsernameAllocator(store UserStore) *UsernameAllocator {
	return &UsernameAllocator{
		store:  store,
		clock:  systemClock{},
		random: processRandom,
		logger: defLogger{},
	}
}

func (a *UsernameAllocator) WithLogger(logger Logger) *UsernameAllocator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

func (a *UsernameAllocator) WithClock(clock Clock) *UsernameAllocator {
	if clock != nil {
		a.clock = clock
	}
	return a
}

func (a *UsernameAllocator) WithRandom(random Random) *UsernameAllocator {
	if random != nil {
		a.random = random
	}
	return a
}

// Allocate derives a candidate handle and checks it against the store.
//
// On the astronomically rare collision it falls back once to base plus a
// fresh random six-digit suffix WITHOUT re-checking uniqueness. That weak
// guarantee is intentional; callers that need a hard guarantee must rely on
// the store's unique constraint and retry on rejection.
func (a *UsernameAllocator) Allocate(ctx context.Context, displayName string) (string, error) {
	base := cleanUsernameBase(displayName)

	suffix := a.uniqueSixDigits()
	candidate := base + fmt.Sprintf("%06d", suffix)

	taken, err := a.isTaken(ctx, candidate)
	if err != nil {
		return "", err
	}

	if taken {
		fallback := a.random.Int63n(1_000_000)
		candidate = base + fmt.Sprintf("%06d", fallback)
		a.logger.Warn("username collision, using unchecked fallback %s", candidate)
	}

	return candidate, nil
}

// cleanUsernameBase lowercases the display name, strips a trailing run of
// exactly five digits (defends against re-deriving from an already suffixed
// handle), and truncates to nine runes. Truncation counts runes, not bytes,
// so multibyte display names stay valid UTF-8.
func cleanUsernameBase(displayName string) string {
	base := strings.ToLower(strings.TrimSpace(displayName))
	base = trailingFiveDigits.ReplaceAllString(base, "")
	if runes := []rune(base); len(runes) > usernameBaseLen {
		base = string(runes[:usernameBaseLen])
	}
	return base
}

// uniqueSixDigits mixes wall-clock millis, the shared counter, and two random
// draws so concurrent calls in the same millisecond still diverge.
func (a *UsernameAllocator) uniqueSixDigits() int64 {
	timePart := a.clock.Now().UnixMilli() % 1_000_000
	counterPart := (usernameCounter.Add(1) - 1) % 1_000
	randomPart := int64(a.random.Intn(1_000))

	return ((timePart+counterPart+randomPart)*31 + int64(a.random.Intn(97))) % 1_000_000
}

func (a *UsernameAllocator) isTaken(ctx context.Context, username string) (bool, error) {
	_, err := a.store.FindByUsername(ctx, username)
	if err == nil {
		return true, nil
	}
	if isStoreNotFound(err) {
		return false, nil
	}
	return false, goerrors.Wrap(err, goerrors.CategoryInternal, ErrStoreUnavailable.Message).
		WithTextCode(TextCodeStoreUnavailable)
}

// isStoreNotFound normalizes the shapes a missing record can take: the
// domain sentinel, the repository's own not-found error, and any rich error
// in the not-found category.
func isStoreNotFound(err error) bool {
	if err == nil {
		return false
	}
	if repository.IsRecordNotFound(err) {
		return true
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode == TextCodeAccountNotFound {
		return true
	}
	return goerrors.IsNotFound(err)
}
