package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/taskquest/taskquest-bot/internal/application/command"
	"github.com/taskquest/taskquest-bot/internal/domain/user"
	"github.com/taskquest/taskquest-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTH
// Resolves the Telegram sender to a stored user, registering on first contact.
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const userContextKey contextKey = "user"

// WithUser attaches the resolved user to ctx.
func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromContext returns the user attached by WithUser.
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userContextKey).(*user.User)
	return u, ok
}

// Registrar is the get-or-create registration use case.
type Registrar interface {
	ResolveUser(ctx context.Context, cmd command.RegisterUserCommand) (*user.User, bool, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// CacheTTL is how long a resolved user is reused without a store round trip.
	CacheTTL time.Duration

	Clock timeutil.Clock
}

// DefaultAuthConfig returns sensible defaults.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{CacheTTL: 5 * time.Minute}
}

// Auth resolves senders with a small TTL cache keyed by Telegram ID.
type Auth struct {
	registrar Registrar
	ttl       time.Duration
	now       timeutil.Clock

	mu    sync.RWMutex
	cache map[int64]cachedUser
}

type cachedUser struct {
	user      *user.User
	expiresAt time.Time
}

// NewAuth creates the auth middleware.
func NewAuth(registrar Registrar, config AuthConfig) *Auth {
	if config.Clock == nil {
		config.Clock = timeutil.SystemClock()
	}
	return &Auth{
		registrar: registrar,
		ttl:       config.CacheTTL,
		now:       config.Clock,
		cache:     make(map[int64]cachedUser),
	}
}

// Authenticate returns the user for cmd.TelegramID. created is true only
// for the update that registered the user.
func (a *Auth) Authenticate(ctx context.Context, cmd command.RegisterUserCommand) (u *user.User, created bool, err error) {
	now := a.now()

	a.mu.RLock()
	entry, ok := a.cache[cmd.TelegramID]
	a.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.user, false, nil
	}

	u, created, err = a.registrar.ResolveUser(ctx, cmd)
	if err != nil {
		return nil, false, err
	}
	if a.ttl > 0 {
		a.mu.Lock()
		a.cache[cmd.TelegramID] = cachedUser{user: u, expiresAt: now.Add(a.ttl)}
		a.mu.Unlock()
	}
	return u, created, nil
}

// Invalidate drops the cached entry for telegramID.
func (a *Auth) Invalidate(telegramID int64) {
	a.mu.Lock()
	delete(a.cache, telegramID)
	a.mu.Unlock()
}
