package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrInvalidCredentials is the generic user-facing login failure. Login
// errors always unwrap to it unless the API supplied a better message.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthAPI is the authentication boundary the store depends on.
type AuthAPI interface {
	// Login authenticates the credentials and persists the resulting
	// session credential before returning the resolved identity.
	Login(ctx context.Context, email, password string) (Identity, error)
	// CurrentUser resolves the identity behind the persisted credential.
	CurrentUser(ctx context.Context) (Identity, error)
	// Logout discards the persisted credential. Best-effort remotely,
	// unconditional locally.
	Logout(ctx context.Context) error
	// IsAuthenticated checks only for a usable persisted credential;
	// it performs no network call.
	IsAuthenticated() bool
}

// TenantAPI resolves the company context for the current identity.
type TenantAPI interface {
	GetCompany(ctx context.Context) (Company, error)
}

// userMessager is implemented by API errors that carry a message safe to
// show to the user.
type userMessager interface {
	UserMessage() string
}

// Store is the single authority for "who is the current actor and what
// may they do". It is explicitly constructed and injected; all mutation
// goes through its own operations.
type Store struct {
	authAPI   AuthAPI
	tenantAPI TenantAPI
	log       *zap.SugaredLogger

	mu            sync.RWMutex
	identity      *Identity
	tenant        Company
	authenticated bool
	loading       bool
}

// Option configures Store behavior.
type Option func(*Store) error

// WithLogger sets the logger used for swallowed background failures.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Store) error {
		if log != nil {
			s.log = log.Named("session")
		}
		return nil
	}
}

// New constructs a logged-out Store.
func New(authAPI AuthAPI, tenantAPI TenantAPI, opts ...Option) (*Store, error) {
	if authAPI == nil {
		return nil, errors.New("session: auth api is required")
	}
	if tenantAPI == nil {
		return nil, errors.New("session: tenant api is required")
	}
	s := &Store{
		authAPI:   authAPI,
		tenantAPI: tenantAPI,
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Login authenticates against the Auth API. A nil return means the store
// is authenticated; a non-nil error carries a user-displayable message
// and leaves the store logged out. Tenant resolution failures never
// propagate: the session falls back to the default company.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.setLoading(true)
	defer s.setLoading(false)

	identity, err := s.authAPI.Login(ctx, email, password)
	if err != nil {
		s.reset()
		var um userMessager
		if errors.As(err, &um) && um.UserMessage() != "" {
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, um.UserMessage())
		}
		return ErrInvalidCredentials
	}

	tenant := s.resolveTenant(ctx)

	s.mu.Lock()
	s.identity = &identity
	s.tenant = tenant
	s.authenticated = true
	s.mu.Unlock()
	return nil
}

// Logout clears all session state and discards the persisted credential.
// Idempotent; safe to call when already logged out.
func (s *Store) Logout() {
	s.reset()
	if err := s.authAPI.Logout(context.Background()); err != nil {
		s.log.Warnw("logout cleanup failed", "err", err)
	}
}

// Initialize hydrates the session from a persisted credential. Safe to
// call unconditionally: with no credential it settles on the logged-out
// default without touching the network; with an invalid credential it
// performs the same cleanup as Logout and stays silent.
func (s *Store) Initialize(ctx context.Context) {
	if !s.authAPI.IsAuthenticated() {
		s.reset()
		return
	}

	identity, err := s.authAPI.CurrentUser(ctx)
	if err != nil {
		s.log.Infow("stored credential rejected, resetting session", "err", err)
		s.Logout()
		return
	}

	tenant := s.resolveTenant(ctx)

	s.mu.Lock()
	s.identity = &identity
	s.tenant = tenant
	s.authenticated = true
	s.mu.Unlock()
}

func (s *Store) resolveTenant(ctx context.Context) Company {
	tenant, err := s.tenantAPI.GetCompany(ctx)
	if err != nil {
		s.log.Warnw("tenant fetch failed, using defaults", "err", err)
		return DefaultCompany()
	}
	return tenant
}

func (s *Store) reset() {
	s.mu.Lock()
	s.identity = nil
	s.tenant = Company{}
	s.authenticated = false
	s.mu.Unlock()
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

// Identity returns the current identity, if any.
func (s *Store) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Tenant returns the current company context. Zero value when logged out.
func (s *Store) Tenant() Company {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenant
}

// Authenticated reports whether a login or hydration has settled
// successfully.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Loading reports whether a login is in flight, so callers can disable
// duplicate submissions.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// HasPermission reports whether the current identity holds the tag.
// Always false when logged out.
func (s *Store) HasPermission(tag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return false
	}
	return RoleHasPermission(s.identity.Role, tag)
}

// HasAnyPermission reports whether at least one tag is held.
func (s *Store) HasAnyPermission(tags ...string) bool {
	for _, tag := range tags {
		if s.HasPermission(tag) {
			return true
		}
	}
	return false
}

// HasRole is a strict equality check against the current role.
func (s *Store) HasRole(role Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.identity.Role == role
}

// IsEmployer reports whether the current actor owns the company.
func (s *Store) IsEmployer() bool { return s.HasRole(RoleEmployer) }

// IsManager reports whether the current actor has the manager role.
func (s *Store) IsManager() bool { return s.HasRole(RoleManager) }
