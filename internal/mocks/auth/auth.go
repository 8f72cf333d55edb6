// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/model"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
	"github.com/fieldops/installer-portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider          = (*MockAuthProvider)(nil)
	_ ports.CookieStore           = (*MemoryCookieStore)(nil)
	_ ports.UserStore             = (*MemoryUserStore)(nil)
	_ ports.UserDirectory         = (*MemoryUserStore)(nil)
	_ ports.IdentityInvalidator   = (*RecordingInvalidator)(nil)
	_ ports.PushSubscriptionStore = (*MemoryPushStore)(nil)
)

// MockAuthProvider simulates a code-flow IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.TokenPair, error)

	// Deterministic values for predictable testing
	AuthURL     string
	StatePrefix string
	NoncePrefix string
	DefaultPair domainauth.TokenPair

	// Internal state tracking for deterministic behavior
	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultPair: domainauth.TokenPair{
			AccessToken:  "mock-access",
			RefreshToken: "mock-refresh",
			Subject:      domainauth.Subject{UserID: "mock-user-1", Email: "mock.user@example.com"},
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.callCount++
	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}

	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	state := fmt.Sprintf("%s-%d", statePrefix, m.callCount)
	nonce := fmt.Sprintf("%s-%d", noncePrefix, m.callCount)

	return authURL, state, nonce, nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.TokenPair, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	if in.Code == "" {
		return domainauth.TokenPair{}, errors.New("missing code")
	}

	pair := m.DefaultPair
	if pair.AccessToken == "" {
		pair = domainauth.TokenPair{
			AccessToken:  "mock-access",
			RefreshToken: "mock-refresh",
			Subject:      domainauth.Subject{UserID: "mock-user-1"},
		}
	}
	pair.ExpiresAt = time.Now().Add(time.Hour)

	return pair, nil
}

// CookieWrite records one Set or Delete against a MemoryCookieStore.
type CookieWrite struct {
	Name    string
	Value   string
	MaxAge  time.Duration
	Deleted bool
}

// MemoryCookieStore is an in-memory cookie store for unit tests. Reads see
// the seeded request cookies; writes are recorded in order and also
// reflected in subsequent reads.
type MemoryCookieStore struct {
	values map[string]string
	writes []CookieWrite
}

// NewMemoryCookieStore creates a cookie store seeded with request cookies.
func NewMemoryCookieStore(seed map[string]string) *MemoryCookieStore {
	values := make(map[string]string, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &MemoryCookieStore{values: values}
}

func (m *MemoryCookieStore) Get(name string) (string, bool) {
	v, ok := m.values[name]
	return v, ok
}

func (m *MemoryCookieStore) Set(name, value string, opts ports.CookieOptions) {
	m.values[name] = value
	m.writes = append(m.writes, CookieWrite{Name: name, Value: value, MaxAge: opts.MaxAge})
}

func (m *MemoryCookieStore) Delete(name string) {
	delete(m.values, name)
	m.writes = append(m.writes, CookieWrite{Name: name, Deleted: true})
}

// Writes returns every recorded mutation in order.
func (m *MemoryCookieStore) Writes() []CookieWrite {
	return append([]CookieWrite(nil), m.writes...)
}

// Written reports the last value set for name and whether it was set at all.
func (m *MemoryCookieStore) Written(name string) (CookieWrite, bool) {
	for i := len(m.writes) - 1; i >= 0; i-- {
		if m.writes[i].Name == name {
			return m.writes[i], true
		}
	}
	return CookieWrite{}, false
}

// Deleted returns the sorted names of deleted cookies.
func (m *MemoryCookieStore) Deleted() []string {
	var out []string
	for _, w := range m.writes {
		if w.Deleted {
			out = append(out, w.Name)
		}
	}
	sort.Strings(out)
	return out
}

// MemoryUserStore is an in-memory user store for unit tests. It also serves
// the admin directory operations.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]domainauth.Identity
	calls int
	// Err, when set, fails the directory operations.
	Err error
}

// NewMemoryUserStore creates a store holding the given identities.
func NewMemoryUserStore(users ...domainauth.Identity) *MemoryUserStore {
	s := &MemoryUserStore{users: make(map[string]domainauth.Identity, len(users))}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (m *MemoryUserStore) GetByID(_ context.Context, id string) (domainauth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	u, ok := m.users[id]
	if !ok {
		return domainauth.Identity{}, ErrNotFound
	}
	return u, nil
}

// Calls returns how many lookups were served.
func (m *MemoryUserStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ListByRole returns users with role ordered by full name, then email.
func (m *MemoryUserStore) ListByRole(_ context.Context, role domainauth.Role) ([]domainauth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []domainauth.Identity
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

// ErrLastAdmin is returned by ChangeRole when no admin would remain.
var ErrLastAdmin = apperrors.Conflict("cannot demote the last admin")

// ChangeRole sets the role of id, refusing to demote the only admin.
func (m *MemoryUserStore) ChangeRole(_ context.Context, id string, role domainauth.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if u.Role == domainauth.RoleAdmin && role != domainauth.RoleAdmin && m.countLocked(domainauth.RoleAdmin) <= 1 {
		return ErrLastAdmin
	}
	u.Role = role
	m.users[id] = u
	return nil
}

// UpdateProfile applies the fields set in req.
func (m *MemoryUserStore) UpdateProfile(_ context.Context, id string, req model.UpdateProfileRequest) (domainauth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domainauth.Identity{}, m.Err
	}
	u, ok := m.users[id]
	if !ok {
		return domainauth.Identity{}, ErrNotFound
	}
	if req.FullName != nil {
		u.FullName = *req.FullName
	}
	if req.Phone != nil {
		u.Phone = *req.Phone
	}
	m.users[id] = u
	return u, nil
}

// CountByRole returns the number of admins and installers.
func (m *MemoryUserStore) CountByRole(context.Context) (model.UserCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.UserCounts{}, m.Err
	}
	return model.UserCounts{
		Admins:     m.countLocked(domainauth.RoleAdmin),
		Installers: m.countLocked(domainauth.RoleInstaller),
	}, nil
}

func (m *MemoryUserStore) countLocked(role domainauth.Role) int {
	n := 0
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n
}

// RecordingInvalidator records invalidated identity ids.
type RecordingInvalidator struct {
	mu  sync.Mutex
	ids []string
	Err error
}

func (r *RecordingInvalidator) Invalidate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return r.Err
}

// IDs returns the invalidated ids in call order.
func (r *RecordingInvalidator) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

// MemoryPushStore is an in-memory push subscription store for unit tests.
type MemoryPushStore struct {
	mu   sync.Mutex
	subs map[string]model.PushSubscription
	Err  error
}

// NewMemoryPushStore creates an empty push subscription store.
func NewMemoryPushStore() *MemoryPushStore {
	return &MemoryPushStore{subs: make(map[string]model.PushSubscription)}
}

func pushKey(userID, endpoint string) string { return userID + "\x00" + endpoint }

func (m *MemoryPushStore) Upsert(_ context.Context, sub model.PushSubscription) (model.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return model.PushSubscription{}, m.Err
	}
	key := pushKey(sub.UserID, sub.Endpoint)
	now := time.Now()
	if existing, ok := m.subs[key]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = fmt.Sprintf("sub-%d", len(m.subs)+1)
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	m.subs[key] = sub
	return sub, nil
}

func (m *MemoryPushStore) Delete(_ context.Context, userID, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.subs, pushKey(userID, endpoint))
	return nil
}

// Len returns the number of stored subscriptions.
func (m *MemoryPushStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Get returns the stored subscription for (userID, endpoint).
func (m *MemoryPushStore) Get(userID, endpoint string) (model.PushSubscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[pushKey(userID, endpoint)]
	return sub, ok
}

// ErrNotFound is returned by MemoryUserStore for unknown ids.
var ErrNotFound = fmt.Errorf("not found: %w", ports.ErrIdentityNotFound)
