package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"truledgr/backend/internal/audit"
	"truledgr/backend/internal/security"
	sessiondomain "truledgr/backend/internal/session/domain"
	userdomain "truledgr/backend/internal/user/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memUserRepo struct {
	mu   sync.Mutex
	byID map[string]*userdomain.User
}

func newMemUserRepo(users ...*userdomain.User) *memUserRepo {
	r := &memUserRepo{byID: map[string]*userdomain.User{}}
	for _, u := range users {
		r.byID[u.ID] = u
	}
	return r
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// memSessionRepo mirrors the store's monotone status rules for both session tables.
type memSessionRepo struct {
	mu            sync.Mutex
	sessions      map[string]*sessiondomain.Session
	imps          map[string]*sessiondomain.ImpersonationSession
	conflictsLeft int
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{
		sessions: map[string]*sessiondomain.Session{},
		imps:     map[string]*sessiondomain.ImpersonationSession{},
	}
}

func (r *memSessionRepo) Create(ctx context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return sessiondomain.ErrConflict
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) GetByID(ctx context.Context, id string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *memSessionRepo) GetByToken(ctx context.Context, token string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.SessionToken == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsLive(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memSessionRepo) SetStatus(ctx context.Context, id string, status sessiondomain.Status) (bool, error) {
	if status == sessiondomain.StatusActive {
		return false, sessiondomain.ErrInvalidTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != sessiondomain.StatusActive {
		return false, nil
	}
	s.Status = status
	s.RefreshTokenHash = ""
	return true, nil
}

func (r *memSessionRepo) RevokeAllByUser(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID && s.Status == sessiondomain.StatusActive {
			s.Status = sessiondomain.StatusRevoked
			s.RefreshTokenHash = ""
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && s.Status == sessiondomain.StatusActive {
		s.LastActivity = at
	}
	return nil
}

func (r *memSessionRepo) CreateImpersonation(ctx context.Context, s *sessiondomain.ImpersonationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return sessiondomain.ErrConflict
	}
	cp := *s
	r.imps[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) GetImpersonationByID(ctx context.Context, id string) (*sessiondomain.ImpersonationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.imps[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *memSessionRepo) GetImpersonationByToken(ctx context.Context, token string) (*sessiondomain.ImpersonationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.imps {
		if s.SessionToken == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) SetImpersonationStatus(ctx context.Context, id string, status sessiondomain.Status, at time.Time) (bool, error) {
	if status == sessiondomain.StatusActive {
		return false, sessiondomain.ErrInvalidTransition
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.imps[id]
	if !ok || s.Status != sessiondomain.StatusActive {
		return false, nil
	}
	s.Status = status
	if status == sessiondomain.StatusRevoked {
		s.EndedAt = &at
	}
	return true, nil
}

func (r *memSessionRepo) EndImpersonation(ctx context.Context, id, adminUserID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.imps[id]
	if !ok || s.AdminUserID != adminUserID || !s.IsLive(now) {
		return false, nil
	}
	s.Status = sessiondomain.StatusRevoked
	s.EndedAt = &now
	return true, nil
}

func (r *memSessionRepo) ListImpersonationsByAdmin(ctx context.Context, adminUserID string) ([]*sessiondomain.ImpersonationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*sessiondomain.ImpersonationSummary
	for _, s := range r.imps {
		if s.AdminUserID == adminUserID {
			out = append(out, &sessiondomain.ImpersonationSummary{ImpersonationSession: *s})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memSessionRepo) session(id string) sessiondomain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.sessions[id]
}

func (r *memSessionRepo) impersonation(id string) sessiondomain.ImpersonationSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.imps[id]
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *recordingAudit) LogEvent(ctx context.Context, ev audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.events))
	for i, ev := range a.events {
		out[i] = ev.Action
	}
	return out
}

type fakeLimiter struct {
	mu       sync.Mutex
	checkErr error
	failures map[string]int
	resets   []string
}

func (l *fakeLimiter) Check(ctx context.Context, username, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkErr
}

func (l *fakeLimiter) RecordFailure(ctx context.Context, username, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failures == nil {
		l.failures = map[string]int{}
	}
	l.failures[username]++
	return nil
}

func (l *fakeLimiter) Reset(ctx context.Context, username string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resets = append(l.resets, username)
	return nil
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) inc(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[key]++
}

func (m *countingMetrics) get(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func (m *countingMetrics) RecordLogin(ctx context.Context, outcome, reason string) {
	m.inc("login:" + outcome)
}

func (m *countingMetrics) RecordRefresh(ctx context.Context, outcome, reason string) {
	m.inc("refresh:" + outcome)
}

func (m *countingMetrics) RecordImpersonation(ctx context.Context, outcome, reason string) {
	m.inc("impersonation:" + outcome)
}

const (
	adminID    = "00000000-0000-7000-8000-000000000001"
	userID     = "00000000-0000-7000-8000-000000000123"
	inactiveID = "00000000-0000-7000-8000-000000000456"
	password   = "correct-horse"
)

type testEnv struct {
	clock    *fakeClock
	users    *memUserRepo
	sessions *memSessionRepo
	audit    *recordingAudit
	limiter  *fakeLimiter
	metrics  *countingMetrics
	codec    *security.TokenCodec
	auth     *AuthService
	imp      *ImpersonationService
	resolver *Resolver
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	hasher := security.NewHasher(4)
	hash, err := hasher.Hash(password)
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	e := &testEnv{
		clock: clock,
		users: newMemUserRepo(
			&userdomain.User{ID: adminID, Username: "admin", Email: "admin@truledgr.app", PasswordHash: hash, IsActive: true, IsAdmin: true},
			&userdomain.User{ID: userID, Username: "testuser", Email: "test@truledgr.app", PasswordHash: hash, IsActive: true},
			&userdomain.User{ID: inactiveID, Username: "bob", Email: "bob@truledgr.app", PasswordHash: hash, IsActive: false},
		),
		sessions: newMemSessionRepo(),
		audit:    &recordingAudit{},
		limiter:  &fakeLimiter{},
		metrics:  &countingMetrics{},
		codec:    security.NewTestHMACCodec().WithClock(clock.Now),
	}
	opts := []Option{
		WithClock(clock.Now),
		WithAuditLogger(e.audit),
		WithLoginLimiter(e.limiter),
		WithMetrics(e.metrics),
	}
	e.auth = NewAuthService(e.users, e.sessions, e.sessions, hasher, e.codec, cfg, opts...)
	e.imp = NewImpersonationService(e.users, e.sessions, e.codec, cfg, opts...)
	e.resolver = NewResolver(e.users, e.sessions, e.sessions, e.codec, opts...)
	return e
}

func (e *testEnv) login(t *testing.T, username string) *TokenPair {
	t.Helper()
	pair, err := e.auth.Login(context.Background(), username, password, ClientInfo{IP: "203.0.113.7", UserAgent: "test"})
	require.NoError(t, err)
	return pair
}

func (e *testEnv) admin(t *testing.T) *userdomain.User {
	t.Helper()
	u, err := e.users.GetByID(context.Background(), adminID)
	require.NoError(t, err)
	return u
}
