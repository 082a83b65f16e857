package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"shortly/internal/cache"
	"shortly/internal/entities"
	"shortly/internal/repository"
	"shortly/internal/safety"
)

// fakeRegistry is an in-memory URL registry and user table with call counters
type fakeRegistry struct {
	mu     sync.Mutex
	nextID int64
	urls   map[string]*entities.URL
	users  map[string]*entities.User

	accessLookups atomic.Int64
	userLookups   atomic.Int64
	creates       atomic.Int64
	failAccess    error
	taken         map[string]bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		urls:  make(map[string]*entities.URL),
		users: make(map[string]*entities.User),
		taken: make(map[string]bool),
	}
}

func (f *fakeRegistry) addUser(id string, role entities.Role, status entities.UserStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &entities.User{ID: id, Email: id + "@example.com", Role: role, Status: status}
}

func (f *fakeRegistry) addURL(code string, owner *string, m entities.Moderation) *entities.URL {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u := &entities.URL{
		ID:          f.nextID,
		ShortCode:   code,
		OriginalURL: "https://example.com/" + code,
		UserID:      owner,
		Moderation:  m,
		Status:      entities.URLStatusActive,
		CreatedAt:   time.Now(),
	}
	f.urls[code] = u
	return clone(u)
}

func (f *fakeRegistry) get(code string) *entities.URL {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.urls[code]; ok {
		return clone(u)
	}
	return nil
}

func clone(u *entities.URL) *entities.URL {
	c := *u
	return &c
}

func owns(u *entities.URL, userID *string) bool {
	return userID == nil || (u.UserID != nil && *u.UserID == *userID)
}

func (f *fakeRegistry) FindAccessRecord(_ context.Context, code string) (*entities.AccessRecord, error) {
	f.accessLookups.Add(1)
	if f.failAccess != nil {
		return nil, f.failAccess
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.urls[code]
	if !ok {
		return nil, repository.ErrURLNotFound
	}
	rec := &entities.AccessRecord{URL: *u}
	if u.UserID != nil {
		if owner, ok := f.users[*u.UserID]; ok {
			status := owner.Status
			rec.OwnerStatus = &status
		}
	}
	return rec, nil
}

func (f *fakeRegistry) IncrementClicks(_ context.Context, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.urls {
		if u.ID == id {
			u.Clicks++
			return u.Clicks, nil
		}
	}
	return 0, repository.ErrURLNotFound
}

func (f *fakeRegistry) Create(_ context.Context, p repository.CreateURLParams) (*entities.URL, error) {
	f.creates.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.urls[p.ShortCode]; ok || f.taken[p.ShortCode] {
		return nil, repository.ErrShortCodeExists
	}
	f.nextID++
	u := &entities.URL{
		ID:          f.nextID,
		ShortCode:   p.ShortCode,
		OriginalURL: p.OriginalURL,
		Name:        p.Name,
		UserID:      p.UserID,
		Moderation:  p.Moderation,
		Status:      entities.URLStatusActive,
	}
	u.Flagged = u.Flagged || u.Threat != nil
	f.urls[p.ShortCode] = u
	return clone(u), nil
}

func (f *fakeRegistry) ExistsShortCode(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.urls[code]
	return ok, nil
}

func (f *fakeRegistry) GetStats(_ context.Context, code string, userID *string) (*entities.URL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.urls[code]
	if !ok || !owns(u, userID) {
		return nil, repository.ErrURLNotFound
	}
	return clone(u), nil
}

func (f *fakeRegistry) GetByUserID(_ context.Context, userID string) ([]*entities.URL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.URL
	for _, u := range f.urls {
		if owns(u, &userID) {
			out = append(out, clone(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRegistry) Update(_ context.Context, code string, userID *string, patch repository.URLPatch) (*entities.URL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.urls[code]
	if !ok || !owns(u, userID) {
		return nil, repository.ErrURLNotFound
	}
	if patch.ShortCode != nil && *patch.ShortCode != code {
		if _, exists := f.urls[*patch.ShortCode]; exists {
			return nil, repository.ErrShortCodeExists
		}
		delete(f.urls, code)
		u.ShortCode = *patch.ShortCode
		f.urls[u.ShortCode] = u
	}
	if patch.OriginalURL != nil {
		u.OriginalURL = *patch.OriginalURL
	}
	if patch.Name != nil {
		u.Name = patch.Name
	}
	if patch.Moderation != nil {
		u.Moderation = *patch.Moderation
		u.Flagged = u.Flagged || u.Threat != nil
	}
	return clone(u), nil
}

func (f *fakeRegistry) Delete(_ context.Context, code string, userID *string) (*entities.URL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.urls[code]
	if !ok || !owns(u, userID) {
		return nil, repository.ErrURLNotFound
	}
	delete(f.urls, code)
	return clone(u), nil
}

func (f *fakeRegistry) ListFlagged(_ context.Context, limit, offset int) ([]*entities.URL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.URL
	for _, u := range f.urls {
		if u.Flagged {
			out = append(out, clone(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return []*entities.URL{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRegistry) ListShortCodesByUser(_ context.Context, userID string) ([]string, error) {
	// users.id is a uuid column; postgres rejects anything else
	if _, err := uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("pq: invalid input syntax for type uuid: %q", userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var codes []string
	for code, u := range f.urls {
		if owns(u, &userID) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (f *fakeRegistry) UpdateStatus(_ context.Context, code string, status entities.URLStatus) (*entities.URL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.urls[code]
	if !ok {
		return nil, repository.ErrURLNotFound
	}
	u.Status = status
	return clone(u), nil
}

func (f *fakeRegistry) Approve(_ context.Context, code string) (*entities.URL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.urls[code]
	if !ok {
		return nil, repository.ErrURLNotFound
	}
	u.Flagged = false
	u.Threat = nil
	u.FlagReason = nil
	return clone(u), nil
}

// fakeUsers adapts fakeRegistry to UserStore
type fakeUsers struct {
	*fakeRegistry
}

func (f fakeUsers) Create(_ context.Context, email, hash string, name *string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return nil, repository.ErrEmailExists
		}
	}
	id := "user-" + email
	u := &entities.User{ID: id, Email: email, PasswordHash: hash, Name: name, Role: entities.RoleUser, Status: entities.UserStatusActive}
	f.users[id] = u
	c := *u
	return &c, nil
}

func (f fakeUsers) FindByEmail(_ context.Context, email string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f fakeUsers) FindByID(_ context.Context, id string) (*entities.User, error) {
	f.userLookups.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (f fakeUsers) UpdateStatus(_ context.Context, id string, status entities.UserStatus) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.Status = status
	c := *u
	return &c, nil
}

func (f fakeUsers) UpdateRole(_ context.Context, id string, role entities.Role) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.Role = role
	c := *u
	return &c, nil
}

// stubClassifier returns a fixed verdict after real URL normalization
type stubClassifier struct {
	verdict *safety.Verdict
	calls   atomic.Int64
}

func (s *stubClassifier) Classify(_ context.Context, raw string) (string, *safety.Verdict, error) {
	s.calls.Add(1)
	url, err := safety.NormalizeURL(raw)
	if err != nil {
		return "", nil, err
	}
	v := *s.verdict
	return url, &v, nil
}

func safeVerdict() *safety.Verdict {
	safe := entities.CategorySafe
	return &safety.Verdict{Category: &safe, Confidence: 1}
}

func maliciousVerdict(confidence float64) *safety.Verdict {
	malicious := entities.CategoryMalicious
	reason := "credential phishing"
	return &safety.Verdict{Flagged: true, Category: &malicious, Reason: &reason, Confidence: confidence}
}

// sliceSink collects enqueued click events
type sliceSink struct {
	mu     sync.Mutex
	events []*entities.ClickEvent
	full   bool
}

func (s *sliceSink) Enqueue(e *entities.ClickEvent) bool {
	if s.full {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return true
}

// gate holds the first caller of pause until release is closed
type gate struct {
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{reached: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) pause() {
	g.once.Do(func() {
		close(g.reached)
		<-g.release
	})
}

// pausingStore stalls the first access lookup after it has read the row
type pausingStore struct {
	*fakeRegistry
	gate *gate
}

func (p pausingStore) FindAccessRecord(ctx context.Context, code string) (*entities.AccessRecord, error) {
	rec, err := p.fakeRegistry.FindAccessRecord(ctx, code)
	p.gate.pause()
	return rec, err
}

// pausingUsers stalls the first user lookup after it has read the row
type pausingUsers struct {
	fakeUsers
	gate *gate
}

func (p pausingUsers) FindByID(ctx context.Context, id string) (*entities.User, error) {
	u, err := p.fakeUsers.FindByID(ctx, id)
	p.gate.pause()
	return u, err
}

// brokenCache fails every operation
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(context.Context, string) (string, error) { return "", errCacheDown }
func (brokenCache) Set(context.Context, string, string, time.Duration) error { return errCacheDown }
func (brokenCache) Delete(context.Context, ...string) error { return errCacheDown }
func (brokenCache) SetJSON(context.Context, string, interface{}, time.Duration) error { return errCacheDown }
func (brokenCache) GetJSON(context.Context, string, interface{}) error { return errCacheDown }
func (brokenCache) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errCacheDown
}
func (brokenCache) Counter(context.Context, string) (int64, error) { return 0, errCacheDown }
func (brokenCache) SetJSONIfCounter(context.Context, string, interface{}, time.Duration, string, int64) (bool, error) {
	return false, errCacheDown
}

var _ cache.Cache = brokenCache{}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string {
	return &s
}
