package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shortly/internal/cache"
	"shortly/internal/entities"
)

const (
	aliceID = "8a7c2f4e-1b3d-4e5f-9a6b-0c1d2e3f4a5b"
	rootID  = "0f1e2d3c-4b5a-4968-8776-655443322110"
	ghostID = "5d6e7f80-9a1b-4c2d-8e3f-4a5b6c7d8e9f"
)

type moderationFixture struct {
	reg       *fakeRegistry
	cache     cache.Cache
	svc       *ModerationService
	resolver  *AccessResolver
	directory *UserDirectory
}

func newModerationFixture() *moderationFixture {
	reg := newFakeRegistry()
	c := cache.NewMemoryCache(time.Minute)
	invalidator := NewCacheInvalidator(c, discardLogger())

	reg.addUser(aliceID, entities.RoleUser, entities.UserStatusActive)
	reg.addUser(rootID, entities.RoleAdmin, entities.UserStatusActive)

	return &moderationFixture{
		reg:       reg,
		cache:     c,
		svc:       NewModerationService(reg, fakeUsers{reg}, invalidator, discardLogger()),
		resolver:  NewAccessResolver(reg, c, discardLogger()),
		directory: NewUserDirectory(fakeUsers{reg}, c, discardLogger()),
	}
}

func (f *moderationFixture) outcome(t *testing.T, code string) entities.RedirectOutcome {
	t.Helper()
	d, err := f.resolver.Resolve(context.Background(), code)
	require.NoError(t, err)
	return d.Outcome()
}

func TestModerationService_Approve(t *testing.T) {
	ctx := context.Background()
	f := newModerationFixture()
	threat := entities.ThreatMalware
	category := entities.CategorySuspicious
	confidence := 0.6
	f.reg.addURL("flagged", strPtr(aliceID), entities.Moderation{
		Flagged:        true,
		Threat:         &threat,
		FlagCategory:   &category,
		FlagReason:     strPtr("looks odd"),
		FlagConfidence: &confidence,
	})
	require.Equal(t, entities.OutcomeThreat, f.outcome(t, "flagged"))

	url, err := f.svc.Approve(ctx, "flagged")

	require.NoError(t, err)
	assert.False(t, url.Flagged)
	assert.Nil(t, url.Threat)
	assert.Nil(t, url.FlagReason)
	assert.Equal(t, entities.CategorySuspicious, *url.FlagCategory)
	assert.Equal(t, entities.OutcomeDirect, f.outcome(t, "flagged"))

	_, err = f.svc.Approve(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestModerationService_SetURLStatus(t *testing.T) {
	ctx := context.Background()
	f := newModerationFixture()
	f.reg.addURL("link", strPtr(aliceID), entities.Moderation{})
	require.Equal(t, entities.OutcomeDirect, f.outcome(t, "link"))

	_, err := f.svc.SetURLStatus(ctx, "link", entities.URLStatusSuspended)
	require.NoError(t, err)
	d, err := f.resolver.Resolve(ctx, "link")
	require.NoError(t, err)
	assert.Equal(t, entities.DenySuspended, d.Reason)

	_, err = f.svc.SetURLStatus(ctx, "link", entities.URLStatusActive)
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeDirect, f.outcome(t, "link"))

	_, err = f.svc.SetURLStatus(ctx, "link", entities.URLStatus("archived"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestModerationService_DeleteURL(t *testing.T) {
	ctx := context.Background()
	f := newModerationFixture()
	f.reg.addURL("link", strPtr(aliceID), entities.Moderation{})
	require.Equal(t, entities.OutcomeDirect, f.outcome(t, "link"))

	require.NoError(t, f.svc.DeleteURL(ctx, "link"))

	assert.Equal(t, entities.OutcomeNotFound, f.outcome(t, "link"))
	assert.ErrorIs(t, f.svc.DeleteURL(ctx, "link"), ErrNotFound)
}

func TestModerationService_ListFlagged(t *testing.T) {
	ctx := context.Background()
	f := newModerationFixture()
	for i := 0; i < 3; i++ {
		f.reg.addURL(fmt.Sprintf("flag%d", i), strPtr(aliceID), entities.Moderation{Flagged: true})
	}
	f.reg.addURL("clean", strPtr(aliceID), entities.Moderation{})

	urls, err := f.svc.ListFlagged(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, urls, 3)

	urls, err = f.svc.ListFlagged(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, "flag2", urls[0].ShortCode)
}

func TestModerationService_SetUserStatus(t *testing.T) {
	ctx := context.Background()
	admin := &entities.Principal{UserID: rootID, Role: entities.RoleAdmin}

	t.Run("suspension reaches every owned url", func(t *testing.T) {
		f := newModerationFixture()
		codes := []string{"one", "two", "three"}
		for _, code := range codes {
			f.reg.addURL(code, strPtr(aliceID), entities.Moderation{})
			require.Equal(t, entities.OutcomeDirect, f.outcome(t, code))
		}
		state, err := f.directory.State(ctx, aliceID)
		require.NoError(t, err)
		require.Equal(t, entities.UserStatusActive, state.Status)

		user, err := f.svc.SetUserStatus(ctx, admin, aliceID, entities.UserStatusSuspended)

		require.NoError(t, err)
		assert.Equal(t, entities.UserStatusSuspended, user.Status)
		for _, code := range codes {
			assert.Equal(t, entities.OutcomeBlocked, f.outcome(t, code), code)
		}
		_, err = f.directory.ActiveState(ctx, aliceID)
		assert.ErrorIs(t, err, ErrAccountDisabled)
	})

	t.Run("reactivation restores redirects", func(t *testing.T) {
		f := newModerationFixture()
		f.reg.addURL("one", strPtr(aliceID), entities.Moderation{})

		_, err := f.svc.SetUserStatus(ctx, admin, aliceID, entities.UserStatusInactive)
		require.NoError(t, err)
		require.Equal(t, entities.OutcomeBlocked, f.outcome(t, "one"))

		_, err = f.svc.SetUserStatus(ctx, admin, aliceID, entities.UserStatusActive)
		require.NoError(t, err)
		assert.Equal(t, entities.OutcomeDirect, f.outcome(t, "one"))
	})

	t.Run("administrators cannot moderate themselves", func(t *testing.T) {
		f := newModerationFixture()

		_, err := f.svc.SetUserStatus(ctx, admin, rootID, entities.UserStatusSuspended)

		assert.ErrorIs(t, err, ErrSelfModeration)
	})

	t.Run("non admins are refused", func(t *testing.T) {
		f := newModerationFixture()
		user := &entities.Principal{UserID: aliceID, Role: entities.RoleUser}

		_, err := f.svc.SetUserStatus(ctx, user, rootID, entities.UserStatusSuspended)

		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newModerationFixture()

		_, err := f.svc.SetUserStatus(ctx, admin, ghostID, entities.UserStatusSuspended)

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("malformed id is not found", func(t *testing.T) {
		f := newModerationFixture()

		_, err := f.svc.SetUserStatus(ctx, admin, "not-a-uuid", entities.UserStatusSuspended)

		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestModerationService_SetUserRole(t *testing.T) {
	ctx := context.Background()
	admin := &entities.Principal{UserID: rootID, Role: entities.RoleAdmin}

	t.Run("promotion is visible immediately", func(t *testing.T) {
		f := newModerationFixture()
		state, err := f.directory.State(ctx, aliceID)
		require.NoError(t, err)
		require.Equal(t, entities.RoleUser, state.Role)

		_, err = f.svc.SetUserRole(ctx, admin, aliceID, entities.RoleAdmin)
		require.NoError(t, err)

		state, err = f.directory.State(ctx, aliceID)
		require.NoError(t, err)
		assert.Equal(t, entities.RoleAdmin, state.Role)
	})

	t.Run("self demotion is refused", func(t *testing.T) {
		f := newModerationFixture()

		_, err := f.svc.SetUserRole(ctx, admin, rootID, entities.RoleUser)

		assert.ErrorIs(t, err, ErrSelfModeration)
	})

	t.Run("invalid role", func(t *testing.T) {
		f := newModerationFixture()

		_, err := f.svc.SetUserRole(ctx, admin, aliceID, entities.Role("owner"))

		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("malformed id is not found", func(t *testing.T) {
		f := newModerationFixture()

		_, err := f.svc.SetUserRole(ctx, admin, "42", entities.RoleAdmin)

		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// A reader that loaded the row before a moderation write must not cache what it read.
func TestModerationService_WriteDuringRead(t *testing.T) {
	ctx := context.Background()
	admin := &entities.Principal{UserID: rootID, Role: entities.RoleAdmin}

	resolveDuring := func(t *testing.T, f *moderationFixture, code string, write func()) *entities.AccessDecision {
		t.Helper()
		g := newGate()
		slow := NewAccessResolver(pausingStore{f.reg, g}, f.cache, discardLogger())

		done := make(chan *entities.AccessDecision, 1)
		go func() {
			d, err := slow.Resolve(ctx, code)
			assert.NoError(t, err)
			done <- d
		}()

		<-g.reached
		write()
		close(g.release)
		return <-done
	}

	t.Run("url suspended", func(t *testing.T) {
		f := newModerationFixture()
		f.reg.addURL("link", strPtr(aliceID), entities.Moderation{})

		stale := resolveDuring(t, f, "link", func() {
			_, err := f.svc.SetURLStatus(ctx, "link", entities.URLStatusSuspended)
			require.NoError(t, err)
		})

		require.NotNil(t, stale)
		assert.Equal(t, entities.OutcomeDirect, stale.Outcome())
		d, err := f.resolver.Resolve(ctx, "link")
		require.NoError(t, err)
		assert.Equal(t, entities.DenySuspended, d.Reason)
	})

	t.Run("owner suspended", func(t *testing.T) {
		f := newModerationFixture()
		f.reg.addURL("link", strPtr(aliceID), entities.Moderation{})

		stale := resolveDuring(t, f, "link", func() {
			_, err := f.svc.SetUserStatus(ctx, admin, aliceID, entities.UserStatusSuspended)
			require.NoError(t, err)
		})

		require.NotNil(t, stale)
		assert.Equal(t, entities.OutcomeDirect, stale.Outcome())
		assert.Equal(t, entities.OutcomeBlocked, f.outcome(t, "link"))
	})

	t.Run("untouched code is still cached", func(t *testing.T) {
		f := newModerationFixture()
		f.reg.addURL("link", strPtr(aliceID), entities.Moderation{})
		f.reg.addURL("other", strPtr(aliceID), entities.Moderation{})

		resolveDuring(t, f, "link", func() {
			_, err := f.svc.SetURLStatus(ctx, "other", entities.URLStatusSuspended)
			require.NoError(t, err)
		})

		lookups := f.reg.accessLookups.Load()
		assert.Equal(t, entities.OutcomeDirect, f.outcome(t, "link"))
		assert.Equal(t, lookups, f.reg.accessLookups.Load())
	})

	t.Run("role changed", func(t *testing.T) {
		f := newModerationFixture()
		g := newGate()
		slow := NewUserDirectory(pausingUsers{fakeUsers{f.reg}, g}, f.cache, discardLogger())

		done := make(chan *entities.UserState, 1)
		go func() {
			state, err := slow.State(ctx, aliceID)
			assert.NoError(t, err)
			done <- state
		}()

		<-g.reached
		_, err := f.svc.SetUserRole(ctx, admin, aliceID, entities.RoleAdmin)
		require.NoError(t, err)
		close(g.release)

		stale := <-done
		require.NotNil(t, stale)
		assert.Equal(t, entities.RoleUser, stale.Role)
		state, err := f.directory.State(ctx, aliceID)
		require.NoError(t, err)
		assert.Equal(t, entities.RoleAdmin, state.Role)
	})
}
