package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"payam-chat/internal/domain/user"
	payam_errors "payam-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const bcryptMinCost = bcrypt.MinCost

func TestRegister_IsIdempotentPerPhoneNumber(t *testing.T) {
	f := newFixture(t)

	first := f.register(t, "Ali", "09123456789")
	second := f.register(t, "Ali Reza", "0912 345 6789")

	assert.Equal(t, first.PublicID, second.PublicID)
	assert.Equal(t, "Ali", second.DisplayName)
	assert.True(t, user.IsValidPublicID(first.PublicID))
	assert.Len(t, f.store.users, 1)
}

func TestRegister_DistinctPhonesGetDistinctIDs(t *testing.T) {
	f := newFixture(t)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		u := f.register(t, fmt.Sprintf("user%d", i), fmt.Sprintf("0912000%04d", i))
		assert.False(t, seen[u.PublicID], "public id reused")
		seen[u.PublicID] = true
	}
}

func TestRegister_ConcurrentSamePhone(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := f.identity.Register(context.Background(), RegisterInput{DisplayName: "Sara", PhoneNumber: "09350000000"})
			if err == nil {
				ids[i] = u.PublicID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, f.store.users, 1)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.identity.Register(ctx, RegisterInput{DisplayName: "  ", PhoneNumber: "0912"})
	assert.ErrorIs(t, err, payam_errors.ErrInvalidInput)

	_, err = f.identity.Register(ctx, RegisterInput{DisplayName: "Ali", PhoneNumber: ""})
	assert.ErrorIs(t, err, payam_errors.ErrInvalidInput)

	long := make([]rune, MaxDisplayNameLength+1)
	for i := range long {
		long[i] = 'ع'
	}
	_, err = f.identity.Register(ctx, RegisterInput{DisplayName: string(long), PhoneNumber: "0912"})
	assert.ErrorIs(t, err, payam_errors.ErrInvalidInput)
}

func TestRegister_CredentialMismatchIsDuplicateHandle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.identity.Register(ctx, RegisterInput{DisplayName: "Ali", PhoneNumber: "0912", Password: "secret"})
	require.NoError(t, err)

	_, err = f.identity.Register(ctx, RegisterInput{DisplayName: "Ali", PhoneNumber: "0912", Password: "other"})
	assert.ErrorIs(t, err, payam_errors.ErrDuplicateHandle)

	_, err = f.identity.Register(ctx, RegisterInput{DisplayName: "Ali", PhoneNumber: "0912", Password: "secret"})
	assert.NoError(t, err)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withPass, err := f.identity.Register(ctx, RegisterInput{DisplayName: "Ali", PhoneNumber: "0912", Password: "secret"})
	require.NoError(t, err)
	legacy := f.register(t, "Sara", "0935")

	u, err := f.identity.Authenticate(ctx, "0912", "secret")
	require.NoError(t, err)
	assert.Equal(t, withPass.PublicID, u.PublicID)

	_, err = f.identity.Authenticate(ctx, "0912", "wrong")
	assert.ErrorIs(t, err, payam_errors.ErrInvalidCredential)

	u, err = f.identity.Authenticate(ctx, "0935", "")
	require.NoError(t, err)
	assert.Equal(t, legacy.PublicID, u.PublicID)

	_, err = f.identity.Authenticate(ctx, "0999", "")
	assert.ErrorIs(t, err, payam_errors.ErrNotFound)
}

func TestAuthenticate_InactiveUser(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "Ali", "0912")
	f.store.users[u.PublicID].IsActive = false

	_, err := f.identity.Authenticate(context.Background(), "0912", "")
	assert.ErrorIs(t, err, payam_errors.ErrForbidden)
}

func TestTouchPresence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "Ali", "0912")

	require.NoError(t, f.identity.TouchPresence(ctx, u.PublicID))
	got := f.store.users[u.PublicID]
	assert.True(t, got.IsOnline)
	assert.Equal(t, f.clock.Now(), got.LastSeenAt.Time)
	assert.True(t, f.presence.online[u.PublicID])

	require.NoError(t, f.identity.MarkOffline(ctx, u.PublicID))
	assert.False(t, f.store.users[u.PublicID].IsOnline)
	assert.False(t, f.presence.online[u.PublicID])

	assert.ErrorIs(t, f.identity.TouchPresence(ctx, "FFFFFFFFFF"), payam_errors.ErrNotFound)
}

func TestTouchPresence_UsesRequestTime(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "Ali", "0912")
	at := f.clock.Now().Add(-time.Hour)

	ctx := WithRequestTime(context.Background(), at)
	require.NoError(t, f.identity.TouchPresence(ctx, u.PublicID))
	assert.Equal(t, at, f.store.users[u.PublicID].LastSeenAt.Time)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ali := f.register(t, "Ali", "0912")
	f.register(t, "Alireza", "0913")
	f.register(t, "Sara", "0914")
	for i := 0; i < 12; i++ {
		f.register(t, fmt.Sprintf("Bot%02d", i), fmt.Sprintf("0920%02d", i))
	}

	got, err := f.identity.Search(ctx, "A", ali.PublicID, 0)
	require.NoError(t, err)
	assert.Empty(t, got, "single character query")

	got, err = f.identity.Search(ctx, "Ali", ali.PublicID, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alireza", got[0].DisplayName)

	got, err = f.identity.Search(ctx, "ali", "", 0)
	require.NoError(t, err)
	assert.Empty(t, got, "matching is case-sensitive")

	got, err = f.identity.Search(ctx, "Bot", ali.PublicID, 50)
	require.NoError(t, err)
	assert.Len(t, got, DefaultSearchLimit)

	got, err = f.identity.Search(ctx, ali.PublicID[:4], "", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestGetByPublicID_RejectsMalformed(t *testing.T) {
	f := newFixture(t)
	_, err := f.identity.GetByPublicID(context.Background(), "nope")
	assert.ErrorIs(t, err, payam_errors.ErrNotFound)
}
