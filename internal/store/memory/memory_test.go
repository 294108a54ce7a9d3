package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karting-platform/internal/karting"
)

type fixture struct {
	store    *Store
	users    []*karting.User
	category *karting.RaceCategory
	karts    []*karting.Kart
	race     *karting.Race
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{store: New()}

	f.category = &karting.RaceCategory{Name: "Adult", MinAge: 18, MaxAge: 35}
	require.NoError(t, f.store.CreateCategory(ctx, f.category))
	for _, name := range []string{"alice", "bob", "carol"} {
		u := &karting.User{Username: name, Email: name + "@example.com", IsActive: true,
			DateOfBirth: karting.NewDate(2000, time.January, 1)}
		require.NoError(t, f.store.CreateUser(ctx, u))
		f.users = append(f.users, u)
	}
	for _, name := range []string{"Speedster", "Bolt"} {
		k := &karting.Kart{Name: name, CategoryID: f.category.ID, AvailableQuantity: 5}
		require.NoError(t, f.store.CreateKart(ctx, k))
		f.karts = append(f.karts, k)
	}
	f.race = &karting.Race{Name: "Grand Prix", CategoryID: f.category.ID,
		Date: karting.NewDate(2026, time.March, 1), MaxParticipants: 10}
	require.NoError(t, f.store.CreateRace(ctx, f.race))
	return f
}

func (f fixture) enter(t *testing.T, user, kart int) {
	t.Helper()
	require.NoError(t, f.store.CreateParticipation(context.Background(), &karting.Participation{
		UserID: f.users[user].ID, RaceID: f.race.ID, KartID: f.karts[kart].ID,
	}))
}

func (f fixture) quantity(t *testing.T, kart int) int {
	t.Helper()
	k, err := f.store.KartByID(context.Background(), f.karts[kart].ID)
	require.NoError(t, err)
	return k.AvailableQuantity
}

func TestReleaseCreditsEachKartPerRow(t *testing.T) {
	f := newFixture(t)
	f.enter(t, 0, 0)
	f.enter(t, 1, 0)
	f.enter(t, 2, 1)

	n, err := f.store.ReleaseParticipations(context.Background(), karting.ParticipationFilter{RaceID: f.race.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 7, f.quantity(t, 0))
	assert.Equal(t, 6, f.quantity(t, 1))

	n, err = f.store.ReleaseParticipations(context.Background(), karting.ParticipationFilter{RaceID: f.race.ID})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReleaseByUser(t *testing.T) {
	f := newFixture(t)
	f.enter(t, 0, 0)
	f.enter(t, 1, 1)

	n, err := f.store.ReleaseParticipations(context.Background(), karting.ParticipationFilter{UserID: f.users[0].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	r, err := f.store.RaceByID(context.Background(), f.race.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, r.ParticipantsCount)
}

func TestReleaseByCategoryFollowsTheRace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.enter(t, 0, 0)

	senior := &karting.RaceCategory{Name: "Senior", MinAge: 36, MaxAge: 99}
	require.NoError(t, f.store.CreateCategory(ctx, senior))
	f.race.CategoryID = senior.ID
	require.NoError(t, f.store.UpdateRace(ctx, f.race))

	n, err := f.store.ReleaseParticipations(ctx, karting.ParticipationFilter{CategoryID: f.category.ID})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.store.ReleaseParticipations(ctx, karting.ParticipationFilter{CategoryID: senior.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 6, f.quantity(t, 0))
}

func TestTakeKartGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &karting.RaceCategory{Name: "Junior"}
	require.NoError(t, f.store.CreateCategory(ctx, other))
	assert.ErrorIs(t, f.store.TakeKart(ctx, f.karts[0].ID, other.ID), karting.ErrNotFound)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.store.TakeKart(ctx, f.karts[0].ID, f.category.ID))
	}
	assert.ErrorIs(t, f.store.TakeKart(ctx, f.karts[0].ID, f.category.ID), karting.ErrNotFound)
	assert.Zero(t, f.quantity(t, 0))
}

func TestRunInTxRollsBack(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")

	err := f.store.RunInTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, f.store.TakeKart(ctx, f.karts[0].ID, f.category.ID))
		require.NoError(t, f.store.CreateParticipation(ctx, &karting.Participation{
			UserID: f.users[0].ID, RaceID: f.race.ID, KartID: f.karts[0].ID,
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 5, f.quantity(t, 0))

	_, err = f.store.Participation(context.Background(), f.users[0].ID, f.race.ID)
	assert.ErrorIs(t, err, karting.ErrNotFound)
}

func TestNestedRunInTxJoinsOuter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.store.RunInTx(ctx, func(ctx context.Context) error {
		return f.store.RunInTx(ctx, func(ctx context.Context) error {
			return f.store.TakeKart(ctx, f.karts[0].ID, f.category.ID)
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 4, f.quantity(t, 0))
}

func TestDuplicateParticipationConflict(t *testing.T) {
	f := newFixture(t)
	f.enter(t, 0, 0)

	err := f.store.CreateParticipation(context.Background(), &karting.Participation{
		UserID: f.users[0].ID, RaceID: f.race.ID, KartID: f.karts[1].ID,
	})
	var ce *karting.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "race", ce.Field)
	assert.ErrorIs(t, err, karting.ErrConflict)
}

func TestDeleteCategoryCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enter(t, 0, 0)

	require.NoError(t, f.store.DeleteCategory(ctx, f.category.ID))

	_, err := f.store.KartByID(ctx, f.karts[0].ID)
	assert.ErrorIs(t, err, karting.ErrNotFound)
	_, err = f.store.RaceByID(ctx, f.race.ID)
	assert.ErrorIs(t, err, karting.ErrNotFound)
	ps, err := f.store.ListParticipations(ctx, karting.ParticipationQuery{})
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestUserEmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.store.UserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	err = f.store.CreateUser(ctx, &karting.User{Username: "alice2", Email: "Alice@Example.com"})
	var ce *karting.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "email", ce.Field)
}

func TestListParticipationsSearch(t *testing.T) {
	f := newFixture(t)
	f.enter(t, 0, 0)
	f.enter(t, 1, 1)

	ps, err := f.store.ListParticipations(context.Background(), karting.ParticipationQuery{Search: "bolt"})
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "bob", ps[0].Username)
	assert.Equal(t, "Grand Prix", ps[0].RaceName)
}
