package repository

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habittracker/internal/access"
	"habittracker/internal/model"
)

func seedHabit(t *testing.T, s *MemoryStore, owner int, action, at string, public bool) *model.Habit {
	t.Helper()
	h := &model.Habit{
		OwnerID:         lo.ToPtr(owner),
		Place:           "park",
		Time:            at,
		Action:          action,
		FrequencyNumber: 1,
		FrequencyUnit:   model.FrequencyDays,
		Duration:        60,
		IsPublic:        public,
	}
	require.NoError(t, s.Create(context.Background(), h))
	return h
}

func ids(habits []model.Habit) []int {
	return lo.Map(habits, func(h model.Habit, _ int) int { return h.ID })
}

func TestMemoryStore_ListScopes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedHabit(t, s, 1, "squats", "08:00:00", false)
	seedHabit(t, s, 1, "run", "07:00:00", true)
	seedHabit(t, s, 2, "read", "21:00:00", true)

	got, total, err := s.List(ctx, HabitQuery{Scope: access.PublicOnly()})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []int{2, 3}, ids(got))

	got, _, err = s.List(ctx, HabitQuery{Scope: access.OwnedBy(1)})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids(got))

	got, _, err = s.List(ctx, HabitQuery{Scope: access.AllScope()})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, ids(got))
}

func TestMemoryStore_SearchOrderPaginate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedHabit(t, s, 1, "Morning run", "09:00:00", true)
	seedHabit(t, s, 1, "evening RUN", "20:00:00", true)
	seedHabit(t, s, 1, "read", "06:00:00", true)

	got, total, err := s.List(ctx, HabitQuery{Scope: access.AllScope(), Search: "run"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []int{1, 2}, ids(got))

	got, _, err = s.List(ctx, HabitQuery{Scope: access.AllScope(), OrderBy: OrderByTime})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, ids(got))

	got, _, err = s.List(ctx, HabitQuery{Scope: access.AllScope(), OrderBy: OrderByTimeDesc})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 3}, ids(got))

	got, total, err = s.List(ctx, HabitQuery{Scope: access.AllScope(), Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []int{3}, ids(got))

	got, _, err = s.List(ctx, HabitQuery{Scope: access.AllScope(), Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, total, err = s.List(ctx, HabitQuery{Scope: access.AllScope(), Limit: 2, Offset: -4})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, got)
}

func TestMemoryStore_UpdateKeepsOwner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	h := seedHabit(t, s, 1, "run", "07:00:00", true)

	changed := *h
	changed.OwnerID = lo.ToPtr(99)
	changed.Action = "walk"
	require.NoError(t, s.Update(ctx, &changed))

	got, err := s.GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, "walk", got.Action)
	assert.Equal(t, 1, *got.OwnerID)

	assert.ErrorIs(t, s.Update(ctx, &model.Habit{ID: 404}), ErrNotFound)
}

func TestMemoryStore_DeleteClearsRelated(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	pleasant := seedHabit(t, s, 1, "coffee", "07:00:00", false)
	primary := seedHabit(t, s, 1, "run", "07:30:00", false)
	primary.RelatedHabitID = lo.ToPtr(pleasant.ID)
	require.NoError(t, s.Update(ctx, primary))

	require.NoError(t, s.Delete(ctx, pleasant))
	assert.Equal(t, 1, s.Count())

	got, err := s.GetByID(ctx, primary.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RelatedHabitID)

	_, err = s.GetByID(ctx, pleasant.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, pleasant), ErrNotFound)
}

func TestMemoryStore_Users(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	u := &model.User{Email: "test@gmail.com", PasswordHash: "x"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Equal(t, 1, u.ID)

	assert.ErrorIs(t, s.CreateUser(ctx, &model.User{Email: "TEST@gmail.com"}), ErrEmailTaken)

	found, err := s.FindByEmail(ctx, "test@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = s.FindByID(ctx, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWhereClause(t *testing.T) {
	where, args := whereClause(HabitQuery{Scope: access.OwnedBy(3), Search: "50%"})
	assert.Equal(t, "WHERE user_id = $1 AND action ILIKE '%' || $2 || '%'", where)
	assert.Equal(t, []any{3, `50\%`}, args)

	where, args = whereClause(HabitQuery{Scope: access.PublicOnly()})
	assert.Equal(t, "WHERE is_public = TRUE", where)
	assert.Empty(t, args)

	where, _ = whereClause(HabitQuery{Scope: access.AllScope()})
	assert.Empty(t, where)

	assert.Equal(t, "ORDER BY id ASC", orderClause(""))
	assert.Equal(t, "ORDER BY time DESC, id ASC", orderClause(OrderByTimeDesc))
}
