package habit

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habittracker/internal/access"
	"habittracker/internal/model"
	"habittracker/internal/repository"
)

var (
	u1 = access.Authenticated(1)
	u2 = access.Authenticated(2)
)

func newTestService(t *testing.T) (*Service, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	return NewService(store, access.NewHabitPolicy(), Options{}, zap.NewNop()), store
}

func validInput(action string, public bool) Input {
	return Input{
		Place:           "home",
		Time:            "08:30",
		Action:          action,
		FrequencyNumber: 1,
		FrequencyUnit:   model.FrequencyDays,
		Duration:        60,
		IsPublic:        &public,
	}
}

// seed U1 拥有私有习惯 H1，U2 拥有公开习惯 H2
func seed(t *testing.T, svc *Service) (h1, h2 *model.Habit) {
	t.Helper()
	ctx := context.Background()

	h1, err := svc.Create(ctx, u1, validInput("stretch", false))
	require.NoError(t, err)
	h2, err = svc.Create(ctx, u2, validInput("read a book", true))
	require.NoError(t, err)
	return h1, h2
}

func TestCreate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	t.Run("anonymous is rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, access.Anonymous(), validInput("walk", true))
		require.ErrorIs(t, err, access.ErrUnauthenticated)
		assert.Equal(t, 0, store.Count())
	})

	t.Run("owner is forced to the actor", func(t *testing.T) {
		h, err := svc.Create(ctx, u1, validInput("walk", true))
		require.NoError(t, err)
		require.NotNil(t, h.OwnerID)
		assert.Equal(t, 1, *h.OwnerID)
		assert.Equal(t, "08:30:00", h.Time)
		assert.True(t, h.IsPublic)
	})

	t.Run("defaults", func(t *testing.T) {
		in := validInput("drink water", true)
		in.FrequencyUnit = ""
		in.IsPublic = nil

		h, err := svc.Create(ctx, u1, in)
		require.NoError(t, err)
		assert.Equal(t, model.FrequencyDays, h.FrequencyUnit)
		assert.True(t, h.IsPublic)
	})

	t.Run("validation", func(t *testing.T) {
		in := validInput("", true)
		in.Place = ""
		in.Time = "25:99"
		in.Duration = 0
		in.FrequencyUnit = "weeks"

		_, err := svc.Create(ctx, u1, in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "place")
		assert.Contains(t, verr.Fields, "action")
		assert.Contains(t, verr.Fields, "time")
		assert.Contains(t, verr.Fields, "duration")
		assert.Contains(t, verr.Fields, "frequency_unit")
	})

	t.Run("values must fit the storage columns", func(t *testing.T) {
		in := validInput("sleep", true)
		in.Duration = 1 << 40
		in.FrequencyNumber = 1 << 31

		_, err := svc.Create(ctx, u1, in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "duration")
		assert.Contains(t, verr.Fields, "frequency_number")
	})

	t.Run("related habit must exist", func(t *testing.T) {
		in := validInput("meditate", true)
		missing := 999
		in.RelatedHabitID = &missing

		_, err := svc.Create(ctx, u1, in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "related_habit")
	})
}

func TestList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	h1, h2 := seed(t, svc)

	t.Run("anonymous sees public habits only", func(t *testing.T) {
		page, err := svc.List(ctx, access.Anonymous(), ListParams{})
		require.NoError(t, err)
		require.Len(t, page.Results, 1)
		assert.Equal(t, h2.ID, page.Results[0].ID)
	})

	t.Run("authenticated sees own habits only", func(t *testing.T) {
		page, err := svc.List(ctx, u1, ListParams{})
		require.NoError(t, err)
		require.Len(t, page.Results, 1)
		assert.Equal(t, h1.ID, page.Results[0].ID)

		page, err = svc.List(ctx, u2, ListParams{})
		require.NoError(t, err)
		require.Len(t, page.Results, 1)
		assert.Equal(t, h2.ID, page.Results[0].ID)
	})

	t.Run("public listing ignores the actor", func(t *testing.T) {
		page, err := svc.ListPublic(ctx, ListParams{})
		require.NoError(t, err)
		require.Len(t, page.Results, 1)
		assert.Equal(t, h2.ID, page.Results[0].ID)
	})
}

func TestListPaginationSearchOrdering(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	times := []string{"09:00", "07:00", "08:00", "06:00", "10:00", "05:00", "11:00"}
	for i, tm := range times {
		in := validInput("run", true)
		if i%2 == 1 {
			in.Action = "Read news"
		}
		in.Time = tm
		_, err := svc.Create(ctx, u1, in)
		require.NoError(t, err)
	}

	t.Run("default page size", func(t *testing.T) {
		page, err := svc.List(ctx, u1, ListParams{})
		require.NoError(t, err)
		assert.Equal(t, 7, page.Count)
		assert.Len(t, page.Results, 5)
		assert.True(t, page.HasNext())
		assert.False(t, page.HasPrevious())

		page, err = svc.List(ctx, u1, ListParams{Page: 2})
		require.NoError(t, err)
		assert.Len(t, page.Results, 2)
		assert.False(t, page.HasNext())
		assert.True(t, page.HasPrevious())
	})

	t.Run("page out of range", func(t *testing.T) {
		_, err := svc.List(ctx, u1, ListParams{Page: 3})
		assert.ErrorIs(t, err, ErrInvalidPage)
	})

	t.Run("page size is capped", func(t *testing.T) {
		page, err := svc.List(ctx, u1, ListParams{PageSize: 500})
		require.NoError(t, err)
		assert.Equal(t, 50, page.PageSize)
		assert.Len(t, page.Results, 7)
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		page, err := svc.List(ctx, u1, ListParams{Search: "READ"})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Count)
	})

	t.Run("ordering by time", func(t *testing.T) {
		page, err := svc.List(ctx, u1, ListParams{Ordering: "time", PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, "05:00:00", page.Results[0].Time)

		page, err = svc.List(ctx, u1, ListParams{Ordering: "-time", PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, "11:00:00", page.Results[0].Time)
	})

	t.Run("page beyond int range", func(t *testing.T) {
		_, err := svc.List(ctx, u1, ListParams{Page: math.MaxInt})
		assert.ErrorIs(t, err, ErrInvalidPage)

		_, err = svc.ListPublic(ctx, ListParams{Page: 1844674407370955163, PageSize: 10})
		assert.ErrorIs(t, err, ErrInvalidPage)
	})

	t.Run("invalid ordering", func(t *testing.T) {
		_, err := svc.List(ctx, u1, ListParams{Ordering: "name"})
		assert.ErrorIs(t, err, ErrInvalidOrdering)
	})
}

func TestRetrieve(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	h1, h2 := seed(t, svc)

	got, err := svc.Retrieve(ctx, u1, h1.ID)
	require.NoError(t, err)
	assert.Equal(t, h1.ID, got.ID)

	_, err = svc.Retrieve(ctx, access.Anonymous(), h2.ID)
	assert.ErrorIs(t, err, access.ErrUnauthenticated)

	// 公开习惯对非所有者也不能按 ID 访问
	_, err = svc.Retrieve(ctx, u1, h2.ID)
	assert.ErrorIs(t, err, access.ErrForbidden)

	// 私有习惯不暴露是否存在
	_, err = svc.Retrieve(ctx, u2, h1.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Retrieve(ctx, u1, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	h1, h2 := seed(t, svc)

	t.Run("owner replaces fields", func(t *testing.T) {
		in := validInput("stretch longer", false)
		in.Duration = 120
		got, err := svc.Update(ctx, u1, h1.ID, in)
		require.NoError(t, err)
		assert.Equal(t, "stretch longer", got.Action)
		assert.Equal(t, 120, got.Duration)
		assert.Equal(t, 1, *got.OwnerID)
	})

	t.Run("non-owner cannot update a public habit", func(t *testing.T) {
		_, err := svc.Update(ctx, u1, h2.ID, validInput("hijack", true))
		assert.ErrorIs(t, err, access.ErrForbidden)

		stored, err := store.GetByID(ctx, h2.ID)
		require.NoError(t, err)
		assert.Equal(t, "read a book", stored.Action)
	})

	t.Run("omitted visibility is kept", func(t *testing.T) {
		in := validInput("stretch again", false)
		in.IsPublic = nil
		got, err := svc.Update(ctx, u1, h1.ID, in)
		require.NoError(t, err)
		assert.False(t, got.IsPublic)

		page, err := svc.List(ctx, access.Anonymous(), ListParams{})
		require.NoError(t, err)
		for _, h := range page.Results {
			assert.NotEqual(t, h1.ID, h.ID)
		}
	})

	t.Run("related habit cannot be itself", func(t *testing.T) {
		in := validInput("stretch", false)
		in.RelatedHabitID = &h1.ID
		_, err := svc.Update(ctx, u1, h1.ID, in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "related_habit")
	})
}

func TestPartialUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	h1, h2 := seed(t, svc)

	var patch Patch
	require.NoError(t, json.Unmarshal([]byte(`{"reward": "coffee", "is_public": true, "name": null}`), &patch))

	got, err := svc.PartialUpdate(ctx, u1, h1.ID, patch)
	require.NoError(t, err)
	require.NotNil(t, got.Reward)
	assert.Equal(t, "coffee", *got.Reward)
	assert.True(t, got.IsPublic)
	assert.Nil(t, got.Name)
	assert.Equal(t, "stretch", got.Action)

	_, err = svc.PartialUpdate(ctx, u1, h2.ID, Patch{Action: Of("nope")})
	assert.ErrorIs(t, err, access.ErrForbidden)

	_, err = svc.PartialUpdate(ctx, u1, h1.ID, Patch{Place: Null[string]()})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "place")
}

func TestDestroy(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	h1, h2 := seed(t, svc)

	err := svc.Destroy(ctx, u2, h1.ID)
	require.Error(t, err)
	assert.Equal(t, 2, store.Count())

	err = svc.Destroy(ctx, u1, h2.ID)
	assert.ErrorIs(t, err, access.ErrForbidden)
	assert.Equal(t, 2, store.Count())

	err = svc.Destroy(ctx, access.Anonymous(), h1.ID)
	assert.ErrorIs(t, err, access.ErrUnauthenticated)
	assert.Equal(t, 2, store.Count())

	require.NoError(t, svc.Destroy(ctx, u1, h1.ID))
	assert.Equal(t, 1, store.Count())

	err = svc.Destroy(ctx, u1, h1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
