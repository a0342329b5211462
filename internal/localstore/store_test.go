package localstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"nutrisync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(opts ...Option) (*Store, *MemoryKV) {
	kv := NewMemoryKV()
	return New(kv, nil, opts...), kv
}

func entry(id, user, date string, created time.Time) models.FoodEntry {
	return models.FoodEntry{
		ID:        id,
		UserID:    user,
		Date:      date,
		MealType:  models.MealLunch,
		Foods:     []models.NutritionData{{FoodName: "rice", Calories: 200}},
		CreatedAt: created,
		UpdatedAt: created,
		SyncState: models.SyncStateSynced,
	}
}

func TestAppendEntry_CapsAtOneThousand(t *testing.T) {
	s, _ := newTestStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 1001; i++ {
		s.AppendEntry(entry(fmt.Sprintf("e%d", i), "u1", "2024-01-01", base.Add(time.Duration(i)*time.Minute)))
	}

	entries := s.LoadEntries()
	require.Len(t, entries, 1000)
	assert.Equal(t, "e1", entries[0].ID, "oldest entry must be evicted")
	assert.Equal(t, "e1000", entries[999].ID)
}

func TestEntriesForUser_FiltersAndSorts(t *testing.T) {
	s, _ := newTestStore()
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	s.AppendEntry(entry("a", "u1", "2024-01-01", base))
	s.AppendEntry(entry("b", "u1", "2024-01-02", base.Add(time.Hour)))
	s.AppendEntry(entry("c", "u2", "2024-01-02", base.Add(2*time.Hour)))
	s.AppendEntry(entry("d", "u1", "2024-01-05", base.Add(3*time.Hour)))

	got := s.EntriesForUser("u1", "2024-01-01", "2024-01-02")
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)

	all := s.EntriesForUser("u1", "", "")
	assert.Len(t, all, 3)
	assert.Equal(t, "d", all[0].ID)
}

func TestReplaceEntry_MarksLocalOnly(t *testing.T) {
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(WithClock(func() time.Time { return now }))
	s.AppendEntry(entry("a", "u1", "2024-01-01", now.Add(-time.Hour)))

	notes := "extra sauce"
	updated, err := s.ReplaceEntry("a", models.FoodEntryPatch{Notes: &notes})
	require.NoError(t, err)

	assert.Equal(t, "extra sauce", updated.Notes)
	assert.Equal(t, now, updated.UpdatedAt)
	assert.Equal(t, models.SyncStateLocalOnly, updated.SyncState)
	assert.Equal(t, "rice", updated.Foods[0].FoodName)

	_, err = s.ReplaceEntry("missing", models.FoodEntryPatch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkEntryState(t *testing.T) {
	s, _ := newTestStore()
	e := entry("a", "u1", "2024-01-01", time.Now())
	e.SyncState = models.SyncStatePendingRemote
	s.AppendEntry(e)

	got, err := s.MarkEntryState("a", models.SyncStateSynced)
	require.NoError(t, err)
	assert.True(t, got.IsSynced())

	_, err = s.MarkEntryState("a", models.SyncStatePendingRemote)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = s.MarkEntryState("nope", models.SyncStateSynced)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutAndRemoveEntry(t *testing.T) {
	s, _ := newTestStore()
	e := entry("a", "u1", "2024-01-01", time.Now())
	s.PutEntry(e)
	e.Notes = "second"
	s.PutEntry(e)

	require.Len(t, s.LoadEntries(), 1)
	assert.Equal(t, "second", s.LoadEntries()[0].Notes)

	assert.True(t, s.RemoveEntry("a"))
	assert.False(t, s.RemoveEntry("a"))
	assert.Empty(t, s.LoadEntries())
}

func TestUpsertFavorite_IsCaseInsensitive(t *testing.T) {
	s, _ := newTestStore()

	s.UpsertFavorite("u1", models.NutritionData{FoodName: "Apple", Calories: 95})
	fav := s.UpsertFavorite("u1", models.NutritionData{FoodName: "apple", Calories: 100})

	favs := s.LoadFavorites("u1")
	require.Len(t, favs, 1)
	assert.Equal(t, 2, favs[0].Frequency)
	assert.Equal(t, 100.0, favs[0].Nutrition.Calories)
	assert.Equal(t, fav.ID, favs[0].ID)

	assert.Empty(t, s.LoadFavorites("u2"))
}

func TestReconcileRange(t *testing.T) {
	s, _ := newTestStore()
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	stale := entry("stale", "u1", "2024-01-01", base)
	pending := entry("pending", "u1", "2024-01-01", base.Add(time.Hour))
	pending.SyncState = models.SyncStatePendingRemote
	edited := entry("edited", "u1", "2024-01-01", base.Add(2*time.Hour))
	edited.SyncState = models.SyncStateLocalOnly
	edited.Notes = "local edit"
	outside := entry("outside", "u1", "2024-02-01", base)
	for _, e := range []models.FoodEntry{stale, pending, edited, outside} {
		s.AppendEntry(e)
	}

	remoteEdited := entry("edited", "u1", "2024-01-01", base.Add(2*time.Hour))
	remoteNew := entry("new", "u1", "2024-01-01", base.Add(3*time.Hour))
	deleted := entry("deleted", "u1", "2024-01-01", base.Add(4*time.Hour))

	got := s.ReconcileRange("u1", "2024-01-01", "2024-01-31",
		[]models.FoodEntry{remoteEdited, remoteNew, deleted},
		map[string]bool{"deleted": true})

	ids := make([]string, 0, len(got))
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"new", "edited", "pending"}, ids)
	assert.Equal(t, "local edit", got[1].Notes)

	_, ok := s.GetEntry("stale")
	assert.False(t, ok, "synced entry missing remotely is dropped")
	_, ok = s.GetEntry("outside")
	assert.True(t, ok, "entries outside the range are untouched")
	_, ok = s.GetEntry("deleted")
	assert.False(t, ok)
}

func TestCacheFavorite_ReplacesByName(t *testing.T) {
	s, _ := newTestStore()
	s.UpsertFavorite("u1", models.NutritionData{FoodName: "Apple", Calories: 95})

	s.CacheFavorite(models.FavoriteFoodItem{ID: "remote-1", UserID: "u1", FoodName: "APPLE", Frequency: 7})
	s.CacheFavorite(models.FavoriteFoodItem{ID: "remote-2", UserID: "u1", FoodName: "Pear", Frequency: 1})

	favs := s.LoadFavorites("u1")
	require.Len(t, favs, 2)
	assert.Equal(t, "remote-1", favs[0].ID)
	assert.Equal(t, 7, favs[0].Frequency)
}

func TestGoalsAndClearUser(t *testing.T) {
	s, _ := newTestStore()
	s.SaveGoals(models.NutritionGoals{UserID: "u1", DailyCalories: 2000, IsActive: true})
	s.UpsertFavorite("u1", models.NutritionData{FoodName: "egg"})
	s.AppendEntry(entry("a", "u1", "2024-01-01", time.Now()))
	s.AppendEntry(entry("b", "u2", "2024-01-01", time.Now()))

	goals, ok := s.LoadGoals("u1")
	require.True(t, ok)
	assert.Equal(t, 2000.0, goals.DailyCalories)

	s.ClearUser("u1")

	_, ok = s.LoadGoals("u1")
	assert.False(t, ok)
	assert.Empty(t, s.LoadFavorites("u1"))
	require.Len(t, s.LoadEntries(), 1)
	assert.Equal(t, "u2", s.LoadEntries()[0].UserID)
}

func TestCorruptPayloadReadsAsEmpty(t *testing.T) {
	s, kv := newTestStore()
	require.NoError(t, kv.Set(keyEntries, []byte("{not json")))

	assert.Empty(t, s.LoadEntries())

	s.AppendEntry(entry("a", "u1", "2024-01-01", time.Now()))
	assert.Len(t, s.LoadEntries(), 1)
}

type failingKV struct{}

func (failingKV) Get(string) ([]byte, bool, error) { return nil, false, errors.New("quota exceeded") }
func (failingKV) Set(string, []byte) error         { return errors.New("quota exceeded") }
func (failingKV) Delete(string) error              { return errors.New("quota exceeded") }

func TestFailingKVNeverPanicsOrErrors(t *testing.T) {
	s := New(failingKV{}, nil)

	assert.NotPanics(t, func() {
		s.AppendEntry(entry("a", "u1", "2024-01-01", time.Now()))
		s.SaveQueue([]models.OfflineQueueItem{{ID: "q1"}})
		s.ClearUser("u1")
	})
	assert.Empty(t, s.LoadEntries())
	assert.Empty(t, s.LoadQueue())
	assert.False(t, s.RemoveEntry("a"))
}

func TestSQLKV_RoundTrip(t *testing.T) {
	kv, err := OpenSQLite(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	defer kv.Close()

	s := New(kv, nil)
	s.AppendEntry(entry("a", "u1", "2024-01-01", time.Now()))
	s.SaveQueue([]models.OfflineQueueItem{{ID: "q1", Kind: models.OpDeleteFoodEntry, EntryID: "x"}})

	require.Len(t, s.LoadEntries(), 1)
	require.Len(t, s.LoadQueue(), 1)
	assert.Equal(t, models.OpDeleteFoodEntry, s.LoadQueue()[0].Kind)

	require.NoError(t, kv.Delete(keyQueue))
	assert.Empty(t, s.LoadQueue())
}
