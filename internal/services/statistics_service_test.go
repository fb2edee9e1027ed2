package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/torvix/backend/internal/apperr"
	"github.com/torvix/backend/internal/database/testdb"
	"github.com/torvix/backend/internal/models"
)

func newStatisticsService(t *testing.T) (*StatisticsService, *gorm.DB, uint, uint) {
	t.Helper()
	db := testdb.New(t)

	alice := models.User{Email: "alice@test.dev", Name: "Alice", PasswordHash: "x"}
	bob := models.User{Email: "bob@test.dev", Name: "Bob", PasswordHash: "x"}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)

	return NewStatisticsService(db), db, alice.ID, bob.ID
}

func meal(name string, at time.Time, kcal float64) MealInput {
	sugar := 3.5
	ingredient := "rice"
	weight := 100.0
	return MealInput{
		Time:        at,
		DishName:    name,
		TotalWeight: 350,
		TotalMacros: models.Macros{Calories: kcal, Protein: 30, Fat: 12, Carbs: 55, Fiber: 4, Sugar: &sugar},
		Ingredients: []models.Ingredient{{Name: &ingredient, WeightPerUnit: &weight}},
	}
}

type mealCounter struct{ n int }

func (m *mealCounter) MealLogged() { m.n++ }

// =============================================================================
// LogMeal
// =============================================================================

func TestLogMealCreatesDayBucket(t *testing.T) {
	svc, db, alice, _ := newStatisticsService(t)
	counter := &mealCounter{}
	svc.WithEvents(counter)
	ctx := context.Background()

	at := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)
	first, err := svc.LogMeal(ctx, alice, meal("  Chicken bowl ", at, 480))
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, "Chicken bowl", first.DishName)

	second, err := svc.LogMeal(ctx, alice, meal("Salad", at.Add(time.Hour), 200))
	require.NoError(t, err)
	assert.Equal(t, first.StatisticsDayID, second.StatisticsDayID)

	var days int64
	require.NoError(t, db.Model(&models.StatisticsDay{}).Count(&days).Error)
	assert.Equal(t, int64(1), days)
	assert.Equal(t, 2, counter.n)
}

func TestLogMealUsesUTCDate(t *testing.T) {
	svc, _, alice, _ := newStatisticsService(t)
	ctx := context.Background()

	// 01:30 in UTC+3 is still the previous day in UTC.
	zone := time.FixedZone("UTC+3", 3*60*60)
	_, err := svc.LogMeal(ctx, alice, meal("Late snack", time.Date(2024, 3, 11, 1, 30, 0, 0, zone), 150))
	require.NoError(t, err)

	bucket, err := svc.GetDay(ctx, alice, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, bucket.Meals, 1)
	assert.Equal(t, time.Date(2024, 3, 10, 22, 30, 0, 0, time.UTC), bucket.Meals[0].Time.UTC())
}

func TestLogMealRejectsBlankDishName(t *testing.T) {
	svc, db, alice, _ := newStatisticsService(t)

	_, err := svc.LogMeal(context.Background(), alice, meal("   ", time.Now(), 100))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, msg := apperr.HTTPStatus(err)
	assert.Equal(t, "dishName must not be empty", msg)

	var days int64
	require.NoError(t, db.Model(&models.StatisticsDay{}).Count(&days).Error)
	assert.Zero(t, days)
}

func TestLogMealRoundTripsPayload(t *testing.T) {
	svc, _, alice, _ := newStatisticsService(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	_, err := svc.LogMeal(ctx, alice, meal("Oats", at, 480))
	require.NoError(t, err)

	bucket, err := svc.GetDay(ctx, alice, at)
	require.NoError(t, err)
	require.Len(t, bucket.Meals, 1)

	stored := bucket.Meals[0]
	macros := stored.TotalMacros.Data()
	assert.Equal(t, 480.0, macros.Calories)
	require.NotNil(t, macros.Sugar)
	assert.Equal(t, 3.5, *macros.Sugar)
	assert.Nil(t, macros.FatSaturated)
	require.Len(t, stored.Ingredients, 1)
	assert.Equal(t, "rice", *stored.Ingredients[0].Name)
}

func TestGetOrCreateDayReusesExistingBucket(t *testing.T) {
	_, db, alice, _ := newStatisticsService(t)
	day := DayOf(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

	existing := models.StatisticsDay{UserID: alice, Day: datatypes.Date(day)}
	require.NoError(t, db.Create(&existing).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		bucket, err := getOrCreateDay(tx, alice, day)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, bucket.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestLogMealLosesDayInsertRace(t *testing.T) {
	svc, db, alice, _ := newStatisticsService(t)
	at := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

	// A concurrent request commits the same bucket after our read but
	// before our insert.
	competed := false
	err := db.Callback().Create().Before("gorm:create").Register("test:competing_day", func(tx *gorm.DB) {
		if competed || tx.Statement.Table != "statistics_days" {
			return
		}
		competed = true
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"INSERT INTO statistics_days (user_id, day, created_at) VALUES (?, ?, ?)",
			alice, datatypes.Date(DayOf(at)), time.Now().UTC())
		require.NoError(t, err)
	})
	require.NoError(t, err)

	entry, err := svc.LogMeal(context.Background(), alice, meal("Porridge", at, 250))
	require.NoError(t, err)
	assert.True(t, competed)

	var buckets []models.StatisticsDay
	require.NoError(t, db.Where("user_id = ?", alice).Find(&buckets).Error)
	require.Len(t, buckets, 1)
	assert.Equal(t, buckets[0].ID, entry.StatisticsDayID)

	day, err := svc.GetDay(context.Background(), alice, at)
	require.NoError(t, err)
	require.Len(t, day.Meals, 1)
	assert.Equal(t, "Porridge", day.Meals[0].DishName)
}

// =============================================================================
// Reads
// =============================================================================

func TestListStatisticsOrdering(t *testing.T) {
	svc, _, alice, _ := newStatisticsService(t)
	ctx := context.Background()

	day1 := time.Date(2024, 3, 9, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := svc.LogMeal(ctx, alice, meal("Older day", day1, 100))
	require.NoError(t, err)
	a, err := svc.LogMeal(ctx, alice, meal("Same instant A", day2, 100))
	require.NoError(t, err)
	b, err := svc.LogMeal(ctx, alice, meal("Same instant B", day2, 100))
	require.NoError(t, err)
	later, err := svc.LogMeal(ctx, alice, meal("Later", day2.Add(time.Hour), 100))
	require.NoError(t, err)

	days, err := svc.ListStatistics(ctx, alice)
	require.NoError(t, err)
	require.Len(t, days, 2)

	assert.Equal(t, DayOf(day2), days[0].Day)
	assert.Equal(t, DayOf(day1), days[1].Day)

	ids := []uint{}
	for _, m := range days[0].Meals {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []uint{later.ID, b.ID, a.ID}, ids)
}

func TestGetDayMissingIsEmpty(t *testing.T) {
	svc, _, alice, _ := newStatisticsService(t)

	bucket, err := svc.GetDay(context.Background(), alice, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, bucket.Meals)
	assert.NotNil(t, bucket.Meals)
}

func TestListDishNames(t *testing.T) {
	svc, _, alice, bob := newStatisticsService(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	olderBanana, err := svc.LogMeal(ctx, alice, meal("banana", at, 90))
	require.NoError(t, err)
	apple, err := svc.LogMeal(ctx, alice, meal("Apple", at, 52))
	require.NoError(t, err)
	newerBanana, err := svc.LogMeal(ctx, alice, meal("Banana", at.Add(time.Hour), 105))
	require.NoError(t, err)
	_, err = svc.LogMeal(ctx, bob, meal("Aardvark stew", at, 600))
	require.NoError(t, err)

	names, err := svc.ListDishNames(ctx, alice)
	require.NoError(t, err)
	require.Len(t, names, 3)

	assert.Equal(t, DishName{ID: apple.ID, DishName: "Apple", Kcal: 52}, names[0])
	assert.Equal(t, DishName{ID: newerBanana.ID, DishName: "Banana", Kcal: 105}, names[1])
	assert.Equal(t, DishName{ID: olderBanana.ID, DishName: "banana", Kcal: 90}, names[2])
}

func TestFindByDish(t *testing.T) {
	svc, _, alice, bob := newStatisticsService(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	first, err := svc.LogMeal(ctx, alice, meal("Pasta", at, 500))
	require.NoError(t, err)
	second, err := svc.LogMeal(ctx, alice, meal("pasta", at.Add(24*time.Hour), 520))
	require.NoError(t, err)
	_, err = svc.LogMeal(ctx, alice, meal("Soup", at, 200))
	require.NoError(t, err)

	dish, err := svc.FindByDish(ctx, alice, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, dish.DishID)
	assert.Equal(t, "Pasta", dish.DishName)
	require.Len(t, dish.Meals, 2)
	assert.Equal(t, second.ID, dish.Meals[0].ID)

	_, err = svc.FindByDish(ctx, bob, first.ID)
	assert.Equal(t, ErrDishNotFound, err)

	_, err = svc.FindByDish(ctx, alice, 9999)
	assert.Equal(t, ErrDishNotFound, err)
}

// =============================================================================
// Deletes
// =============================================================================

func TestDeleteMealRemovesEmptyBucket(t *testing.T) {
	svc, db, alice, _ := newStatisticsService(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	a, err := svc.LogMeal(ctx, alice, meal("A", at, 100))
	require.NoError(t, err)
	b, err := svc.LogMeal(ctx, alice, meal("B", at, 100))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMeal(ctx, alice, at, a.ID))
	var days int64
	require.NoError(t, db.Model(&models.StatisticsDay{}).Count(&days).Error)
	assert.Equal(t, int64(1), days)

	require.NoError(t, svc.DeleteMeal(ctx, alice, at, b.ID))
	require.NoError(t, db.Model(&models.StatisticsDay{}).Count(&days).Error)
	assert.Zero(t, days)

	err = svc.DeleteMeal(ctx, alice, at, b.ID)
	assert.Equal(t, ErrDayNotFound, err)
}

func TestDeleteMealNotInDay(t *testing.T) {
	svc, _, alice, _ := newStatisticsService(t)
	ctx := context.Background()
	day1 := time.Date(2024, 3, 9, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := svc.LogMeal(ctx, alice, meal("A", day1, 100))
	require.NoError(t, err)
	other, err := svc.LogMeal(ctx, alice, meal("B", day2, 100))
	require.NoError(t, err)

	err = svc.DeleteMeal(ctx, alice, day1, other.ID)
	assert.Equal(t, ErrMealNotFound, err)
}

func TestDeleteDay(t *testing.T) {
	svc, db, alice, _ := newStatisticsService(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	_, err := svc.LogMeal(ctx, alice, meal("A", at, 100))
	require.NoError(t, err)
	_, err = svc.LogMeal(ctx, alice, meal("B", at, 100))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDay(ctx, alice, at))

	var meals int64
	require.NoError(t, db.Model(&models.MealEntry{}).Count(&meals).Error)
	assert.Zero(t, meals)

	assert.Equal(t, ErrDayNotFound, svc.DeleteDay(ctx, alice, at))
}

func TestCrossUserIsolation(t *testing.T) {
	svc, _, alice, bob := newStatisticsService(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	m, err := svc.LogMeal(ctx, alice, meal("Private", at, 100))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteMeal(ctx, bob, at, m.ID), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteDay(ctx, bob, at), apperr.ErrNotFound)

	days, err := svc.ListStatistics(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, days)

	bucket, err := svc.GetDay(ctx, bob, at)
	require.NoError(t, err)
	assert.Empty(t, bucket.Meals)

	names, err := svc.ListDishNames(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, names)

	// Bob logging the same day gets his own bucket.
	own, err := svc.LogMeal(ctx, bob, meal("Bob's", at, 100))
	require.NoError(t, err)
	assert.NotEqual(t, m.StatisticsDayID, own.StatisticsDayID)

	still, err := svc.GetDay(ctx, alice, at)
	require.NoError(t, err)
	assert.Len(t, still.Meals, 1)
}
