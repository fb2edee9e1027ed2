package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/torvix/backend/internal/apperr"
	"github.com/torvix/backend/internal/models"
)

const logMealAttempts = 3

var (
	ErrEmptyDishName = apperr.InvalidInput("dishName must not be empty")
	ErrDayNotFound   = apperr.NotFound("Statistics day not found")
	ErrMealNotFound  = apperr.NotFound("Meal not found in this day")
	ErrDishNotFound  = apperr.NotFound("Dish not found")
)

// OwnedBy restricts a query to rows belonging to userID.
func OwnedBy(userID uint) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	}
}

// newestFirst orders meals by time then id, both descending.
func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "time"}, Desc: true},
		{Column: clause.Column{Name: "id"}, Desc: true},
	}})
}

// MealInput is a validated meal ready to be logged.
type MealInput struct {
	Time        time.Time
	DishName    string
	TotalWeight float64
	TotalMacros models.Macros
	Ingredients []models.Ingredient
}

// DayBucket is a day with its meals, newest first.
type DayBucket struct {
	Day   time.Time
	Meals []models.MealEntry
}

type DishName struct {
	ID       uint
	DishName string
	Kcal     float64
}

type DishMeals struct {
	DishID   uint
	DishName string
	Meals    []models.MealEntry
}

// MealEvents receives statistics outcomes for metrics.
type MealEvents interface {
	MealLogged()
}

type StatisticsService struct {
	db     *gorm.DB
	events MealEvents
}

func NewStatisticsService(db *gorm.DB) *StatisticsService {
	return &StatisticsService{db: db}
}

func (s *StatisticsService) WithEvents(events MealEvents) *StatisticsService {
	s.events = events
	return s
}

// DayOf returns the UTC calendar date of t as stored in day buckets.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LogMeal stores a meal in the bucket for its UTC date, creating the bucket
// when needed. A lost race on bucket creation is retried by re-reading.
func (s *StatisticsService) LogMeal(ctx context.Context, userID uint, in MealInput) (*models.MealEntry, error) {
	dishName := strings.TrimSpace(in.DishName)
	if dishName == "" {
		return nil, ErrEmptyDishName
	}

	at := in.Time.UTC()
	day := DayOf(at)
	ingredients := in.Ingredients
	if ingredients == nil {
		ingredients = []models.Ingredient{}
	}

	var meal *models.MealEntry
	var err error
	for attempt := 1; attempt <= logMealAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			bucket, err := getOrCreateDay(tx, userID, day)
			if err != nil {
				return err
			}

			entry := models.MealEntry{
				StatisticsDayID: bucket.ID,
				UserID:          userID,
				Time:            at,
				DishName:        dishName,
				TotalWeight:     in.TotalWeight,
				TotalMacros:     datatypes.NewJSONType(in.TotalMacros),
				Ingredients:     datatypes.NewJSONSlice(ingredients),
			}
			if err := tx.Omit(clause.Associations).Create(&entry).Error; err != nil {
				return fmt.Errorf("failed to create meal: %w", err)
			}
			if entry.ID == 0 {
				return apperr.Internal("Internal server error", errors.New("meal inserted without id"))
			}
			meal = &entry
			return nil
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.MealLogged()
	}
	return meal, nil
}

func getOrCreateDay(tx *gorm.DB, userID uint, day time.Time) (*models.StatisticsDay, error) {
	bucket, err := findDay(tx, userID, day)
	if err != nil || bucket != nil {
		return bucket, err
	}

	bucket = &models.StatisticsDay{UserID: userID, Day: datatypes.Date(day)}
	result := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "day"}},
			DoNothing: true,
		}).
		Create(bucket)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create statistics day: %w", result.Error)
	}
	if result.RowsAffected == 1 && bucket.ID != 0 {
		return bucket, nil
	}

	// Another request created the bucket between our read and insert.
	bucket, err = findDay(tx, userID, day)
	if err != nil {
		return nil, err
	}
	if bucket == nil {
		return nil, apperr.Internal("Internal server error", errors.New("statistics day creation failed"))
	}
	return bucket, nil
}

func findDay(db *gorm.DB, userID uint, day time.Time) (*models.StatisticsDay, error) {
	var bucket models.StatisticsDay
	err := db.Scopes(OwnedBy(userID)).Where("day = ?", datatypes.Date(day)).First(&bucket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load statistics day: %w", err)
	}
	return &bucket, nil
}

// ListStatistics returns every bucket of the user, newest day first.
func (s *StatisticsService) ListStatistics(ctx context.Context, userID uint) ([]DayBucket, error) {
	db := s.db.WithContext(ctx)

	var days []models.StatisticsDay
	if err := db.Scopes(OwnedBy(userID)).Order("day DESC").Find(&days).Error; err != nil {
		return nil, fmt.Errorf("failed to list statistics days: %w", err)
	}
	if len(days) == 0 {
		return []DayBucket{}, nil
	}

	var meals []models.MealEntry
	if err := db.Scopes(OwnedBy(userID), newestFirst).Find(&meals).Error; err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}

	byDay := make(map[uint][]models.MealEntry, len(days))
	for _, meal := range meals {
		byDay[meal.StatisticsDayID] = append(byDay[meal.StatisticsDayID], meal)
	}

	buckets := make([]DayBucket, 0, len(days))
	for _, day := range days {
		buckets = append(buckets, DayBucket{Day: DayOf(time.Time(day.Day)), Meals: byDay[day.ID]})
	}
	return buckets, nil
}

// GetDay returns the bucket for day. A day without meals yields an empty
// bucket rather than an error.
func (s *StatisticsService) GetDay(ctx context.Context, userID uint, day time.Time) (*DayBucket, error) {
	db := s.db.WithContext(ctx)
	day = DayOf(day)

	bucket, err := findDay(db, userID, day)
	if err != nil {
		return nil, err
	}
	if bucket == nil {
		return &DayBucket{Day: day, Meals: []models.MealEntry{}}, nil
	}

	var meals []models.MealEntry
	err = db.Scopes(OwnedBy(userID), newestFirst).
		Where("statistics_day_id = ?", bucket.ID).
		Find(&meals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	return &DayBucket{Day: day, Meals: meals}, nil
}

// DeleteDay removes the bucket for day and all its meals.
func (s *StatisticsService) DeleteDay(ctx context.Context, userID uint, day time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bucket, err := findDay(tx, userID, DayOf(day))
		if err != nil {
			return err
		}
		if bucket == nil {
			return ErrDayNotFound
		}

		if err := tx.Scopes(OwnedBy(userID)).
			Where("statistics_day_id = ?", bucket.ID).
			Delete(&models.MealEntry{}).Error; err != nil {
			return fmt.Errorf("failed to delete meals: %w", err)
		}
		if err := tx.Scopes(OwnedBy(userID)).Delete(&models.StatisticsDay{}, bucket.ID).Error; err != nil {
			return fmt.Errorf("failed to delete statistics day: %w", err)
		}
		return nil
	})
}

// DeleteMeal removes one meal from the bucket for day, and the bucket too
// once it holds no meals.
func (s *StatisticsService) DeleteMeal(ctx context.Context, userID uint, day time.Time, mealID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bucket, err := findDay(tx, userID, DayOf(day))
		if err != nil {
			return err
		}
		if bucket == nil {
			return ErrDayNotFound
		}

		result := tx.Scopes(OwnedBy(userID)).
			Where("id = ? AND statistics_day_id = ?", mealID, bucket.ID).
			Delete(&models.MealEntry{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete meal: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrMealNotFound
		}

		var remaining int64
		if err := tx.Model(&models.MealEntry{}).
			Scopes(OwnedBy(userID)).
			Where("statistics_day_id = ?", bucket.ID).
			Count(&remaining).Error; err != nil {
			return fmt.Errorf("failed to count meals: %w", err)
		}
		if remaining == 0 {
			if err := tx.Scopes(OwnedBy(userID)).Delete(&models.StatisticsDay{}, bucket.ID).Error; err != nil {
				return fmt.Errorf("failed to delete statistics day: %w", err)
			}
		}
		return nil
	})
}

// ListDishNames returns one entry per logged meal, ordered by dish name
// case-insensitively and then newest first.
func (s *StatisticsService) ListDishNames(ctx context.Context, userID uint) ([]DishName, error) {
	var meals []models.MealEntry
	err := s.db.WithContext(ctx).
		Scopes(OwnedBy(userID)).
		Select("id", "dish_name", "total_macros", "time").
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Name: "lower(dish_name)", Raw: true}},
			{Column: clause.Column{Name: "time"}, Desc: true},
			{Column: clause.Column{Name: "id"}, Desc: true},
		}}).
		Find(&meals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list dish names: %w", err)
	}

	names := make([]DishName, 0, len(meals))
	for _, meal := range meals {
		names = append(names, DishName{
			ID:       meal.ID,
			DishName: meal.DishName,
			Kcal:     meal.TotalMacros.Data().Calories,
		})
	}
	return names, nil
}

// FindByDish resolves dishID to a logged meal and returns every meal of the
// user with the same dish name, newest first.
func (s *StatisticsService) FindByDish(ctx context.Context, userID, dishID uint) (*DishMeals, error) {
	db := s.db.WithContext(ctx)

	var ref models.MealEntry
	err := db.Scopes(OwnedBy(userID)).Where("id = ?", dishID).First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDishNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dish: %w", err)
	}

	var meals []models.MealEntry
	err = db.Scopes(OwnedBy(userID), newestFirst).
		Where("lower(dish_name) = lower(?)", ref.DishName).
		Find(&meals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list meals for dish: %w", err)
	}

	return &DishMeals{DishID: ref.ID, DishName: ref.DishName, Meals: meals}, nil
}
