package models

import (
	"time"

	"gorm.io/datatypes"
)

// StatisticsDay buckets a user's meals by UTC calendar date.
type StatisticsDay struct {
	ID        uint           `gorm:"primaryKey"`
	UserID    uint           `gorm:"not null;uniqueIndex:uq_statistics_days_user_id_day,priority:1"`
	Day       datatypes.Date `gorm:"type:date;not null;uniqueIndex:uq_statistics_days_user_id_day,priority:2"`
	CreatedAt time.Time
	User      User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Meals     []MealEntry `gorm:"foreignKey:StatisticsDayID;constraint:OnDelete:CASCADE"`
}

// Macros is the nutrient summary stored with a meal.
type Macros struct {
	Calories     float64  `json:"calories"`
	Protein      float64  `json:"protein"`
	Fat          float64  `json:"fat"`
	FatSaturated *float64 `json:"fatSaturated,omitempty"`
	Carbs        float64  `json:"carbs"`
	Fiber        float64  `json:"fiber"`
	Sugar        *float64 `json:"sugar,omitempty"`
}

// IngredientMacros are per-100g values of one ingredient.
type IngredientMacros struct {
	Calories *float64 `json:"calories,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Fiber    *float64 `json:"fiber,omitempty"`
}

type Ingredient struct {
	Name          *string           `json:"name,omitempty"`
	WeightPerUnit *float64          `json:"weightPerUnit,omitempty"`
	Quantity      *float64          `json:"quantity,omitempty"`
	MacrosPer100g *IngredientMacros `json:"macrosPer100g,omitempty"`
}

// MealEntry is a logged meal. Macros and ingredients are stored as JSON
// documents and only validated at the API boundary.
type MealEntry struct {
	ID              uint                            `gorm:"primaryKey"`
	StatisticsDayID uint                            `gorm:"not null;index"`
	UserID          uint                            `gorm:"not null;index:idx_meal_entries_user_time,priority:1"`
	Time            time.Time                       `gorm:"not null;index:idx_meal_entries_user_time,priority:2"`
	DishName        string                          `gorm:"size:300;not null"`
	TotalWeight     float64                         `gorm:"not null"`
	TotalMacros     datatypes.JSONType[Macros]      `gorm:"not null"`
	Ingredients     datatypes.JSONSlice[Ingredient] `gorm:"not null"`
	CreatedAt       time.Time
	User            User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}
