package models

import (
	"time"

	"gorm.io/datatypes"
)

type WeightMetric string

const (
	WeightKg    WeightMetric = "kg"
	WeightLbs   WeightMetric = "lbs"
	WeightStone WeightMetric = "st"
)

type HeightMetric string

const (
	HeightCm   HeightMetric = "cm"
	HeightFtIn HeightMetric = "ft_in"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type ActivityLevel string

const (
	ActivityMinimal  ActivityLevel = "minimal"
	ActivityLight    ActivityLevel = "light"
	ActivityMedium   ActivityLevel = "medium"
	ActivityHigh     ActivityLevel = "high"
	ActivityVeryHigh ActivityLevel = "very_high"
)

type Goal string

const (
	GoalLoseFat    Goal = "lose_fat"
	GoalMaintain   Goal = "maintain"
	GoalMuscleGain Goal = "muscle_gain"
)

// User is an account holder. Email is stored lower-cased.
type User struct {
	ID            uint            `gorm:"primaryKey"`
	Email         string          `gorm:"size:255;not null;uniqueIndex"`
	Name          string          `gorm:"size:255;not null"`
	PasswordHash  string          `gorm:"size:255;not null"`
	BirthDate     *datatypes.Date `gorm:"type:date"`
	Weight        *float64
	WeightMetric  *WeightMetric `gorm:"size:8"`
	Height        *float64
	HeightMetric  *HeightMetric  `gorm:"size:8"`
	Gender        *Gender        `gorm:"size:16"`
	ActivityLevel *ActivityLevel `gorm:"size:16"`
	Goal          *Goal          `gorm:"column:what_do_you_want_to_achieve;size:16"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
