package dto

import (
	"time"

	"github.com/torvix/backend/internal/models"
)

type MealTotalMacros struct {
	Calories     *float64 `json:"calories" validate:"required,gte=0"`
	Protein      *float64 `json:"protein" validate:"required,gte=0"`
	Fat          *float64 `json:"fat" validate:"required,gte=0"`
	FatSaturated *float64 `json:"fatSaturated,omitempty" validate:"omitempty,gte=0"`
	Carbs        *float64 `json:"carbs" validate:"required,gte=0"`
	Fiber        *float64 `json:"fiber" validate:"required,gte=0"`
	Sugar        *float64 `json:"sugar,omitempty" validate:"omitempty,gte=0"`
}

type IngredientMacrosPer100g struct {
	Calories *float64 `json:"calories,omitempty" validate:"omitempty,gte=0"`
	Protein  *float64 `json:"protein,omitempty" validate:"omitempty,gte=0"`
	Fat      *float64 `json:"fat,omitempty" validate:"omitempty,gte=0"`
	Carbs    *float64 `json:"carbs,omitempty" validate:"omitempty,gte=0"`
	Fiber    *float64 `json:"fiber,omitempty" validate:"omitempty,gte=0"`
}

type MealIngredient struct {
	Name          *string                  `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	WeightPerUnit *float64                 `json:"weightPerUnit,omitempty" validate:"omitempty,gt=0"`
	Quantity      *float64                 `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	MacrosPer100g *IngredientMacrosPer100g `json:"macrosPer100g,omitempty"`
}

type CreateMealRequest struct {
	Time        *Timestamp       `json:"time" validate:"required"`
	DishName    string           `json:"dishName" validate:"required,min=1,max=300"`
	TotalWeight float64          `json:"totalWeight" validate:"gt=0"`
	TotalMacros *MealTotalMacros `json:"totalMacros" validate:"required"`
	Ingredients []MealIngredient `json:"ingredients" validate:"max=100,dive"`
}

// Macros converts the validated request payload to its stored form.
func (m *MealTotalMacros) Macros() models.Macros {
	return models.Macros{
		Calories:     deref(m.Calories),
		Protein:      deref(m.Protein),
		Fat:          deref(m.Fat),
		FatSaturated: m.FatSaturated,
		Carbs:        deref(m.Carbs),
		Fiber:        deref(m.Fiber),
		Sugar:        m.Sugar,
	}
}

func (i MealIngredient) Ingredient() models.Ingredient {
	out := models.Ingredient{
		Name:          i.Name,
		WeightPerUnit: i.WeightPerUnit,
		Quantity:      i.Quantity,
	}
	if i.MacrosPer100g != nil {
		out.MacrosPer100g = &models.IngredientMacros{
			Calories: i.MacrosPer100g.Calories,
			Protein:  i.MacrosPer100g.Protein,
			Fat:      i.MacrosPer100g.Fat,
			Carbs:    i.MacrosPer100g.Carbs,
			Fiber:    i.MacrosPer100g.Fiber,
		}
	}
	return out
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

type MealResponse struct {
	ID          uint                `json:"id"`
	Time        time.Time           `json:"time"`
	DishName    string              `json:"dishName"`
	TotalWeight float64             `json:"totalWeight"`
	TotalMacros models.Macros       `json:"totalMacros"`
	Ingredients []models.Ingredient `json:"ingredients"`
}

type DayResponse struct {
	Day   Date           `json:"day"`
	Meals []MealResponse `json:"meals"`
}

type StatisticsResponse struct {
	Days []DayResponse `json:"days"`
}

type DishNameResponse struct {
	ID       uint    `json:"id"`
	DishName string  `json:"dishName"`
	Kcal     float64 `json:"kcal"`
}

type DishNamesResponse struct {
	DishNames []DishNameResponse `json:"dishNames"`
}

type MealsByDishResponse struct {
	DishID   uint           `json:"dishId"`
	DishName string         `json:"dishName"`
	Meals    []MealResponse `json:"meals"`
}

func NewMealResponse(m *models.MealEntry) MealResponse {
	ingredients := []models.Ingredient(m.Ingredients)
	if ingredients == nil {
		ingredients = []models.Ingredient{}
	}
	return MealResponse{
		ID:          m.ID,
		Time:        m.Time.UTC(),
		DishName:    m.DishName,
		TotalWeight: m.TotalWeight,
		TotalMacros: m.TotalMacros.Data(),
		Ingredients: ingredients,
	}
}

func NewMealResponses(meals []models.MealEntry) []MealResponse {
	out := make([]MealResponse, 0, len(meals))
	for i := range meals {
		out = append(out, NewMealResponse(&meals[i]))
	}
	return out
}

func NewDayResponse(day time.Time, meals []models.MealEntry) DayResponse {
	return DayResponse{Day: NewDate(day), Meals: NewMealResponses(meals)}
}
