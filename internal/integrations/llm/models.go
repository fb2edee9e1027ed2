package llm

import (
	"github.com/torvix/backend/internal/models"
)

type ChatRequest struct {
	Prompt          string   `json:"prompt" validate:"required,min=1,max=10000"`
	SystemPrompt    *string  `json:"systemPrompt,omitempty" validate:"omitempty,max=5000"`
	Model           *string  `json:"model,omitempty" validate:"omitempty,min=1"`
	Temperature     *float32 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty" validate:"omitempty,gte=1,lte=4096"`
}

type ChatResponse struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

// MealEstimate is the structured answer for a food photo. Its shape matches
// the meal payload accepted by POST /stats/meals so clients can log it as is.
type MealEstimate struct {
	DishName    string              `json:"dishName"`
	TotalWeight float64             `json:"totalWeight"`
	TotalMacros models.Macros       `json:"totalMacros"`
	Ingredients []models.Ingredient `json:"ingredients"`
}

// languages maps supported ISO 639-1 codes to the name used in the prompt.
var languages = map[string]string{
	"en": "English",
	"ru": "Russian",
	"uk": "Ukrainian",
	"kk": "Kazakh",
	"de": "German",
	"fr": "French",
	"es": "Spanish",
	"it": "Italian",
	"pt": "Portuguese",
	"pl": "Polish",
	"tr": "Turkish",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"ar": "Arabic",
}
