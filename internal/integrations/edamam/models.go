package edamam

// NutritionTypes, HealthLabels and FoodCategories are the filter values the
// food database parser accepts.
var (
	NutritionTypes = []string{"cooking", "logging"}

	FoodCategories = []string{"generic-foods", "generic-meals", "packaged-foods", "fast-foods"}

	HealthLabels = []string{
		"alcohol-free", "celery-free", "crustacean-free", "dairy-free", "egg-free",
		"fish-free", "fodmap-free", "gluten-free", "immuno-supportive", "keto-friendly",
		"kidney-friendly", "kosher", "low-fat-abs", "low-potassium", "low-sugar",
		"lupine-free", "mustard-free", "no-oil-added", "paleo", "peanut-free",
		"pescatarian", "pork-free", "red-meat-free", "sesame-free", "shellfish-free",
		"soy-free", "sugar-conscious", "tree-nut-free", "vegan", "vegetarian",
		"wheat-free",
	}
)

type NutrientsIngredient struct {
	Quantity   float64  `json:"quantity" validate:"gt=0"`
	MeasureURI string   `json:"measureURI" validate:"required"`
	FoodID     string   `json:"foodId" validate:"required"`
	Qualifiers []string `json:"qualifiers,omitempty"`
}

type NutrientsRequest struct {
	Ingredients []NutrientsIngredient `json:"ingredients" validate:"required,min=1,dive"`
}

// NutrientsFromImageRequest carries either a data URI or a public image URL.
type NutrientsFromImageRequest struct {
	Image    string `json:"image,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type AutoCompleteQuery struct {
	Q     string `validate:"required,min=1"`
	Limit *int   `validate:"omitempty,gte=1"`
}
