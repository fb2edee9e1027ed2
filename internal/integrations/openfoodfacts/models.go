package openfoodfacts

type BarcodeRequest struct {
	Barcode string `json:"barcode" validate:"required"`
}

type Nutriments struct {
	CaloriesPer100g     *float64 `json:"caloriesPer100g"`
	ProteinPer100g      *float64 `json:"proteinPer100g"`
	FatPer100g          *float64 `json:"fatPer100g"`
	SaturatedFatPer100g *float64 `json:"saturatedFatPer100g"`
	CarbsPer100g        *float64 `json:"carbsPer100g"`
	SugarPer100g        *float64 `json:"sugarPer100g"`
	FiberPer100g        *float64 `json:"fiberPer100g"`
	SaltPer100g         *float64 `json:"saltPer100g"`
	SodiumPer100g       *float64 `json:"sodiumPer100g"`
}

type ProductResponse struct {
	Barcode         string     `json:"barcode"`
	ProductName     *string    `json:"productName"`
	Brands          *string    `json:"brands"`
	Quantity        *string    `json:"quantity"`
	IngredientsText *string    `json:"ingredientsText"`
	ImageURL        *string    `json:"imageUrl"`
	NutriscoreGrade *string    `json:"nutriscoreGrade"`
	EcoscoreGrade   *string    `json:"ecoscoreGrade"`
	NovaGroup       *int       `json:"novaGroup"`
	Nutriments      Nutriments `json:"nutriments"`
}
