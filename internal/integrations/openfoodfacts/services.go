package openfoodfacts

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/torvix/backend/internal/apperr"
	"github.com/torvix/backend/internal/config"
	"github.com/torvix/backend/internal/httputil"
)

var barcodePattern = regexp.MustCompile(`^\d{8,24}$`)

var (
	errProductNotFound = apperr.NotFound("Product not found")
	errInvalidJSON     = apperr.New(apperr.ErrUpstreamBadResponse, "Open Food Facts returned invalid JSON")
	errInvalidBarcode  = apperr.InvalidInput("Barcode must contain 8 to 24 digits")
)

type ProductService struct {
	baseURL string
	client  *httputil.Client
}

func NewProductService(cfg *config.Config, observer httputil.UpstreamObserver) *ProductService {
	return &ProductService{
		baseURL: strings.TrimRight(cfg.OpenFoodFactsURL, "/"),
		client: httputil.NewClient(httputil.ClientConfig{
			Name:      "openfoodfacts",
			Label:     "Open Food Facts",
			Timeout:   cfg.OpenFoodFactsTimeout,
			UserAgent: "TorvixBackend/1.0",
			Observer:  observer,
		}),
	}
}

// Lookup fetches a product by barcode and flattens it into ProductResponse.
func (s *ProductService) Lookup(ctx context.Context, barcode string) (*ProductResponse, error) {
	if !barcodePattern.MatchString(barcode) {
		return nil, errInvalidBarcode
	}

	resp, err := s.client.Get(ctx, s.baseURL+"/api/v2/product/"+barcode+".json", nil)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, errProductNotFound
	}
	if !resp.OK() {
		return nil, apperr.New(apperr.ErrUpstreamBadResponse, "Open Food Facts request failed")
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, errInvalidJSON
	}
	payload := gjson.ParseBytes(resp.Body)
	if !payload.IsObject() {
		return nil, errInvalidJSON
	}

	product := payload.Get("product")
	if payload.Get("status").Int() != 1 || !product.IsObject() {
		return nil, errProductNotFound
	}

	return serializeProduct(barcode, product), nil
}

func serializeProduct(barcode string, product gjson.Result) *ProductResponse {
	n := product.Get("nutriments")
	if !n.IsObject() {
		n = gjson.Result{}
	}

	return &ProductResponse{
		Barcode:         barcode,
		ProductName:     pickString(product, "product_name", "product_name_ru", "product_name_en"),
		Brands:          pickString(product, "brands"),
		Quantity:        pickString(product, "quantity"),
		IngredientsText: pickString(product, "ingredients_text", "ingredients_text_ru", "ingredients_text_en"),
		ImageURL:        pickString(product, "image_front_url", "image_url"),
		NutriscoreGrade: pickString(product, "nutriscore_grade"),
		EcoscoreGrade:   pickString(product, "ecoscore_grade"),
		NovaGroup:       pickInt(product, "nova_group", "nova-group"),
		Nutriments: Nutriments{
			CaloriesPer100g:     pickFloat(n, "energy-kcal_100g", "energy-kcal"),
			ProteinPer100g:      pickFloat(n, "proteins_100g"),
			FatPer100g:          pickFloat(n, "fat_100g"),
			SaturatedFatPer100g: pickFloat(n, "saturated-fat_100g"),
			CarbsPer100g:        pickFloat(n, "carbohydrates_100g"),
			SugarPer100g:        pickFloat(n, "sugars_100g"),
			FiberPer100g:        pickFloat(n, "fiber_100g"),
			SaltPer100g:         pickFloat(n, "salt_100g"),
			SodiumPer100g:       pickFloat(n, "sodium_100g"),
		},
	}
}

// field escapes gjson path syntax in keys such as "energy-kcal_100g".
func field(obj gjson.Result, key string) gjson.Result {
	return obj.Get(gjson.Escape(key))
}

func pickString(obj gjson.Result, keys ...string) *string {
	for _, key := range keys {
		v := field(obj, key)
		if v.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return &s
		}
	}
	return nil
}

func pickFloat(obj gjson.Result, keys ...string) *float64 {
	for _, key := range keys {
		v := field(obj, key)
		switch v.Type {
		case gjson.Number:
			f := v.Float()
			return &f
		case gjson.String:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func pickInt(obj gjson.Result, keys ...string) *int {
	for _, key := range keys {
		v := field(obj, key)
		switch v.Type {
		case gjson.Number:
			i := int(v.Float())
			return &i
		case gjson.String:
			if i, err := strconv.Atoi(strings.TrimSpace(v.String())); err == nil {
				return &i
			}
		}
	}
	return nil
}
