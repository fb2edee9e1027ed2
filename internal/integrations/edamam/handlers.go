package edamam

import (
	"net/url"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/torvix/backend/internal/apperr"
	"github.com/torvix/backend/internal/httputil"
)

// =============================================================================
// FoodDatabaseHandler
// =============================================================================

type FoodDatabaseHandler struct {
	service *FoodDatabaseService
}

func NewFoodDatabaseHandler(service *FoodDatabaseService) *FoodDatabaseHandler {
	return &FoodDatabaseHandler{service: service}
}

func (h *FoodDatabaseHandler) Parser(c *fiber.Ctx) error {
	query, err := parserQuery(c)
	if err != nil {
		return err
	}

	res, err := h.service.Parser(c.UserContext(), query, c.Get(accountUserHeader))
	if err != nil {
		return err
	}
	return sendResult(c, res)
}

func (h *FoodDatabaseHandler) Nutrients(c *fiber.Ctx) error {
	var req NutrientsRequest
	if err := httputil.Bind(c, &req); err != nil {
		return err
	}

	res, err := h.service.Nutrients(c.UserContext(), &req, c.Get(accountUserHeader))
	if err != nil {
		return err
	}
	return sendResult(c, res)
}

func (h *FoodDatabaseHandler) NutrientsFromImage(c *fiber.Ctx) error {
	if beta := c.Query("beta"); beta != "" && beta != "true" {
		return apperr.InvalidInput("beta must be true")
	}

	var req NutrientsFromImageRequest
	if err := httputil.Bind(c, &req); err != nil {
		return err
	}
	req.Image = strings.TrimSpace(req.Image)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	if req.Image == "" && req.ImageURL == "" {
		return apperr.InvalidInput("Either image or image_url must be provided")
	}

	res, err := h.service.NutrientsFromImage(c.UserContext(), &req, c.Get(accountUserHeader))
	if err != nil {
		return err
	}
	return sendResult(c, res)
}

func (h *FoodDatabaseHandler) AutoComplete(c *fiber.Ctx) error {
	q := AutoCompleteQuery{Q: c.Query("q")}
	if c.Query("limit") != "" {
		limit := c.QueryInt("limit", 0)
		q.Limit = &limit
	}
	if err := httputil.Validate(&q); err != nil {
		return err
	}

	res, err := h.service.AutoComplete(c.UserContext(), q, c.Get(accountUserHeader))
	if err != nil {
		return err
	}
	return sendResult(c, res)
}

func sendResult(c *fiber.Ctx, res *Result) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(res.Status).Send(res.Body)
}

// parserQuery collects the parser filters from the request and checks the
// ingr/brand/upc combination rules.
func parserQuery(c *fiber.Ctx) (url.Values, error) {
	query := url.Values{}
	var bad string
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		key, value := string(k), string(v)
		if value == "" {
			return
		}
		switch {
		case key == "ingr", key == "brand", key == "upc", key == "calories":
			query.Set(key, value)
		case key == "nutrition-type":
			if !slices.Contains(NutritionTypes, value) {
				bad = "nutrition-type must be cooking or logging"
			}
			query.Set(key, value)
		case key == "health":
			if !slices.Contains(HealthLabels, value) {
				bad = "Unsupported health label: " + value
			}
			query.Add(key, value)
		case key == "category":
			if !slices.Contains(FoodCategories, value) {
				bad = "Unsupported category: " + value
			}
			query.Add(key, value)
		case strings.HasPrefix(key, "nutrients[") && strings.HasSuffix(key, "]"):
			query.Set(key, value)
		}
	})
	if bad != "" {
		return nil, apperr.InvalidInput(bad)
	}

	ingr, brand, upc := query.Get("ingr"), query.Get("brand"), query.Get("upc")
	if ingr == "" && brand == "" && upc == "" {
		return nil, apperr.InvalidInput("One of ingr, brand, or upc is required")
	}
	if upc != "" && (ingr != "" || brand != "") {
		return nil, apperr.InvalidInput("upc cannot be combined with ingr or brand")
	}
	if query.Get("nutrition-type") == "" {
		query.Set("nutrition-type", "cooking")
	}
	return query, nil
}
