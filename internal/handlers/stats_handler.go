package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/torvix/backend/internal/apperr"
	"github.com/torvix/backend/internal/dto"
	"github.com/torvix/backend/internal/httputil"
	"github.com/torvix/backend/internal/middleware"
	"github.com/torvix/backend/internal/models"
	"github.com/torvix/backend/internal/services"
)

type StatsHandler struct {
	statsService *services.StatisticsService
}

func NewStatsHandler(statsService *services.StatisticsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

func (h *StatsHandler) CreateMeal(c *fiber.Ctx) error {
	var req dto.CreateMealRequest
	if err := httputil.Bind(c, &req); err != nil {
		return err
	}

	ingredients := make([]models.Ingredient, 0, len(req.Ingredients))
	for _, ing := range req.Ingredients {
		ingredients = append(ingredients, ing.Ingredient())
	}

	meal, err := h.statsService.LogMeal(c.UserContext(), userID(c), services.MealInput{
		Time:        req.Time.Time,
		DishName:    req.DishName,
		TotalWeight: req.TotalWeight,
		TotalMacros: req.TotalMacros.Macros(),
		Ingredients: ingredients,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(dto.NewMealResponse(meal))
}

func (h *StatsHandler) List(c *fiber.Ctx) error {
	buckets, err := h.statsService.ListStatistics(c.UserContext(), userID(c))
	if err != nil {
		return err
	}

	days := make([]dto.DayResponse, 0, len(buckets))
	for _, b := range buckets {
		days = append(days, dto.NewDayResponse(b.Day, b.Meals))
	}
	return c.JSON(dto.StatisticsResponse{Days: days})
}

func (h *StatsHandler) GetDay(c *fiber.Ctx) error {
	day, err := dayParam(c)
	if err != nil {
		return err
	}

	bucket, err := h.statsService.GetDay(c.UserContext(), userID(c), day)
	if err != nil {
		return err
	}

	return c.JSON(dto.NewDayResponse(bucket.Day, bucket.Meals))
}

func (h *StatsHandler) DeleteDay(c *fiber.Ctx) error {
	day, err := dayParam(c)
	if err != nil {
		return err
	}

	if err := h.statsService.DeleteDay(c.UserContext(), userID(c), day); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *StatsHandler) DeleteMeal(c *fiber.Ctx) error {
	day, err := dayParam(c)
	if err != nil {
		return err
	}
	mealID, err := positiveID(c.Params("mealId"), "Invalid meal id")
	if err != nil {
		return err
	}

	if err := h.statsService.DeleteMeal(c.UserContext(), userID(c), day, mealID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *StatsHandler) DishNames(c *fiber.Ctx) error {
	names, err := h.statsService.ListDishNames(c.UserContext(), userID(c))
	if err != nil {
		return err
	}

	out := make([]dto.DishNameResponse, 0, len(names))
	for _, n := range names {
		out = append(out, dto.DishNameResponse{ID: n.ID, DishName: n.DishName, Kcal: n.Kcal})
	}
	return c.JSON(dto.DishNamesResponse{DishNames: out})
}

func (h *StatsHandler) MealsByDish(c *fiber.Ctx) error {
	dishID, err := positiveID(c.Query("dishId"), "dishId must be a positive integer")
	if err != nil {
		return err
	}

	found, err := h.statsService.FindByDish(c.UserContext(), userID(c), dishID)
	if err != nil {
		return err
	}

	return c.JSON(dto.MealsByDishResponse{
		DishID:   found.DishID,
		DishName: found.DishName,
		Meals:    dto.NewMealResponses(found.Meals),
	})
}

func userID(c *fiber.Ctx) uint {
	return middleware.CurrentUser(c).User.ID
}

func dayParam(c *fiber.Ctx) (time.Time, error) {
	d, err := dto.ParseDate(c.Params("day"))
	if err != nil {
		return time.Time{}, apperr.InvalidInput("day must be a date in YYYY-MM-DD format")
	}
	return d.Time, nil
}

func positiveID(raw, message string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.InvalidInput(message)
	}
	return uint(id), nil
}
