package llm

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/torvix/backend/internal/apperr"
	"github.com/torvix/backend/internal/httputil"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Chat forwards a single prompt. An explicit temperature of 0 is honoured
// and reaches the upstream as a tiny positive value rather than being
// dropped for the provider default.
func (h *Handler) Chat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := httputil.Bind(c, &req); err != nil {
		return err
	}

	resp, err := h.service.Chat(c.UserContext(), &req)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// FoodPhoto accepts a multipart upload with the image in "file" and returns a
// meal estimate ready to be logged.
func (h *Handler) FoodPhoto(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return apperr.InvalidInput("Image file is required")
	}

	contentType := httputil.MediaType(file.Header.Get(fiber.HeaderContentType))
	if !strings.HasPrefix(contentType, "image/") {
		return apperr.InvalidInput("Only image uploads are supported")
	}
	if file.Size > httputil.MaxImageBytes {
		return tooLarge()
	}

	f, err := file.Open()
	if err != nil {
		return apperr.Internal("Failed to read image", err)
	}
	defer f.Close()

	data, truncated, err := httputil.ReadAllWithLimit(f, httputil.MaxImageBytes)
	if err != nil {
		return apperr.Internal("Failed to read image data", err)
	}
	if truncated {
		return tooLarge()
	}
	if len(data) == 0 {
		return apperr.InvalidInput("Image file is empty")
	}

	language := strings.ToLower(strings.TrimSpace(c.FormValue("language", "en")))
	var model *string
	if m := strings.TrimSpace(c.FormValue("model")); m != "" {
		model = &m
	}

	estimate, err := h.service.EstimateMeal(c.UserContext(), httputil.DataURI(contentType, data), language, model)
	if err != nil {
		return err
	}
	return c.JSON(estimate)
}

func tooLarge() error {
	return apperr.WithStatus(apperr.ErrInvalidInput, fiber.StatusRequestEntityTooLarge,
		fmt.Sprintf("Image is too large (max %d bytes)", httputil.MaxImageBytes))
}
