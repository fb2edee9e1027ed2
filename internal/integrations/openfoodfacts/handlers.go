package openfoodfacts

import (
	"github.com/gofiber/fiber/v2"

	"github.com/torvix/backend/internal/httputil"
)

type ProductHandler struct {
	service *ProductService
}

func NewProductHandler(service *ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

func (h *ProductHandler) GetByBarcode(c *fiber.Ctx) error {
	product, err := h.service.Lookup(c.UserContext(), c.Params("barcode"))
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *ProductHandler) GetByPayload(c *fiber.Ctx) error {
	var req BarcodeRequest
	if err := httputil.Bind(c, &req); err != nil {
		return err
	}

	product, err := h.service.Lookup(c.UserContext(), req.Barcode)
	if err != nil {
		return err
	}
	return c.JSON(product)
}
