package cart

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pageone/kundeklubb-backend/internal/user"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/cart", h.getCart)
	app.Post("/api/v1/cart/items", h.addItem)
	app.Put("/api/v1/cart/items/:uid", h.updateQuantity)
	app.Post("/api/v1/cart/remove", h.removeLines)
	app.Delete("/api/v1/cart", h.clearCart)
}

type cartResponse struct {
	Lines      []Line `json:"lines"`
	TotalItems int    `json:"totalItems"`
	TotalPrice int64  `json:"totalPrice"`
}

func toResponse(c Cart) cartResponse {
	lines := c.Snapshot()
	return cartResponse{Lines: lines, TotalItems: c.TotalItems(), TotalPrice: c.TotalPrice()}
}

type addRequest struct {
	ProductUID string `json:"productUid"`
	Quantity   int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type removeRequest struct {
	Indexes []int `json:"indexes"`
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	cart, err := h.service.Get(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(toResponse(cart))
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(addRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.ProductUID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid productUid"})
	}
	if payload.Quantity == 0 {
		payload.Quantity = 1
	}

	cart, err := h.service.Add(c.UserContext(), userID, payload.ProductUID, payload.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toResponse(cart))
}

func (h *Handler) updateQuantity(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(quantityRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	cart, err := h.service.UpdateQuantity(c.UserContext(), userID, c.Params("uid"), payload.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toResponse(cart))
}

func (h *Handler) removeLines(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	payload := new(removeRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	cart, err := h.service.Remove(c.UserContext(), userID, payload.Indexes)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toResponse(cart))
}

// clearCart is called by the client once the order confirmation was shown.
func (h *Handler) clearCart(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	if err := h.service.Clear(c.UserContext(), userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func writeError(c *fiber.Ctx, err error) error {
	switch err {
	case ErrInvalidQuantity:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case ErrProductNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}
