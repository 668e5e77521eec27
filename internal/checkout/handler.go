package checkout

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pageone/kundeklubb-backend/internal/fault"
	"github.com/pageone/kundeklubb-backend/internal/user"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Post("/api/v1/checkout", h.start)
	app.Get("/api/v1/checkout/:id", h.status)
	app.Post("/api/v1/checkout/:id/navigation", h.navigation)
	app.Delete("/api/v1/checkout/:id", h.abandon)
}

func (h *Handler) start(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	st, err := h.service.StartCheckout(c.UserContext(), userID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"checkoutId": st.CheckoutID,
		"url":        st.URL,
		"total":      st.Total,
	})
}

type navigationRequest struct {
	URL string `json:"url"`
}

func (h *Handler) navigation(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	var req navigationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "url is required"})
	}

	outcome, err := h.service.ReportNavigation(userID, c.Params("id"), req.URL)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"outcome": outcome.String()})
}

func (h *Handler) status(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	st, err := h.service.Status(userID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(st)
}

func (h *Handler) abandon(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	if err := h.service.Abandon(userID, c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func writeError(c *fiber.Ctx, err error) error {
	if IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": err.Error()})
	}
	kind, ok := fault.KindOf(err)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
	}
	switch kind {
	case fault.KindValidation:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case fault.KindAuth, fault.KindSession, fault.KindNetwork:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": "payment provider unavailable, please try again"})
	default:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": "upstream " + kind.String() + " failure, please try again"})
	}
}
