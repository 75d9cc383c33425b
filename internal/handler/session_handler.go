package handler

import (
	"go-pos-ws/internal/cart"
	"go-pos-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type SessionHandler struct {
	sessions  service.SessionService
	inventory service.InventoryService
	checkout  service.CheckoutService
	dashboard service.DashboardService
}

func NewSessionHandler(sessions service.SessionService, inventory service.InventoryService, checkout service.CheckoutService, dashboard service.DashboardService) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		inventory: inventory,
		checkout:  checkout,
		dashboard: dashboard,
	}
}

// GetSessions lists sessions, newest first. Optional ?status=active|completed
// GET /api/v1/sessions
func (h *SessionHandler) GetSessions(c *fiber.Ctx) error {
	sessions, err := h.sessions.GetSessions(c.UserContext(), c.Query("status"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sessions)
}

// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	session, err := h.sessions.GetSession(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(session)
}

// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	var req service.CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	session, err := h.sessions.CreateSession(c.UserContext(), &req, getActor(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(201).JSON(fiber.Map{"message": "Session created", "data": session})
}

// PUT /api/v1/sessions/:id
func (h *SessionHandler) UpdateSession(c *fiber.Ctx) error {
	var req service.UpdateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	session, err := h.sessions.UpdateSession(c.UserContext(), c.Params("id"), &req, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Session updated", "data": session})
}

// SetStatusRequest represents the status change body
type SetStatusRequest struct {
	Status string `json:"status"`
}

// PUT /api/v1/sessions/:id/status
func (h *SessionHandler) SetStatus(c *fiber.Ctx) error {
	var req SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	session, err := h.sessions.SetStatus(c.UserContext(), c.Params("id"), req.Status, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Session status updated", "data": session})
}

// DELETE /api/v1/sessions/:id
func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	if err := h.sessions.DeleteSession(c.UserContext(), c.Params("id"), getActor(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Session deleted"})
}

// GetProducts returns the session snapshot with authoritative stock
// GET /api/v1/sessions/:id/products
func (h *SessionHandler) GetProducts(c *fiber.Ctx) error {
	products, err := h.inventory.GetSessionProducts(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(products)
}

// PUT /api/v1/sessions/:id/inventory/:productId
func (h *SessionHandler) UpdateStock(c *fiber.Ctx) error {
	productID, ok := parseUintParam(c, "productId")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}

	var req service.UpdateStockRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	products, err := h.inventory.UpdateStock(c.UserContext(), c.Params("id"), productID, &req, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Stock updated", "data": products})
}

// GET /api/v1/sessions/:id/summary
func (h *SessionHandler) GetSummary(c *fiber.Ctx) error {
	summary, err := h.dashboard.SessionSummary(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

// Checkout records a sale submitted directly, without a terminal.
// POST /api/v1/sessions/:id/checkout
func (h *SessionHandler) Checkout(c *fiber.Ctx) error {
	var req cart.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	result, err := h.checkout.Checkout(c.UserContext(), c.Params("id"), &req, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Sale recorded", "data": result})
}
