package handler

import (
	"go-pos-ws/internal/cart"
	"go-pos-ws/internal/terminal"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type TerminalHandler struct {
	terminals *terminal.Manager
}

func NewTerminalHandler(terminals *terminal.Manager) *TerminalHandler {
	return &TerminalHandler{terminals: terminals}
}

func (h *TerminalHandler) terminal(c *fiber.Ctx) (*terminal.Terminal, error) {
	return h.terminals.Get(c.Params("id"), getUserID(c))
}

// OpenTerminalRequest represents the open terminal body
type OpenTerminalRequest struct {
	Staff    string `json:"staff"`
	ResumeID string `json:"resume_id"`
}

// POST /api/v1/terminals
func (h *TerminalHandler) Open(c *fiber.Ctx) error {
	var req OpenTerminalRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
		}
	}

	user := terminal.User{ID: getUserID(c), Name: getUserName(c), Email: getUserEmail(c)}
	t, err := h.terminals.Open(c.UserContext(), user, req.Staff, req.ResumeID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(t.State())
}

// DELETE /api/v1/terminals/:id
func (h *TerminalHandler) Close(c *fiber.Ctx) error {
	if err := h.terminals.Close(c.UserContext(), c.Params("id"), getUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Terminal closed"})
}

// SelectSessionRequest represents the select session body
type SelectSessionRequest struct {
	SessionID string `json:"session_id"`
}

// PUT /api/v1/terminals/:id/session
func (h *TerminalHandler) SelectSession(c *fiber.Ctx) error {
	var req SelectSessionRequest
	if err := c.BodyParser(&req); err != nil || req.SessionID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "session_id is required"})
	}

	t, err := h.terminal(c)
	if err != nil {
		return respondError(c, err)
	}
	state, err := t.SelectSession(c.UserContext(), req.SessionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

// DELETE /api/v1/terminals/:id/session
func (h *TerminalHandler) LeaveSession(c *fiber.Ctx) error {
	t, err := h.terminal(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := t.LeaveSession(c.UserContext()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(t.State())
}

// GET /api/v1/terminals/:id/cart
func (h *TerminalHandler) GetCart(c *fiber.Ctx) error {
	t, err := h.terminal(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(t.State())
}

// AddItemRequest represents the add-to-cart body
type AddItemRequest struct {
	ProductID   uint   `json:"product_id"`
	VariationID string `json:"variation_id"`
}

// POST /api/v1/terminals/:id/cart/items
func (h *TerminalHandler) AddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil || req.ProductID == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "product_id is required"})
	}

	t, err := h.terminal(c)
	if err != nil {
		return respondError(c, err)
	}
	view, err := t.AddItem(c.UserContext(), req.ProductID, req.VariationID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// UpdateLineRequest changes quantity and/or line discount. Either may be
// omitted.
type UpdateLineRequest struct {
	Quantity *int             `json:"quantity"`
	Discount *decimal.Decimal `json:"discount"`
}

// PATCH /api/v1/terminals/:id/cart/items/:line
func (h *TerminalHandler) UpdateLine(c *fiber.Ctx) error {
	line, ok := parseIntParam(c, "line")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid line"})
	}
	var req UpdateLineRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if req.Quantity == nil && req.Discount == nil {
		return c.Status(400).JSON(fiber.Map{"error": "quantity or discount is required"})
	}

	t, err := h.terminal(c)
	if err != nil {
		return respondError(c, err)
	}
	view, err := t.UpdateLine(c.UserContext(), line, req.Quantity, req.Discount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// DELETE /api/v1/terminals/:id/cart/items/:line
func (h *TerminalHandler) RemoveItem(c *fiber.Ctx) error {
	line, ok := parseIntParam(c, "line")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid line"})
	}

	t, err := h.terminal(c)
	if err != nil {
		return respondError(c, err)
	}
	view, err := t.RemoveItem(c.UserContext(), line)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// DiscountRequest represents the cart-wide discount body
type DiscountRequest struct {
	Discount decimal.Decimal `json:"discount"`
}

// PUT /api/v1/terminals/:id/cart/discount
func (h *TerminalHandler) SetDiscount(c *fiber.Ctx) error {
	var req DiscountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	t, err := h.terminal(c)
	if err != nil {
		return respondError(c, err)
	}
	view, err := t.SetDiscount(c.UserContext(), req.Discount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// DELETE /api/v1/terminals/:id/cart
func (h *TerminalHandler) ClearCart(c *fiber.Ctx) error {
	t, err := h.terminal(c)
	if err != nil {
		return respondError(c, err)
	}
	view, err := t.ClearCart(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// POST /api/v1/terminals/:id/checkout
func (h *TerminalHandler) Checkout(c *fiber.Ctx) error {
	var req cart.Payment
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	t, err := h.terminal(c)
	if err != nil {
		return respondError(c, err)
	}
	result, err := t.Checkout(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Sale recorded", "data": result})
}
