package handler

import (
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type MemberHandler struct {
	memberService service.MemberService
}

func NewMemberHandler(memberService service.MemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

// GET /api/v1/members
func (h *MemberHandler) GetMembers(c *fiber.Ctx) error {
	members, err := h.memberService.GetAllMembers(c.UserContext())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch members"})
	}
	return c.JSON(members)
}

// GET /api/v1/members/:id
func (h *MemberHandler) GetMember(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid member ID"})
	}

	member, err := h.memberService.GetMemberByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(member)
}

// PUT /api/v1/members/:id
func (h *MemberHandler) UpdateMember(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid member ID"})
	}

	var req service.UpdateMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	member, err := h.memberService.UpdateMember(c.UserContext(), id, &req, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Member updated", "data": member})
}

// UpdatePrivilegesRequest represents the privilege update body
type UpdatePrivilegesRequest struct {
	Privileges []string `json:"privileges"`
}

// PUT /api/v1/members/:id/privileges
func (h *MemberHandler) UpdatePrivileges(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid member ID"})
	}

	var req UpdatePrivilegesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	member, err := h.memberService.UpdateMemberPrivileges(c.UserContext(), id, req.Privileges, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Privileges updated", "data": member})
}

// DELETE /api/v1/members/:id
func (h *MemberHandler) DeleteMember(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid member ID"})
	}

	if err := h.memberService.DeleteMember(c.UserContext(), id, getActor(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Member deleted"})
}

// GET /api/v1/invitations
func (h *MemberHandler) GetInvitations(c *fiber.Ctx) error {
	invitations, err := h.memberService.GetInvitations(c.UserContext())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch invitations"})
	}
	return c.JSON(invitations)
}

// POST /api/v1/invitations
func (h *MemberHandler) CreateInvitation(c *fiber.Ctx) error {
	var req model.PendingInvitation
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	invitation, err := h.memberService.CreateInvitation(c.UserContext(), &req, getActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Invitation created", "data": invitation})
}

// DELETE /api/v1/invitations/:email
func (h *MemberHandler) DeleteInvitation(c *fiber.Ctx) error {
	if err := h.memberService.DeleteInvitation(c.UserContext(), c.Params("email")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Invitation deleted"})
}
