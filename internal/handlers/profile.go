package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/skillbridge-ng/skillbridge_be/internal/models"
)

type ProfileHandler struct {
	DB *gorm.DB
}

func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{DB: db}
}

// Me returns the authenticated user's profile. A missing row for a valid
// session means registration never finished, so the session is torn down
// instead of serving a soft default.
func (h *ProfileHandler) Me(c *fiber.Ctx) error {
	uid := c.Locals("userId")

	var user models.User
	if err := h.DB.First(&user, "id = ?", uid).Error; err != nil {
		clearSessionCookie(c)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Profile not found, signed out",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":       user.ID,
			"name":     user.Name,
			"email":    user.Email,
			"phone":    user.Phone,
			"role":     user.Role,
			"location": user.Location,
		},
	})
}

type UpdateProfileReq struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// UpdateClientProfile updates the caller's own contact fields.
func (h *ProfileHandler) UpdateClientProfile(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req UpdateProfileReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid body"})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errs := FieldErrors{}
		errs.Add("name", "Name is required")
		return validationFail(c, errs)
	}

	updates := map[string]interface{}{
		"name":     name,
		"phone":    strings.TrimSpace(req.Phone),
		"location": strings.TrimSpace(req.Location),
	}

	if err := h.DB.Model(&models.User{}).
		Where("id = ?", userUUID).
		Updates(updates).Error; err != nil {
		return fail500(c, "Failed to update profile")
	}

	return c.JSON(fiber.Map{"success": true, "message": "Profile updated"})
}
