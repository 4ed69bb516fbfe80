package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillbridge-ng/skillbridge_be/internal/models"
)

type AdminHandler struct {
	DB *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{DB: db}
}

// ListUsers returns all users with their listing (for workers).
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	var users []models.User
	if err := h.DB.
		Preload("WorkerListing").
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		log.Println("Error fetching users:", err)
		return fail500(c, "Failed to fetch users")
	}

	return c.JSON(fiber.Map{"success": true, "data": users})
}

// PendingWorkers returns workers whose listing is not yet verified.
func (h *AdminHandler) PendingWorkers(c *fiber.Ctx) error {
	var listings []models.WorkerListing
	if err := h.DB.
		Where("verified = false").
		Order("created_at ASC").
		Find(&listings).Error; err != nil {
		log.Println("Error fetching pending workers:", err)
		return fail500(c, "Failed to fetch pending workers")
	}

	return c.JSON(fiber.Map{"success": true, "data": listings})
}

// VerifyWorker sets the listing's verified flag. The flag only ever goes
// false -> true; verifying an already-verified worker succeeds and changes
// nothing.
func (h *AdminHandler) VerifyWorker(c *fiber.Ctx) error {
	workerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid worker ID"})
	}

	result := h.DB.Model(&models.WorkerListing{}).
		Where("user_id = ?", workerID).
		Update("verified", true)
	if result.Error != nil {
		log.Println("Error verifying worker:", result.Error)
		return fail500(c, "Failed to verify worker")
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Worker not found"})
	}

	return c.JSON(fiber.Map{"success": true, "message": "Worker verified"})
}

// Stats returns headline counts for the admin dashboard.
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	var totalUsers, clients, workers, pending int64

	if err := h.DB.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return fail500(c, "Failed to fetch stats")
	}
	h.DB.Model(&models.User{}).Where("role = ?", models.RoleClient).Count(&clients)
	h.DB.Model(&models.User{}).Where("role = ?", models.RoleWorker).Count(&workers)
	h.DB.Model(&models.WorkerListing{}).Where("verified = false").Count(&pending)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":          totalUsers,
			"clients":              clients,
			"workers":              workers,
			"pending_verification": pending,
		},
	})
}
