package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/skillbridge-ng/skillbridge_be/internal/models"
)

type DashboardHandler struct {
	DB *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{DB: db}
}

// ClientStats returns the client dashboard aggregates: bookings, saved
// workers and unread messages.
func (h *DashboardHandler) ClientStats(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var activeBookings, completedJobs int64
	if err := h.DB.Model(&models.Job{}).
		Where("client_id = ?", userUUID).
		Where("status IN ?", []models.JobStatus{models.JobStatusPending, models.JobStatusActive}).
		Count(&activeBookings).Error; err != nil {
		log.Println("Error counting bookings:", err)
		return fail500(c, "Failed to fetch stats")
	}
	h.DB.Model(&models.Job{}).
		Where("client_id = ? AND status = ?", userUUID, models.JobStatusCompleted).
		Count(&completedJobs)

	savedWorkers := 0
	var bm models.Bookmark
	if err := h.DB.First(&bm, "client_id = ?", userUUID).Error; err == nil {
		savedWorkers = len(bm.Items)
	}

	var unreadTotal int64
	h.DB.Model(&models.Conversation{}).
		Where("client_id = ?", userUUID).
		Select("COALESCE(SUM(client_unread), 0)").
		Scan(&unreadTotal)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"active_bookings": activeBookings,
			"completed_jobs":  completedJobs,
			"saved_workers":   savedWorkers,
			"new_messages":    unreadTotal,
		},
	})
}

// WorkerStats returns the worker dashboard aggregates: chat activity and
// earnings from completed jobs.
func (h *DashboardHandler) WorkerStats(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var activeChats int64
	if err := h.DB.Model(&models.Conversation{}).
		Where("worker_id = ?", userUUID).
		Count(&activeChats).Error; err != nil {
		log.Println("Error counting chats:", err)
		return fail500(c, "Failed to fetch stats")
	}

	var unreadTotal int64
	h.DB.Model(&models.Conversation{}).
		Where("worker_id = ?", userUUID).
		Select("COALESCE(SUM(worker_unread), 0)").
		Scan(&unreadTotal)

	var completedJobs int64
	h.DB.Model(&models.Job{}).
		Where("worker_id = ? AND status = ?", userUUID, models.JobStatusCompleted).
		Count(&completedJobs)

	var totalEarnings int64
	h.DB.Model(&models.Job{}).
		Where("worker_id = ? AND status = ?", userUUID, models.JobStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&totalEarnings)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"active_chats":   activeChats,
			"unread_total":   unreadTotal,
			"completed_jobs": completedJobs,
			"total_earnings": totalEarnings,
		},
	})
}
