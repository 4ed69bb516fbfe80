package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/skillbridge-ng/skillbridge_be/internal/models"
)

type JobHandler struct {
	DB *gorm.DB
}

func NewJobHandler(db *gorm.DB) *JobHandler {
	return &JobHandler{DB: db}
}

type CreateJobReq struct {
	WorkerID string `json:"worker_id"`
	Service  string `json:"service"`
	Notes    string `json:"notes"`
	Amount   int64  `json:"amount"`
}

// CreateJob books a worker. Only verified workers can be booked.
func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req CreateJobReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid body"})
	}

	errs := FieldErrors{}
	if strings.TrimSpace(req.WorkerID) == "" {
		errs.Add("worker_id", "Worker is required")
	}
	if strings.TrimSpace(req.Service) == "" {
		errs.Add("service", "Service is required")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	workerUUID, err := uuid.Parse(req.WorkerID)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid worker ID"})
	}

	var listing models.WorkerListing
	if err := h.DB.First(&listing, "user_id = ?", workerUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Worker not found"})
	}
	if !listing.Verified {
		return fail200(c, "Worker is not verified yet")
	}

	job := models.Job{
		ClientID: userUUID,
		WorkerID: workerUUID,
		Service:  strings.TrimSpace(req.Service),
		Notes:    req.Notes,
		Amount:   req.Amount,
		Status:   models.JobStatusPending,
	}

	if err := h.DB.Create(&job).Error; err != nil {
		log.Println("Error creating job:", err)
		return fail500(c, "Failed to create booking")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": job})
}

// ListClientJobs returns the caller's bookings.
func (h *JobHandler) ListClientJobs(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var jobs []models.Job
	if err := h.DB.
		Preload("Worker").
		Where("client_id = ?", userUUID).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		log.Println("Error fetching jobs:", err)
		return fail500(c, "Failed to fetch bookings")
	}

	return c.JSON(fiber.Map{"success": true, "data": jobs})
}

// ListWorkerJobs returns jobs booked with the caller.
func (h *JobHandler) ListWorkerJobs(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var jobs []models.Job
	if err := h.DB.
		Preload("Client").
		Where("worker_id = ?", userUUID).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		log.Println("Error fetching jobs:", err)
		return fail500(c, "Failed to fetch jobs")
	}

	return c.JSON(fiber.Map{"success": true, "data": jobs})
}

// allowed worker-driven transitions
var jobTransitions = map[models.JobStatus]map[models.JobStatus]bool{
	models.JobStatusPending: {
		models.JobStatusActive:    true,
		models.JobStatusCancelled: true,
	},
	models.JobStatusActive: {
		models.JobStatusCompleted: true,
		models.JobStatusCancelled: true,
	},
}

// UpdateJobStatus lets the worker move a job through its lifecycle.
func (h *JobHandler) UpdateJobStatus(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid job ID"})
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "status required"})
	}

	var job models.Job
	if err := h.DB.First(&job, "id = ?", jobID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Job not found"})
	}

	if job.WorkerID != userUUID {
		return c.Status(403).JSON(fiber.Map{"success": false, "message": "Access denied"})
	}

	next := models.JobStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !jobTransitions[job.Status][next] {
		return fail200(c, "Invalid status transition")
	}

	if err := h.DB.Model(&job).Update("status", next).Error; err != nil {
		log.Println("Error updating job status:", err)
		return fail500(c, "Failed to update job")
	}

	job.Status = next
	return c.JSON(fiber.Map{"success": true, "data": job})
}
