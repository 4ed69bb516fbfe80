package handlers

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skillbridge-ng/skillbridge_be/internal/models"
)

type WorkerHandler struct {
	DB            *gorm.DB
	UploadDir     string
	PublicBaseURL string
}

func NewWorkerHandler(db *gorm.DB, uploadDir, publicBaseURL string) *WorkerHandler {
	return &WorkerHandler{DB: db, UploadDir: uploadDir, PublicBaseURL: publicBaseURL}
}

type UpsertListingReq struct {
	FullName   string         `json:"full_name"`
	Category   string         `json:"category"`
	Location   string         `json:"location"`
	HourlyRate int64          `json:"hourly_rate"`
	About      string         `json:"about"`
	Extras     datatypes.JSON `json:"extras"`
}

// UpsertListing creates or merges the caller's discovery listing. The merge
// never touches verified, rating or review_count; those are owned by the
// admin/review flows.
func (h *WorkerHandler) UpsertListing(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req UpsertListingReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid body"})
	}

	fullName := strings.TrimSpace(req.FullName)
	category := strings.TrimSpace(req.Category)

	errs := FieldErrors{}
	if fullName == "" {
		errs.Add("full_name", "Name is required")
	}
	if category == "" {
		errs.Add("category", "Skill is required")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	listing := models.WorkerListing{
		UserID:     userUUID,
		FullName:   fullName,
		Category:   category,
		Location:   strings.TrimSpace(req.Location),
		HourlyRate: req.HourlyRate,
		About:      req.About,
		Extras:     req.Extras,
	}

	if err := h.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"full_name", "category", "location", "hourly_rate", "about", "extras", "updated_at",
		}),
	}).Create(&listing).Error; err != nil {
		log.Println("Error upserting listing:", err)
		return fail500(c, "Failed to save listing")
	}

	if err := h.DB.First(&listing, "user_id = ?", userUUID).Error; err != nil {
		return fail500(c, "Failed to fetch listing")
	}

	return c.JSON(fiber.Map{"success": true, "data": listing})
}

// GetMyListing returns the caller's own listing.
func (h *WorkerHandler) GetMyListing(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var listing models.WorkerListing
	if err := h.DB.First(&listing, "user_id = ?", userUUID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Listing not found",
		})
	}

	return c.JSON(fiber.Map{"success": true, "data": listing})
}

// ListPublic returns listings filtered by service/location substring,
// case-insensitive.
func (h *WorkerHandler) ListPublic(c *fiber.Ctx) error {
	service := strings.TrimSpace(c.Query("service"))
	location := strings.TrimSpace(c.Query("location"))

	q := h.DB.Model(&models.WorkerListing{})
	if service != "" {
		q = q.Where("category ILIKE ?", "%"+service+"%")
	}
	if location != "" {
		q = q.Where("location ILIKE ?", "%"+location+"%")
	}

	var listings []models.WorkerListing
	if err := q.Order("rating DESC, review_count DESC").Find(&listings).Error; err != nil {
		log.Println("Error listing workers:", err)
		return fail500(c, "Failed to fetch workers")
	}

	return c.JSON(fiber.Map{"success": true, "data": listings})
}

// GetDetail returns one listing by its owner's user id.
func (h *WorkerHandler) GetDetail(c *fiber.Ctx) error {
	workerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid worker ID"})
	}

	var listing models.WorkerListing
	if err := h.DB.First(&listing, "user_id = ?", workerID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Worker not found"})
	}

	return c.JSON(fiber.Map{"success": true, "data": listing})
}

// UploadPhoto stores a profile photo under the upload dir and records its
// public URL on the listing.
func (h *WorkerHandler) UploadPhoto(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	file, err := c.FormFile("photo")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Photo file is required",
		})
	}

	if file.Size <= 0 {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid file size",
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" && ext != ".webp" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Unsupported file type",
		})
	}

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return fail500(c, "Failed to prepare upload dir")
	}

	name := fmt.Sprintf("worker_%s%s", userUUID.String(), ext)
	dst := filepath.Join(h.UploadDir, name)
	if err := c.SaveFile(file, dst); err != nil {
		log.Println("Error saving photo:", err)
		return fail500(c, "Failed to save photo")
	}

	photoURL := h.PublicBaseURL + "/uploads/" + name
	result := h.DB.Model(&models.WorkerListing{}).
		Where("user_id = ?", userUUID).
		Update("photo_url", photoURL)
	if result.Error != nil {
		return fail500(c, "Failed to update listing")
	}
	if result.RowsAffected == 0 {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Listing not found",
		})
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"photo_url": photoURL}})
}
