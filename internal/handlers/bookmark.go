package handlers

import (
	"errors"
	"log"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/skillbridge-ng/skillbridge_be/internal/models"
)

type BookmarkHandler struct {
	DB *gorm.DB
}

func NewBookmarkHandler(db *gorm.DB) *BookmarkHandler {
	return &BookmarkHandler{DB: db}
}

// WorkerSnapshot is the denormalized listing copy stored in a bookmark map.
// It is frozen at save time and never refreshed.
type WorkerSnapshot struct {
	ID          string  `json:"id"`
	FullName    string  `json:"full_name"`
	Category    string  `json:"category"`
	Location    string  `json:"location"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	HourlyRate  int64   `json:"hourly_rate"`
	Verified    bool    `json:"verified"`
	PhotoURL    string  `json:"photo_url,omitempty"`
}

func snapshotFromListing(l *models.WorkerListing) WorkerSnapshot {
	return WorkerSnapshot{
		ID:          l.UserID.String(),
		FullName:    l.FullName,
		Category:    l.Category,
		Location:    l.Location,
		Rating:      l.Rating,
		ReviewCount: l.ReviewCount,
		HourlyRate:  l.HourlyRate,
		Verified:    l.Verified,
		PhotoURL:    l.PhotoURL,
	}
}

func (s WorkerSnapshot) asMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":           s.ID,
		"full_name":    s.FullName,
		"category":     s.Category,
		"location":     s.Location,
		"rating":       s.Rating,
		"review_count": s.ReviewCount,
		"hourly_rate":  s.HourlyRate,
		"verified":     s.Verified,
	}
	if s.PhotoURL != "" {
		m["photo_url"] = s.PhotoURL
	}
	return m
}

// FilterBookmarkItems returns the snapshots whose full_name contains q,
// case-insensitive, sorted by name. An empty q matches everything; an empty
// map yields an empty slice.
func FilterBookmarkItems(items map[string]interface{}, q string) []map[string]interface{} {
	needle := strings.ToLower(strings.TrimSpace(q))

	out := make([]map[string]interface{}, 0, len(items))
	for _, v := range items {
		entry, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := entry["full_name"].(string)
		if needle != "" && !strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool {
		ni, _ := out[i]["full_name"].(string)
		nj, _ := out[j]["full_name"].(string)
		return ni < nj
	})
	return out
}

// Add saves a snapshot of the worker's listing under the worker's id.
// Re-adding the same worker overwrites the previous snapshot.
// saveBookmark upserts the row; the client id is the primary key, so a plain
// Save would miss the first insert.
func (h *BookmarkHandler) saveBookmark(bm *models.Bookmark) error {
	return h.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}},
		UpdateAll: true,
	}).Create(bm).Error
}

func (h *BookmarkHandler) Add(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req struct {
		WorkerID string `json:"worker_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.WorkerID == "" {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "worker_id required"})
	}

	workerUUID, err := uuid.Parse(req.WorkerID)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid worker ID"})
	}

	var listing models.WorkerListing
	if err := h.DB.First(&listing, "user_id = ?", workerUUID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "message": "Worker not found"})
	}

	var bm models.Bookmark
	err = h.DB.First(&bm, "client_id = ?", userUUID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bm = models.Bookmark{ClientID: userUUID, Items: datatypes.JSONMap{}}
	} else if err != nil {
		log.Println("Error fetching bookmarks:", err)
		return fail500(c, "Failed to fetch bookmarks")
	}
	if bm.Items == nil {
		bm.Items = datatypes.JSONMap{}
	}

	bm.Items[workerUUID.String()] = snapshotFromListing(&listing).asMap()

	if err := h.saveBookmark(&bm); err != nil {
		log.Println("Error saving bookmark:", err)
		return fail500(c, "Failed to save bookmark")
	}

	return c.JSON(fiber.Map{"success": true, "message": "Bookmark saved"})
}

// Remove deletes the worker's key from the caller's bookmark map. Removing an
// absent key is a silent no-op.
func (h *BookmarkHandler) Remove(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	workerID := c.Params("workerId")

	var bm models.Bookmark
	err = h.DB.First(&bm, "client_id = ?", userUUID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(fiber.Map{"success": true})
	} else if err != nil {
		log.Println("Error fetching bookmarks:", err)
		return fail500(c, "Failed to fetch bookmarks")
	}

	if _, ok := bm.Items[workerID]; !ok {
		return c.JSON(fiber.Map{"success": true})
	}

	delete(bm.Items, workerID)
	if err := h.saveBookmark(&bm); err != nil {
		log.Println("Error saving bookmarks:", err)
		return fail500(c, "Failed to remove bookmark")
	}

	return c.JSON(fiber.Map{"success": true})
}

// List returns the caller's saved workers, optionally filtered by name
// substring via the q query param.
func (h *BookmarkHandler) List(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var bm models.Bookmark
	err = h.DB.First(&bm, "client_id = ?", userUUID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(fiber.Map{"success": true, "data": []map[string]interface{}{}})
	} else if err != nil {
		log.Println("Error fetching bookmarks:", err)
		return fail500(c, "Failed to fetch bookmarks")
	}

	out := FilterBookmarkItems(bm.Items, c.Query("q"))
	return c.JSON(fiber.Map{"success": true, "data": out})
}
