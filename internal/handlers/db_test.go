package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/skillbridge-ng/skillbridge_be/internal/models"
)

// testSchema mirrors the Postgres tables on sqlite. AutoMigrate is not usable
// here: the models carry Postgres uuid defaults. Messages get their seq from
// the rowid via a trigger, matching the serial column's insertion order.
var testSchema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		is_active BOOLEAN DEFAULT true,
		location TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE worker_listings (
		id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		user_id TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		category TEXT,
		location TEXT,
		rating REAL DEFAULT 0,
		review_count INTEGER DEFAULT 0,
		hourly_rate INTEGER DEFAULT 0,
		verified BOOLEAN DEFAULT false,
		about TEXT,
		photo_url TEXT,
		extras TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE conversations (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		client_name TEXT,
		worker_name TEXT,
		last_msg TEXT,
		last_msg_at DATETIME,
		client_unread INTEGER DEFAULT 0,
		worker_unread INTEGER DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE messages (
		id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
		seq INTEGER,
		conversation_id TEXT,
		sender_id TEXT,
		text TEXT,
		created_at DATETIME
	)`,
	`CREATE UNIQUE INDEX idx_messages_seq ON messages(seq)`,
	`CREATE TRIGGER messages_seq AFTER INSERT ON messages FOR EACH ROW
		WHEN NEW.seq IS NULL
	BEGIN
		UPDATE messages SET seq = NEW.rowid WHERE rowid = NEW.rowid;
	END`,
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	// a second pool connection would see its own empty :memory: database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	for _, stmt := range testSchema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name, email string, role models.Role) models.User {
	t.Helper()
	u := models.User{
		ID:       uuid.New(),
		Name:     name,
		Email:    email,
		Password: "hashed",
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

// testApp authenticates requests through the X-Test-User header; only the
// userId local matters to the handlers, the cookie middleware has its own
// tests.
func testApp() *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if uid := c.Get("X-Test-User"); uid != "" {
			c.Locals("userId", uid)
		}
		return c.Next()
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, user uuid.UUID, body interface{}) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set("X-Test-User", user.String())
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
