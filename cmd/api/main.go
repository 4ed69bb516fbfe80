package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/skillbridge-ng/skillbridge_be/internal/config"
	"github.com/skillbridge-ng/skillbridge_be/internal/db"
	"github.com/skillbridge-ng/skillbridge_be/internal/handlers"
	"github.com/skillbridge-ng/skillbridge_be/internal/middleware"
	"github.com/skillbridge-ng/skillbridge_be/internal/models"
	"github.com/skillbridge-ng/skillbridge_be/internal/realtime"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Redis not reachable:", err)
	}

	hub := realtime.NewHub()
	go hub.Run()

	// hub receives its events through Redis so every instance fans out
	if err := realtime.StartBridge(context.Background(), rdb, hub); err != nil {
		log.Fatal("Failed to start realtime bridge:", err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.WorkerListing{},
		&models.Conversation{},
		&models.Message{},
		&models.Bookmark{},
		&models.Job{},
	); err != nil {
		log.Fatal(err)
	}

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendBaseURL + ", http://127.0.0.1:3000, http://localhost:3000",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	app.Options("/*", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Static("/uploads", cfg.UploadDir)

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}

	profileH := handlers.NewProfileHandler(gdb)
	workerH := handlers.NewWorkerHandler(gdb, cfg.UploadDir, "")
	bookmarkH := handlers.NewBookmarkHandler(gdb)
	adminH := handlers.NewAdminHandler(gdb)
	jobH := handlers.NewJobHandler(gdb)
	dashH := handlers.NewDashboardHandler(gdb)
	chatH := handlers.NewChatHandler(gdb, hub, rdb, cfg.JWTSecret)

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)
	api.Get("/workers", workerH.ListPublic)
	api.Get("/workers/:id", workerH.GetDetail)

	// protected (JWT from cookie)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", profileH.Me)

	// client
	protected.Patch("/client/profile",
		middleware.RequireRoles("client"),
		profileH.UpdateClientProfile,
	)
	protected.Get("/client/dashboard/stats",
		middleware.RequireRoles("client"),
		dashH.ClientStats,
	)
	protected.Post("/client/bookmarks",
		middleware.RequireRoles("client"),
		bookmarkH.Add,
	)
	protected.Get("/client/bookmarks",
		middleware.RequireRoles("client"),
		bookmarkH.List,
	)
	protected.Delete("/client/bookmarks/:workerId",
		middleware.RequireRoles("client"),
		bookmarkH.Remove,
	)
	protected.Post("/client/jobs",
		middleware.RequireRoles("client"),
		jobH.CreateJob,
	)
	protected.Get("/client/jobs",
		middleware.RequireRoles("client"),
		jobH.ListClientJobs,
	)

	// worker
	protected.Get("/worker/listing",
		middleware.RequireRoles("worker"),
		workerH.GetMyListing,
	)
	protected.Put("/worker/listing",
		middleware.RequireRoles("worker"),
		workerH.UpsertListing,
	)
	protected.Post("/worker/listing/photo",
		middleware.RequireRoles("worker"),
		workerH.UploadPhoto,
	)
	protected.Get("/worker/jobs",
		middleware.RequireRoles("worker"),
		jobH.ListWorkerJobs,
	)
	protected.Patch("/worker/jobs/:id/status",
		middleware.RequireRoles("worker"),
		jobH.UpdateJobStatus,
	)
	protected.Get("/worker/dashboard/stats",
		middleware.RequireRoles("worker"),
		dashH.WorkerStats,
	)

	// chat
	chat := protected.Group("/chat")
	chat.Post("/conversations", chatH.EnsureConversation)
	chat.Get("/conversations", chatH.GetConversations)
	chat.Get("/conversations/:id/messages", chatH.GetMessages)
	chat.Post("/conversations/:id/messages", chatH.SendMessage)
	chat.Patch("/conversations/:id/read", chatH.MarkAsRead)

	// admin
	admin := protected.Group("/admin", middleware.RequireRoles("admin"))
	admin.Get("/users", adminH.ListUsers)
	admin.Get("/workers/pending", adminH.PendingWorkers)
	admin.Patch("/workers/:id/verify", adminH.VerifyWorker)
	admin.Get("/stats", adminH.Stats)

	// WebSocket endpoint (session cookie or token query param)
	app.Get("/ws/chat", websocket.New(chatH.WebSocketHandler))

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
