package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/idkjulii/PetAlertBack/internal/config"
	"github.com/idkjulii/PetAlertBack/internal/handlers"
	"github.com/idkjulii/PetAlertBack/internal/middleware"
	"github.com/idkjulii/PetAlertBack/internal/realtime"
	"github.com/idkjulii/PetAlertBack/internal/repository"
	"github.com/idkjulii/PetAlertBack/internal/services"
	chatws "github.com/idkjulii/PetAlertBack/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, redisClient *redis.Client) *chatws.Hub {
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	petRepo := repository.NewPetRepository(db)
	reportRepo := repository.NewReportRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	storage := services.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	var vision *services.VisionService
	if cfg.VisionURL != "" {
		vision = services.NewVisionService(cfg.VisionURL)
	}

	feed := realtime.NewFeed(redisClient)
	reportService := services.NewReportService(reportRepo)
	nearbyService := services.NewNearbyService(reportRepo, cfg.NearbyRadiusMeters)
	matchService := services.NewMatchService(reportRepo)
	chatService := services.NewChatService(conversationRepo, messageRepo, feed)
	chatHub := chatws.NewHub()

	authHandler := handlers.NewAuthHandler(db, userRepo, profileRepo, cfg.JWTSecret)
	profileHandler := handlers.NewProfileHandler(profileRepo, storage)
	petHandler := handlers.NewPetHandler(petRepo, storage)
	reportHandler := handlers.NewReportHandler(handlers.ReportServiceSet{
		Reports: reportService,
		Nearby:  nearbyService,
		Matcher: matchService,
		Labels:  reportRepo,
		Storage: storage,
		Vision:  vision,
	})
	chatHandler := handlers.NewChatHandler(chatService, chatHub, feed)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	profile := authProtected.Group("/profile")
	profile.Get("", profileHandler.GetMe)
	profile.Put("", profileHandler.UpdateMe)
	profile.Put("/location", profileHandler.UpdateLocation)
	profile.Post("/avatar", profileHandler.UploadAvatar)

	pets := authProtected.Group("/pets")
	pets.Post("", petHandler.Create)
	pets.Get("", petHandler.ListMine)
	pets.Get("/:id", petHandler.Get)
	pets.Patch("/:id", petHandler.Update)
	pets.Put("/:id/lost", petHandler.SetLost)
	pets.Delete("/:id", petHandler.Delete)
	pets.Post("/:id/photo", petHandler.UploadPhoto)

	reports := authProtected.Group("/reports")
	reports.Post("", reportHandler.Create)
	reports.Get("", reportHandler.ListActive)
	reports.Get("/nearby", reportHandler.Nearby)
	reports.Get("/mine", reportHandler.ListMine)
	reports.Get("/:id", reportHandler.Get)
	reports.Patch("/:id", reportHandler.Update)
	reports.Post("/:id/resolve", reportHandler.Resolve)
	reports.Post("/:id/cancel", reportHandler.Cancel)
	reports.Post("/:id/photo", reportHandler.UploadPhoto)
	reports.Get("/:id/match", reportHandler.AutoMatch)

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.StartConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Post("/:id/read", chatHandler.MarkRead)

	api.Use("/v1/ws", middleware.AuthRequired(cfg.JWTSecret), chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	return chatHub
}
