package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/draftwire/socialcast/configs"
	"github.com/draftwire/socialcast/internal/api/handlers"
	"github.com/draftwire/socialcast/internal/api/middleware"
	job "github.com/draftwire/socialcast/internal/jobs"
	"github.com/draftwire/socialcast/internal/models"
	"github.com/draftwire/socialcast/internal/platform"
	"github.com/draftwire/socialcast/internal/queue"
	"github.com/draftwire/socialcast/internal/repository"
	"github.com/draftwire/socialcast/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	oauthStateRepo := repository.NewOAuthStateRepository(db)
	publishAttemptRepo := repository.NewPublishAttemptRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)

	clients := platform.Registry{
		models.PlatformTwitter:   platform.NewTwitterClient(*cfg),
		models.PlatformLinkedin:  platform.NewLinkedinClient(*cfg),
		models.PlatformInstagram: platform.NewInstagramClient(*cfg),
	}

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo)
	tokenService := service.NewTokenService(*cfg, socialAccountRepo, clients)
	accountService := service.NewAccountService(*cfg, socialAccountRepo, oauthStateRepo, tokenService, clients)
	publishService := service.NewPublishService(postRepo, socialAccountRepo, publishAttemptRepo, tokenService, clients)
	postService := service.NewPostService(postRepo, publishAttemptRepo)
	assetService := service.NewAssetService(*cfg, mediaAssetRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService, userService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallback)
	app.Post("/logout", auth.Logout)

	account := handlers.NewAccountHandler(*cfg, accountService)
	app.Get("/auth/:platform/callback", account.Callback)

	api := app.Group("/api")
	api.Use(authMiddleware.RequireAuth())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveApiKey)

	asset := handlers.NewAssetHandler(assetService)
	api.Post("/assets/upload", asset.UploadAsset)
	api.Get("/assets", asset.ListAssets)

	post := handlers.NewPostHandler(postService, publishService, client)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Put("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Get("/posts/:id/history", post.PostHistory)

	api.Get("/accounts", account.List)

	// account connections and publishing mutate external state, admin only.
	// Fiber applies group middleware positionally, so every read route must
	// be registered before this group is created.
	admin := api.Group("", authMiddleware.RequireAdmin())
	admin.Get("/accounts/connect/:platform", account.Connect)
	admin.Post("/accounts/:id/verify", account.Verify)
	admin.Post("/accounts/:id/refresh", account.RefreshToken)
	admin.Delete("/accounts/:id", account.Disconnect)
	admin.Post("/posts/:id/publish", post.PublishPost)
	admin.Post("/posts/:id/retry", post.RetryPost)

	watchdogJob := job.NewPublishWatchdogJob(postRepo, oauthStateRepo)

	worker := queue.NewWorker(publishService)

	c := cron.New()
	c.AddFunc("@every 00h05m00s", watchdogJob.Run)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, worker.HandlePublishPostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
