package app

import (
	"context"
	"log"
	"os"
	"time"

	"qwikchat/internal/config"
	"qwikchat/internal/db"
	"qwikchat/internal/handlers"
	"qwikchat/internal/services"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 10 * time.Second

// New builds the relay: the HTTP API and the /ws push channel over store.
func New(store services.Store, historyLimit int) *fiber.App {
	userService := services.NewUserService(store)
	chatService := services.NewChatService(store, historyLimit)
	manager := handlers.NewRoomManager()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/users", handlers.ListUsersHandler(userService))
	app.Get("/users/phone/:phone", handlers.GetUserByPhoneHandler(userService))
	app.Post("/users/create", handlers.CreateUserHandler(userService))

	app.Get("/rooms", handlers.ListRoomsHandler(chatService))
	app.Post("/rooms/create", handlers.CreateRoomHandler(chatService))

	app.Get("/conversations/:room_id", handlers.ConversationHandler(chatService))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use("/ws", handlers.WSUpgradeMiddleware)
	app.Get("/ws", handlers.WebSocketHandler(chatService, manager))

	return app
}

// Run starts the relay from environment configuration and blocks until
// a shutdown signal.
func Run() {
	var cfg config.Relay
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var store services.Store
	closeStore := func() {}
	if connString := cfg.ConnString(); connString != "" {
		ctx := context.Background()
		pool, err := db.Connect(ctx, connString)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		store = services.NewPostgresStore(pool)
		closeStore = pool.Close
	} else {
		log.Println("No database configured, using in-memory store")
		store = services.NewMemoryStore()
	}

	app := New(store, cfg.HistoryLimit)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Panic(err)
		}
	}()
	log.Printf("Relay listening on :%s", cfg.Port)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"fiber": func(ctx context.Context) error {
				log.Println("Gracefully shutting down...")
				return app.ShutdownWithContext(ctx)
			},
		},
	)

	exitCode := <-wait
	closeStore()
	log.Println("Server shutdown complete")
	os.Exit(exitCode)
}
