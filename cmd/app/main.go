package main

import (
	"database/sql"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/session"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/wichananm65/user-management-backend/internal/config"
	"github.com/wichananm65/user-management-backend/internal/csrf"
	"github.com/wichananm65/user-management-backend/internal/imagestore"
	"github.com/wichananm65/user-management-backend/internal/logger"
	"github.com/wichananm65/user-management-backend/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(0).Fatal("failed to load config", "error", err)
	}

	log := logger.New(cfg.LogLevel)

	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to open database", "error", err)
	}
	defer db.Close()

	if err := ensureSchema(db); err != nil {
		log.Fatal("failed to ensure schema", "error", err)
	}

	images, err := imagestore.NewDiskStore(cfg.UploadDir)
	if err != nil {
		log.Fatal("failed to prepare upload dir", "error", err)
	}

	app := fiber.New()
	setupCORS(app)
	app.Use(fiberlogger.New())

	sessions := session.New()
	app.Get("/api/csrf-token", csrf.IssueHandler(sessions))

	handler := user.NewHandler(user.NewService(user.NewPostgresRepository(db), images))
	handler.Register(app, csrf.Protect(sessions))

	// uploaded images and the admin UI are plain static assets
	app.Static("/uploads", cfg.UploadDir)
	app.Static("/", cfg.WebDir)

	log.Info("starting server", "addr", cfg.Addr)
	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatal("server stopped", "error", err)
	}
}

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD",
		AllowHeaders: "Origin, Content-Type, Accept, " + csrf.HeaderName,
	}))
}

func openDB(dbURL string) (*sql.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		name VARCHAR(30) NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone VARCHAR(10) NOT NULL,
		gender TEXT NOT NULL DEFAULT 'Male',
		profile_image TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	return err
}
