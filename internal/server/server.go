package server

import (
	"time"

	"docchat-client/internal/bootstrap"
	"docchat-client/internal/config"
	"docchat-client/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const (
	// A handful of PDFs per upload.
	bodyLimit       = 50 * 1024 * 1024
	shutdownTimeout = 10 * time.Second
)

// Server is the local bridge a rendering layer talks to: commands over REST
// and workspace snapshots over a websocket.
type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "docchat-bridge",
		BodyLimit:             bodyLimit,
		ErrorHandler:          serverutils.ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: cfg.App.CorsAllowedOrigins != "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(otelfiber.Middleware())
	app.Use(serverutils.ErrorHandlerMiddleware())

	s := &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
	s.routes()
	return s
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	api.Get("/health", s.health)
	s.container.AuthController.RegisterRoutes(api)
	s.container.ChatController.RegisterRoutes(api)
	s.container.WorkspaceHandler.RegisterRoutes(api)
}

// health answers without authentication so launchers can poll readiness.
func (s *Server) health(ctx *fiber.Ctx) error {
	_, signedIn := s.container.IdentityService.Current()
	return ctx.JSON(serverutils.SuccessResponse("ok", fiber.Map{
		"signed_in": signedIn,
		"renderers": s.container.WebSocketHub.ClientCount(),
	}))
}

func (s *Server) Run() error {
	s.container.Logger.Info("Server", "Bridge listening", map[string]interface{}{
		"addr": ":" + s.cfg.App.Port,
	})
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown() error {
	s.container.Logger.Info("Server", "Shutting down", nil)
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}
