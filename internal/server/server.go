package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/orourkera/go-ruck-yourself-sub010/internal/auth"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/config"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/heartrate"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/session"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/split"
	"github.com/orourkera/go-ruck-yourself-sub010/internal/stream"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Nats   *nats.Conn
	Stream *stream.Hub
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, natsConn *nats.Conn) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Nats:   natsConn,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	svc := session.NewService(s.DB, s.Stream, s.collaborators(), s.Cfg)
	sessions := s.App.Group("/sessions", jwtMiddleware)
	session.RegisterRoutes(sessions, svc)

	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

// collaborators wires the NATS-backed hookups when a broker is configured.
// Without one, sessions run with the manual heart-rate path only and split
// notifications stay local.
func (s *Server) collaborators() session.Collaborators {
	collab := session.Collaborators{}
	if s.Nats != nil {
		conn := s.Nats
		collab.Wearable = func(sessionID string) heartrate.WearableSource {
			return heartrate.NewNatsWearableSource(conn, fmt.Sprintf("hr.%s", sessionID))
		}
		collab.Notifier = split.NewNatsNotifier(conn)
	}
	return collab
}
