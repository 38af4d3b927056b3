package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/marketchat/backend/internal/auth"
	"github.com/marketchat/backend/internal/config"
	"github.com/marketchat/backend/internal/handler"
	appmw "github.com/marketchat/backend/internal/middleware"
	"github.com/marketchat/backend/internal/repository"
	"github.com/marketchat/backend/internal/service"
	"github.com/marketchat/backend/internal/ws"
)

type Server struct {
	e        *echo.Echo
	userRepo repository.UserRepository
	msgRepo  repository.MessageRepository
	notiRepo repository.NotificationRepository
}

// New wires the full gateway. db may be nil at startup; repositories reply
// ErrDBNotReady until SetDB injects a live handle.
func New(db *gorm.DB, cfg *config.Config, log zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false, nil
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false, nil
			}
			if strings.HasSuffix(u.Hostname(), "vercel.app") {
				return true, nil
			}
			return false, nil
		},
	}))

	userRepo := repository.NewUserRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	notiRepo := repository.NewNotificationRepository(db)

	chatSvc := service.NewChatService(msgRepo, userRepo)
	notiSvc := service.NewNotificationService(notiRepo)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret, userRepo)
	authMw := appmw.NewAuthMiddleware(verifier)

	hub := ws.NewHub(chatSvc, notiSvc, time.Duration(cfg.TypingTTLSeconds)*time.Second, log)
	wsHandler := ws.NewHandler(hub, verifier, cfg.WSSendBuffer, log)

	convHandler := handler.NewConversationHandler(chatSvc)
	notiHandler := handler.NewNotificationHandler(notiSvc)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "true"})
	})

	e.GET("/ws", wsHandler.Serve)

	api := e.Group("/api")
	api.GET("/conversations", convHandler.List, authMw.RequireAuth)
	api.GET("/conversations/:otherUserId/messages", convHandler.History, authMw.RequireAuth)
	api.POST("/conversations/:otherUserId/read", convHandler.MarkRead, authMw.RequireAuth)
	api.DELETE("/messages/:id", convHandler.DeleteMessage, authMw.RequireAuth)
	api.GET("/notifications", notiHandler.List, authMw.RequireAuth)
	api.POST("/notifications/read", notiHandler.MarkAllRead, authMw.RequireAuth)

	return &Server{
		e:        e,
		userRepo: userRepo,
		msgRepo:  msgRepo,
		notiRepo: notiRepo,
	}
}

// SetDB injects the database handle into every repository once the
// connection is up.
func (s *Server) SetDB(db *gorm.DB) {
	s.userRepo.SetDB(db)
	s.msgRepo.SetDB(db)
	s.notiRepo.SetDB(db)
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}
