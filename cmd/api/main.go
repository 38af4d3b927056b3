package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/marketchat/backend/internal/config"
	"github.com/marketchat/backend/internal/db"
	"github.com/marketchat/backend/internal/model"
	"github.com/marketchat/backend/internal/server"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(lvl)
	}

	srv := server.New(nil, cfg, log)
	addr := ":" + cfg.Port

	errCh := make(chan error, 1)

	go func() {
		log.Info().Str("addr", addr).Msg("starting server")
		errCh <- srv.Start(addr)
	}()

	// The server comes up before the database so health checks pass during
	// slow DB cold starts; repositories return ErrDBNotReady until then.
	go func() {
		conn, err := db.Connect(cfg)
		if err != nil {
			log.Error().Err(err).Msg("db connect failed")
			return
		}
		if err := conn.AutoMigrate(&model.User{}, &model.Message{}, &model.Notification{}); err != nil {
			log.Error().Err(err).Msg("auto migrate failed")
		}
		srv.SetDB(conn)
		log.Info().Msg("database ready")
	}()

	if err := <-errCh; err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
