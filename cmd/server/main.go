package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/charles-mendoza/agile-poker/config"
	"github.com/charles-mendoza/agile-poker/db"
	"github.com/charles-mendoza/agile-poker/genai"
	"github.com/charles-mendoza/agile-poker/handlers"
	"github.com/charles-mendoza/agile-poker/session"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := newLogger(cfg.LogLevel)

	store, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open room store")
	}
	defer store.Close()

	// Set up periodic cleanup for idle rooms (memory store only; the
	// Postgres store leaves expiry to operators)
	if mem, ok := store.(*db.MemoryStore); ok {
		go func() {
			ticker := time.NewTicker(30 * time.Minute)
			defer ticker.Stop()

			for range ticker.C {
				count := mem.CleanupIdleRooms(cfg.RoomIdleTTL)
				if count > 0 {
					logger.Info().Int("count", count).Msg("cleaned up idle rooms")
				}
			}
		}()
	}

	sessions := session.NewManager(store)
	roomHandler := handlers.NewRoomHandler(store, sessions, logger)

	var explainer handlers.DiscrepancyExplainer
	if cfg.ExplainAPIURL != "" {
		explainer = genai.NewExplainer(cfg.ExplainAPIURL, cfg.ExplainTimeout)
	}
	explainHandler := handlers.NewExplainHandler(store, explainer)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	// API Routes
	api := router.Group("/api")
	{
		// Room creation
		api.POST("/rooms", roomHandler.CreateRoom)

		// Room routes
		rooms := api.Group("/rooms/:id")
		{
			rooms.GET("", roomHandler.GetRoom)
			rooms.POST("/join", roomHandler.JoinRoom)
			rooms.POST("/start", roomHandler.StartGame)
			rooms.POST("/vote", roomHandler.SubmitVote)
			rooms.GET("/reveal", roomHandler.RevealCards)
			rooms.GET("/reset", roomHandler.ResetVoting)
			rooms.GET("/cancel-round", roomHandler.CancelRound)
			rooms.GET("/reveal-mode", roomHandler.ToggleRevealMode)
			rooms.POST("/select-story", roomHandler.SelectStory)
			rooms.POST("/finalize", roomHandler.FinalizeEstimate)
			rooms.POST("/stories", roomHandler.AddStory)
			rooms.GET("/tally", roomHandler.Tally)
			rooms.POST("/explain", explainHandler.Explain)

			// WebSocket endpoint for real-time snapshots
			rooms.GET("/events", roomHandler.StreamEvents)
		}
	}

	// Start the server
	logger.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("starting server")
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(lvl).With().Timestamp().Logger()
}

func newStore(cfg *config.Config, logger zerolog.Logger) (db.RoomStore, error) {
	if cfg.StoreDriver == config.DriverPostgres {
		return db.NewPostgresStore(context.Background(), cfg.DatabaseURL, logger)
	}
	return db.NewMemoryStore(), nil
}
