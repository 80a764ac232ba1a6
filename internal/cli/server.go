package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"live-event-service/internal/app"
	"live-event-service/internal/config"
	"live-event-service/internal/domain"
	"live-event-service/internal/infra/memory"
	pgloader "live-event-service/internal/infra/postgres"
	redisinfra "live-event-service/internal/infra/redis"
	transport "live-event-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live event server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.EventLoader = memory.NewStaticEventLoader(sampleEvents())
	if pool != nil {
		loader = pgloader.NewEventLoader(pool)
	}

	eventTTL := config.TTLDuration(cfg.Event.TTL, 10*time.Minute)
	var eventRepo app.EventRepository
	if redisClient != nil {
		eventRepo = redisinfra.NewEventRepository(redisClient, loader, eventTTL)
	} else {
		eventRepo = memory.NewEventRepository(loader, eventTTL)
	}

	var rooms app.RoomRepository
	if redisClient != nil {
		rooms = redisinfra.NewRoomStore(redisClient, redisTTL)
	} else {
		rooms = memory.NewRoomStore()
	}

	hub := transport.NewHub(logger)
	orch := app.NewOrchestrator(rooms, eventRepo, hub, app.ScoringConfig{
		BaseScore:        cfg.Scoring.BaseScore,
		SpeedBonusMax:    cfg.Scoring.SpeedBonusMax,
		StreakBonus:      cfg.Scoring.StreakBonus,
		StreakThresholds: cfg.Scoring.StreakThresholds,
	})
	wsHandler := transport.NewWSHandler(orch, hub, cfg.WS.SendBuffer, logger)
	restHandler := transport.NewRESTHandler(orch, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	restHandler.Mount(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting live event service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleEvents provides a demo event with one of each activity type; swap
// the loader for the Postgres-backed one in production.
func sampleEvents() map[string]domain.Event {
	return map[string]domain.Event{
		"event-1": {
			ID:          "event-1",
			OrganizerID: "organizer-1",
			Name:        "Demo Night",
			Status:      domain.EventLive,
			Activities: []domain.Activity{
				{
					ID:      "quiz-1",
					EventID: "event-1",
					Name:    "Warm-up Quiz",
					Type:    domain.ActivityQuiz,
					Status:  domain.ActivityReady,
					Quiz: &domain.QuizConfig{
						ScoringEnabled: true,
						SpeedBonus:     true,
						StreakTracking: true,
						Questions: []domain.Question{
							{
								ID:   "q1",
								Text: "What is 2 + 2?",
								Options: []domain.Option{
									{ID: "o1", Text: "3"},
									{ID: "o2", Text: "4", Correct: true},
									{ID: "o3", Text: "5"},
								},
								TimerSeconds: 10,
								OrderIndex:   1,
							},
							{
								ID:   "q2",
								Text: "Which planet is closest to the sun?",
								Options: []domain.Option{
									{ID: "o1", Text: "Venus"},
									{ID: "o2", Text: "Mercury", Correct: true},
								},
								TimerSeconds: 15,
								OrderIndex:   2,
							},
						},
					},
				},
				{
					ID:      "poll-1",
					EventID: "event-1",
					Name:    "Audience Poll",
					Type:    domain.ActivityPoll,
					Status:  domain.ActivityReady,
					Poll: &domain.PollConfig{
						Question: "What should we do next?",
						Options: []domain.PollOption{
							{ID: "p1", Text: "Another quiz"},
							{ID: "p2", Text: "A raffle"},
						},
						ShowResultsLive: true,
					},
				},
				{
					ID:      "raffle-1",
					EventID: "event-1",
					Name:    "Door Prize",
					Type:    domain.ActivityRaffle,
					Status:  domain.ActivityReady,
					Raffle: &domain.RaffleConfig{
						Prize:       "Conference ticket",
						EntryMethod: domain.EntryManual,
						WinnerCount: 1,
					},
				},
			},
		},
	}
}
