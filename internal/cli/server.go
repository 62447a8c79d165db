package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"planet-quiz-service/internal/app"
	"planet-quiz-service/internal/config"
	"planet-quiz-service/internal/domain"
	"planet-quiz-service/internal/infra/memory"
	pginfra "planet-quiz-service/internal/infra/postgres"
	redisinfra "planet-quiz-service/internal/infra/redis"
	transport "planet-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt server",
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
	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var bank app.QuestionBank
	var attempts app.AttemptStore
	if pool != nil {
		loader := pginfra.NewBankLoader(pool)
		if redisClient != nil {
			bank = redisinfra.NewQuestionBank(redisClient, loader, bankTTL)
		} else {
			bank = memory.NewQuestionBank(loader, bankTTL)
		}

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		attempts = pginfra.NewAttemptStore(bun.NewDB(sqldb, pgdialect.New()))
	} else {
		// Demo mode: everything in memory.
		bank = memory.NewQuestionBank(memory.NewStaticBankLoader(sampleQuizzes()), bankTTL)
		users := memory.NewUserStore(sampleLevels())
		users.Put(domain.User{ID: "demo-user", Username: "demo", TotalXp: 0, Level: 1})
		attempts = memory.NewAttemptStore(users)
	}

	service := app.NewAttemptService(attempts, bank)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz attempt service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides a minimal data set for demo mode; production runs
// load content from Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-mars": {
			ID:       "quiz-mars",
			PlanetID: "planet-mars",
			Title:    "Mars basics",
			RewardXp: 100,
			MinLevel: 1,
			Questions: []domain.Question{
				{
					ID:      "q1",
					QuizID:  "quiz-mars",
					Content: "How many moons does Mars have?",
					Options: []domain.Option{
						{ID: "o1", QuestionID: "q1", Content: "1", Correct: false},
						{ID: "o2", QuestionID: "q1", Content: "2", Correct: true},
						{ID: "o3", QuestionID: "q1", Content: "4", Correct: false},
					},
				},
				{
					ID:      "q2",
					QuizID:  "quiz-mars",
					Content: "What gives Mars its red color?",
					Options: []domain.Option{
						{ID: "o4", QuestionID: "q2", Content: "Iron oxide", Correct: true},
						{ID: "o5", QuestionID: "q2", Content: "Methane", Correct: false},
					},
				},
			},
		},
	}
}

func sampleLevels() []domain.Level {
	return []domain.Level{
		{Level: 1, MinXp: 0, RankName: "Stargazer"},
		{Level: 2, MinXp: 100, RankName: "Explorer"},
		{Level: 3, MinXp: 300, RankName: "Astronaut"},
	}
}
