package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"planet-quiz-service/internal/app"
	"planet-quiz-service/internal/domain"
	"planet-quiz-service/internal/infra/memory"
	pginfra "planet-quiz-service/internal/infra/postgres"
	pgmigrations "planet-quiz-service/internal/infra/postgres/migrations"
	infraredis "planet-quiz-service/internal/infra/redis"
)

func TestAttemptFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(t, pgURL)
	defer db.Close()
	migrateAndSeed(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	bank := infraredis.NewQuestionBank(redisClient, pginfra.NewBankLoader(pool), 5*time.Minute)
	store := pginfra.NewAttemptStore(db)
	service := app.NewAttemptService(store, bank)

	// First run: perfect score earns the quiz reward and a level promotion.
	attempt, order, err := service.Start(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(order) != 2 {
		t.Fatalf("expected 2 questions, got %v", order)
	}

	var result domain.AnswerResult
	for _, questionID := range order {
		result, err = service.SubmitAnswer(ctx, attempt.ID, questionID, questionID+"-right")
		if err != nil {
			t.Fatalf("submit %s: %v", questionID, err)
		}
		if !result.IsCorrect {
			t.Fatalf("expected correct answer for %s", questionID)
		}
	}
	if !result.IsFinished || result.Score == nil || *result.Score != 10 {
		t.Fatalf("expected finished with score 10, got %+v", result)
	}
	if result.XpEarned == nil || *result.XpEarned != 100 {
		t.Fatalf("expected 100 xp, got %+v", result.XpEarned)
	}

	var totalXp, level int
	if err := db.QueryRowContext(ctx, `SELECT total_xp, level FROM users WHERE id = ?`, "u1").Scan(&totalXp, &level); err != nil {
		t.Fatalf("read user: %v", err)
	}
	if totalXp != 100 || level != 2 {
		t.Fatalf("expected user at 100xp level 2, got xp=%d level=%d", totalXp, level)
	}

	// Repeat completion scores but does not reward again.
	repeat, order, err := service.Start(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	for _, questionID := range order {
		result, err = service.SubmitAnswer(ctx, repeat.ID, questionID, questionID+"-right")
		if err != nil {
			t.Fatalf("repeat submit: %v", err)
		}
	}
	if result.XpEarned == nil || *result.XpEarned != 0 {
		t.Fatalf("repeat completion must not reward, got %+v", result.XpEarned)
	}

	// Further submissions against the finished attempt are rejected.
	if _, err := service.SubmitAnswer(ctx, repeat.ID, order[0], order[0]+"-right"); !errors.Is(err, domain.ErrAttemptFinished) {
		t.Fatalf("expected attempt finished, got %v", err)
	}

	ids, err := service.CompletedQuizIDs(ctx, "u1")
	if err != nil {
		t.Fatalf("completed quizzes: %v", err)
	}
	if len(ids) != 1 || ids[0] != "quiz-1" {
		t.Fatalf("expected [quiz-1], got %v", ids)
	}
}

func TestResumeSurvivesReconnect(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := openBun(t, pgURL)
	defer db.Close()
	migrateAndSeed(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pginfra.NewAttemptStore(db)
	service := app.NewAttemptService(store, memory.NewQuestionBank(pginfra.NewBankLoader(pool), time.Minute))

	attempt, order, err := service.Start(ctx, "u1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, attempt.ID, order[0], order[0]+"-wrong"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	resumed, resumedOrder, err := service.Resume(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.CurrentIndex != 1 {
		t.Fatalf("expected resumed index 1, got %d", resumed.CurrentIndex)
	}
	if len(resumedOrder) != len(order) || resumedOrder[0] != order[0] {
		t.Fatalf("expected stored order preserved, got %v vs %v", resumedOrder, order)
	}
}

func TestDeleteQuizRefusesAttemptedQuiz(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := openBun(t, pgURL)
	defer db.Close()
	migrateAndSeed(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pginfra.NewAttemptStore(db)
	service := app.NewAttemptService(store, memory.NewQuestionBank(pginfra.NewBankLoader(pool), time.Minute))

	if _, _, err := service.Start(ctx, "u1", "quiz-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := store.DeleteQuiz(ctx, "quiz-1"); !errors.Is(err, domain.ErrQuizAttempted) {
		t.Fatalf("expected quiz attempted, got %v", err)
	}
	if err := store.DeleteQuiz(ctx, "quiz-2"); err != nil {
		t.Fatalf("expected unattempted quiz deleted, got %v", err)
	}
	if err := store.DeleteQuiz(ctx, "quiz-2"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz gone, got %v", err)
	}
}

func openBun(t *testing.T, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func migrateAndSeed(t *testing.T, ctx context.Context, db *bun.DB) {
	t.Helper()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	statements := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO quizzes (id, planet_id, title, reward_xp, min_level) VALUES (?, ?, ?, ?, ?)`,
			[]any{"quiz-1", "mars", "Mars basics", 100, 1}},
		{`INSERT INTO quizzes (id, planet_id, title, reward_xp, min_level) VALUES (?, ?, ?, ?, ?)`,
			[]any{"quiz-2", "venus", "Venus basics", 50, 1}},
		{`INSERT INTO questions (id, quiz_id, content) VALUES (?, ?, ?)`,
			[]any{"q1", "quiz-1", "How many moons does Mars have?"}},
		{`INSERT INTO questions (id, quiz_id, content) VALUES (?, ?, ?)`,
			[]any{"q2", "quiz-1", "What gives Mars its red color?"}},
		{`INSERT INTO question_options (id, question_id, content, is_correct) VALUES (?, ?, ?, ?)`,
			[]any{"q1-right", "q1", "Two", true}},
		{`INSERT INTO question_options (id, question_id, content, is_correct) VALUES (?, ?, ?, ?)`,
			[]any{"q1-wrong", "q1", "One", false}},
		{`INSERT INTO question_options (id, question_id, content, is_correct) VALUES (?, ?, ?, ?)`,
			[]any{"q2-right", "q2", "Iron oxide", true}},
		{`INSERT INTO question_options (id, question_id, content, is_correct) VALUES (?, ?, ?, ?)`,
			[]any{"q2-wrong", "q2", "Copper", false}},
		{`INSERT INTO levels (level, min_xp, rank_name) VALUES (?, ?, ?)`, []any{1, 0, "Stargazer"}},
		{`INSERT INTO levels (level, min_xp, rank_name) VALUES (?, ?, ?)`, []any{2, 100, "Explorer"}},
		{`INSERT INTO levels (level, min_xp, rank_name) VALUES (?, ?, ?)`, []any{3, 300, "Astronaut"}},
		{`INSERT INTO users (id, username, total_xp, level) VALUES (?, ?, ?, ?)`, []any{"u1", "alice", 0, 1}},
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			t.Fatalf("seed %q: %v", stmt.query, err)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
