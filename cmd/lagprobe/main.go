package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"lms/internal/config"
	"lms/internal/logger"
	"lms/internal/pgmq"
	"lms/internal/probe"
	"lms/internal/search"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	giveUp := flag.Duration("give-up", 0, "How long to wait for a course to appear before reporting it (default 30s)")
	interval := flag.Duration("interval", 0, "Index polling interval (default 100ms)")
	flag.Parse()

	envErr := godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log := logger.New("info")
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log := logger.New(cfg.LogLevel)
	if envErr != nil {
		log.Warn().Msg("Warning: no .env file found")
	}
	if cfg.PgmqChangeQueue == "" {
		log.Fatal().Msg("PGMQ_CHANGE_QUEUE must be set to run the staleness probe")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DBConnectionString)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open DB pool")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping DB")
	}
	log.Info().Msg("Database connection established")

	index, err := search.NewElasticIndex(search.Config{
		Addresses:       cfg.ElasticsearchURLs,
		Username:        cfg.ElasticsearchUsername,
		Password:        cfg.ElasticsearchPassword,
		CourseIndex:     cfg.CourseIndex,
		CourseType:      cfg.CourseDocType,
		LessonIndex:     cfg.LessonIndex,
		MaxResultWindow: cfg.ElasticsearchMaxResultWindow,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create search index client")
	}

	err = probe.Run(ctx, log, pgmq.New(pool), index, probe.Options{
		Queue:        cfg.PgmqChangeQueue,
		Bound:        cfg.IndexStalenessBound,
		PollInterval: *interval,
		GiveUpAfter:  *giveUp,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Staleness probe failed")
	}
	log.Info().Msg("Staleness probe stopped gracefully")
}
