package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"lms/docs"
	"lms/internal/api/v1/handler"
	"lms/internal/config"
	"lms/internal/idclock"
	"lms/internal/middleware"
	"lms/internal/pgmq"
	"lms/internal/pubsub"
	"lms/internal/repository"
	"lms/internal/search"
	"lms/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gocql/gocql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/swaggo/swag"
)

// New wires the store, index, clock and notifier into the HTTP API. The
// returned func releases every client it opened.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	logger.Info().Str("environment", cfg.Environment).Str("store_backend", cfg.StoreBackend).Msg("Router initializing")

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// 1. Primary store
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, st.close)

	// 2. Search index
	index, err := search.NewElasticIndex(search.Config{
		Addresses:       cfg.ElasticsearchURLs,
		Username:        cfg.ElasticsearchUsername,
		Password:        cfg.ElasticsearchPassword,
		CourseIndex:     cfg.CourseIndex,
		CourseType:      cfg.CourseDocType,
		LessonIndex:     cfg.LessonIndex,
		MaxResultWindow: cfg.ElasticsearchMaxResultWindow,
	}, logger)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	// 3. Identifier clock
	clock, err := idclock.New(cfg.IDScheme)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	// 4. Change notifications
	var notifier pubsub.ChangeNotifier = pubsub.NopNotifier{}
	switch {
	case cfg.PubSubChangeTopic != "":
		publisher, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close Pub/Sub publisher")
			}
		})
		notifier = pubsub.NewChangeNotifier(publisher, cfg.PubSubChangeTopic, cfg.IndexStalenessBound)
		logger.Info().Str("topic", cfg.PubSubChangeTopic).Msg("Change notifications enabled")
	case cfg.PgmqChangeQueue != "" && st.pool != nil:
		notifier = pubsub.NewChangeNotifier(pgmq.New(st.pool), cfg.PgmqChangeQueue, cfg.IndexStalenessBound)
		logger.Info().Str("queue", cfg.PgmqChangeQueue).Msg("Change notifications enabled on pgmq")
	}

	// 5. Services
	catalog := service.NewCourseCatalog(st.store, index, clock, notifier, logger)

	logger.Info().Msg("Router initialized")
	return newHandler(cfg, catalog, logger), closeAll, nil
}

// newHandler builds the route tree over catalog.
func newHandler(cfg *config.Config, catalog service.CourseCatalog, logger zerolog.Logger) http.Handler {
	validate := validator.New(validator.WithRequiredStructEnabled())
	policy := handler.ReadPolicy{
		DegradeOnIndexError: cfg.DegradeReadsOnIndexError,
		StalenessBound:      cfg.IndexStalenessBound,
	}
	courseHandler := handler.NewCourseHandler(catalog, validate, policy, logger)
	lessonHandler := handler.NewLessonHandler(catalog, validate, policy, logger)
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)

	r := chi.NewRouter()
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.Route("/v1", func(r chi.Router) {
		courseHandler.RegisterRoutes(r, authMiddleware)
		lessonHandler.RegisterRoutes(r, authMiddleware)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})

	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
		if err != nil {
			http.Error(w, "Swagger document unavailable: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	})

	// Redirect /api/* to /v1/* for backward compatibility
	r.HandleFunc("/api/*", func(w http.ResponseWriter, r *http.Request) {
		target := "/v1/" + strings.TrimPrefix(r.URL.Path, "/api/")
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{handler.StalenessHeader, "X-Request-Id"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

type storeHandles struct {
	store repository.RecordStore
	// pool is set for the postgres backend only.
	pool  *pgxpool.Pool
	close func()
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storeHandles, error) {
	switch cfg.StoreBackend {
	case config.BackendCassandra:
		cluster := gocql.NewCluster(cfg.CassandraHosts...)
		cluster.Keyspace = cfg.CassandraKeyspace
		cluster.Timeout = cfg.CassandraTimeout
		consistency, err := gocql.ParseConsistencyWrapper(cfg.CassandraConsistency)
		if err != nil {
			return storeHandles{}, fmt.Errorf("CASSANDRA_CONSISTENCY: %w", err)
		}
		cluster.Consistency = consistency
		if cfg.CassandraUsername != "" {
			cluster.Authenticator = gocql.PasswordAuthenticator{
				Username: cfg.CassandraUsername,
				Password: cfg.CassandraPassword,
			}
		}
		session, err := cluster.CreateSession()
		if err != nil {
			return storeHandles{}, fmt.Errorf("failed to open Cassandra session: %w", err)
		}
		logger.Info().Strs("hosts", cfg.CassandraHosts).Str("keyspace", cfg.CassandraKeyspace).Msg("Cassandra session opened")
		return storeHandles{store: repository.NewCassandraStore(session, logger), close: session.Close}, nil

	case config.BackendPostgres:
		poolCfg, err := pgxpool.ParseConfig(postgresDSN(cfg))
		if err != nil {
			return storeHandles{}, fmt.Errorf("failed to parse DB connection string: %w", err)
		}
		// Transaction poolers like pgbouncer break server-side prepared
		// statements.
		if cfg.Environment != "development" {
			poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return storeHandles{}, fmt.Errorf("failed to open DB pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return storeHandles{}, fmt.Errorf("failed to ping DB: %w", err)
		}
		logger.Info().Msg("Database connection successful")
		return storeHandles{store: repository.NewPostgresStore(pool, logger), pool: pool, close: pool.Close}, nil
	}
	return storeHandles{}, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
}

// postgresDSN disables SSL for local development unless the connection
// string says otherwise.
func postgresDSN(cfg *config.Config) string {
	dsn := cfg.DBConnectionString
	if cfg.Environment != "development" || strings.Contains(dsn, "sslmode") {
		return dsn
	}
	separator := " "
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		separator = "?"
		if strings.Contains(dsn, "?") {
			separator = "&"
		}
	}
	return dsn + separator + "sslmode=disable"
}
